package ai

import (
	"context"
	"regexp"
	"strings"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

var (
	upiPattern         = regexp.MustCompile(`[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}`)
	phonePattern       = regexp.MustCompile(`(\+91[\-\s]?)?(91)?\d{10}`)
	linkPattern        = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*(),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	bankAccountPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	ifscPattern        = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
)

// ExtractEntities runs every pattern over text and returns what matched.
// It is pure: no I/O, no shared state. Phone and bank patterns run
// independently, so one digit run may appear in both lists.
func ExtractEntities(text string) models.ExtractionResult {
	var result models.ExtractionResult

	result.UpiIDs = uniqueMatches(upiPattern, text)
	result.PhoneNumbers = uniqueMatches(phonePattern, text)
	result.PhishingLinks = uniqueMatches(linkPattern, text)

	accounts := uniqueMatches(bankAccountPattern, text)
	for _, code := range uniqueMatches(ifscPattern, text) {
		if !containsString(accounts, code) {
			accounts = append(accounts, code)
		}
	}
	result.BankAccounts = accounts

	result.SuspiciousKeywords = findMatches(strings.ToLower(text), ScamKeywords)

	return result
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllString(text, -1) {
		if !containsString(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// EntityExtractor runs the pattern pass and, when enabled, an auxiliary
// model-based classification whose keywords are unioned into the result.
type EntityExtractor struct {
	logger    *logger.Logger
	generator TextGenerator
	auxiliary bool
	timeout   time.Duration
}

// NewEntityExtractor creates a new entity extractor. A nil generator or
// auxiliary=false restricts it to the pattern pass.
func NewEntityExtractor(log *logger.Logger, generator TextGenerator, auxiliary bool) *EntityExtractor {
	return &EntityExtractor{
		logger:    log.WithComponent("entity-extractor"),
		generator: generator,
		auxiliary: auxiliary,
		timeout:   10 * time.Second,
	}
}

// Extract extracts intelligence from one message. It never fails: auxiliary
// problems only mean the auxiliary fields stay empty.
func (e *EntityExtractor) Extract(ctx context.Context, text string) models.ExtractionResult {
	result := ExtractEntities(text)

	if e.generator == nil || !e.auxiliary {
		return result
	}

	aux, err := e.extractWithLLM(ctx, text)
	if err != nil {
		e.logger.Debug().Err(err).Msg("auxiliary extraction skipped")
		return result
	}
	mergeAuxiliary(&result, aux)

	return result
}

// auxiliaryIntel is the structured classification requested from the model
type auxiliaryIntel struct {
	SuspiciousKeywords lenientStrings `json:"suspiciousKeywords"`
	ScamType           lenientString  `json:"scamType"`
	UrgencyLevel       lenientInt     `json:"urgencyLevel"`
}

func (e *EntityExtractor) extractWithLLM(ctx context.Context, text string) (aux *auxiliaryIntel, err error) {
	defer func() {
		if r := recover(); r != nil {
			aux, err = nil, errPanicked(r)
		}
	}()

	res := e.generator.Complete(ctx, CompletionRequest{
		System:      IntelligencePrompt(text),
		MaxTokens:   256,
		Temperature: 0.2,
		Timeout:     e.timeout,
	})
	if !res.OK() {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, ErrEmptyCompletion
	}

	return parseAuxiliary(res.Text)
}

func parseAuxiliary(response string) (*auxiliaryIntel, error) {
	var aux auxiliaryIntel
	if err := decodeModelJSON(response, &aux); err != nil {
		return nil, err
	}
	return &aux, nil
}

func mergeAuxiliary(result *models.ExtractionResult, aux *auxiliaryIntel) {
	if aux == nil {
		return
	}

	for _, k := range aux.SuspiciousKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && !containsString(result.SuspiciousKeywords, k) {
			result.SuspiciousKeywords = append(result.SuspiciousKeywords, k)
		}
	}

	result.ScamType = strings.TrimSpace(string(aux.ScamType))
	if lvl := int(aux.UrgencyLevel); lvl >= 1 && lvl <= 10 {
		result.UrgencyLevel = lvl
	}
}
