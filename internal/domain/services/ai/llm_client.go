package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"honeypot-lab/pkg/logger"
)

// Supported generative providers
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

var (
	ErrNoCredential        = errors.New("no credential configured for generative provider")
	ErrProviderUnsupported = errors.New("unsupported generative provider")
	ErrEmptyCompletion     = errors.New("generative provider returned no text")
)

// Role of a chat turn as seen by the generative backend
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one provider-neutral chat message
type ChatTurn struct {
	Role Role
	Text string
}

// CompletionRequest is a provider-neutral generation request
type CompletionRequest struct {
	System      string
	Messages    []ChatTurn
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// CompletionResult is either success-with-text or failure-with-reason
type CompletionResult struct {
	Text     string
	Err      error
	Provider string
	Duration time.Duration
}

// OK reports whether the result carries usable text
func (r CompletionResult) OK() bool {
	return r.Err == nil && strings.TrimSpace(r.Text) != ""
}

// Failed builds a failure result
func Failed(err error) CompletionResult {
	return CompletionResult{Err: err}
}

// TextGenerator produces text from a chat history. Implementations must not panic
// and must honour ctx cancellation; failures are reported in the result.
type TextGenerator interface {
	Complete(ctx context.Context, req CompletionRequest) CompletionResult
}

// LLMConfig holds generative client configuration
type LLMConfig struct {
	Provider     string // claude, openai, gemini, none
	ClaudeAPIKey string
	OpenAIAPIKey string
	GeminiAPIKey string
	Model        string
	Timeout      time.Duration

	// Endpoint overrides, empty means the public API
	ClaudeBaseURL string
	OpenAIBaseURL string
	GeminiBaseURL string

	// Circuit breaker
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// LLMClient is the TextGenerator backed by a hosted model API
type LLMClient struct {
	httpClient *http.Client
	openai     *openai.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
	config     LLMConfig
}

// NewLLMClient creates a new LLM client
func NewLLMClient(cfg LLMConfig, log *logger.Logger) *LLMClient {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenTimeout == 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}
	if cfg.Model == "" {
		switch cfg.Provider {
		case ProviderClaude:
			cfg.Model = "claude-3-haiku-20240307"
		case ProviderOpenAI:
			cfg.Model = "gpt-4o-mini"
		case ProviderGemini:
			cfg.Model = "gemini-3-flash-preview"
		}
	}

	c := &LLMClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.WithComponent("llm-client"),
		config:     cfg,
	}

	if cfg.Provider == ProviderOpenAI && cfg.OpenAIAPIKey != "" {
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
		}
		c.openai = openai.NewClientWithConfig(oc)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-" + cfg.Provider,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return c
}

// Provider returns the configured provider name
func (c *LLMClient) Provider() string {
	return c.config.Provider
}

// Enabled reports whether a provider and its credential are configured
func (c *LLMClient) Enabled() bool {
	return c.credential() != ""
}

func (c *LLMClient) credential() string {
	switch c.config.Provider {
	case ProviderClaude:
		return c.config.ClaudeAPIKey
	case ProviderOpenAI:
		return c.config.OpenAIAPIKey
	case ProviderGemini:
		return c.config.GeminiAPIKey
	default:
		return ""
	}
}

// Complete runs one generation through the circuit breaker. It never panics.
func (c *LLMClient) Complete(ctx context.Context, req CompletionRequest) (result CompletionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("generative call panicked")
			result = Failed(fmt.Errorf("generative call panicked: %v", r))
		}
		result.Provider = c.config.Provider
		result.Duration = time.Since(start)
	}()

	switch c.config.Provider {
	case ProviderClaude, ProviderOpenAI, ProviderGemini:
	case "", ProviderNone:
		return Failed(ErrNoCredential)
	default:
		return Failed(fmt.Errorf("%w: %s", ErrProviderUnsupported, c.config.Provider))
	}
	if c.credential() == "" {
		return Failed(ErrNoCredential)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		text, err := c.dispatch(ctx, req)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyCompletion
		}
		return text, nil
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("provider", c.config.Provider).Msg("generative call failed")
		return Failed(err)
	}

	return CompletionResult{Text: strings.TrimSpace(out.(string))}
}

func (c *LLMClient) dispatch(ctx context.Context, req CompletionRequest) (string, error) {
	switch c.config.Provider {
	case ProviderClaude:
		return c.callClaude(ctx, req)
	case ProviderOpenAI:
		return c.callOpenAI(ctx, req)
	case ProviderGemini:
		return c.callGemini(ctx, req)
	default:
		return "", fmt.Errorf("%w: %s", ErrProviderUnsupported, c.config.Provider)
	}
}

// callClaude makes a request to the Anthropic messages API
func (c *LLMClient) callClaude(ctx context.Context, req CompletionRequest) (string, error) {
	base := c.config.ClaudeBaseURL
	if base == "" {
		base = defaultClaudeBaseURL
	}

	turns := NormalizeTurns(req.Messages)
	messages := make([]map[string]interface{}, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, map[string]interface{}{
			"role": string(t.Role),
			"content": []map[string]string{
				{"type": "text", "text": t.Text},
			},
		})
	}

	reqBody := map[string]interface{}{
		"model":       c.config.Model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"system":      req.System,
		"messages":    messages,
	}

	body, err := c.postJSON(ctx, strings.TrimRight(base, "/")+"/v1/messages", reqBody, map[string]string{
		"x-api-key":         c.config.ClaudeAPIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}

	var claudeResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("claude: failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, part := range claudeResp.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// callOpenAI makes a request through the OpenAI SDK
func (c *LLMClient) callOpenAI(ctx context.Context, req CompletionRequest) (string, error) {
	if c.openai == nil {
		return "", ErrNoCredential
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
	}
	for _, t := range NormalizeTurns(req.Messages) {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}

	resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}

	return resp.Choices[0].Message.Content, nil
}

// callGemini makes a request to the Gemini generateContent API.
// The system prompt is sent as the leading user part.
func (c *LLMClient) callGemini(ctx context.Context, req CompletionRequest) (string, error) {
	base := c.config.GeminiBaseURL
	if base == "" {
		base = defaultGeminiBaseURL
	}

	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}

	contents := []content{{Role: "user", Parts: []part{{Text: req.System}}}}
	for _, t := range NormalizeTurns(req.Messages) {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: t.Text}}})
	}

	reqBody := map[string]interface{}{
		"contents": contents,
		"generationConfig": map[string]interface{}{
			"temperature":     req.Temperature,
			"maxOutputTokens": req.MaxTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(base, "/"), url.PathEscape(c.config.Model), url.QueryEscape(c.config.GeminiAPIKey))

	body, err := c.postJSON(ctx, endpoint, reqBody, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("gemini: failed to decode response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *LLMClient) postJSON(ctx context.Context, endpoint string, payload interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// NormalizeTurns drops empty turns, merges consecutive turns of the same role
// and strips leading assistant turns, as chat APIs require a user turn first.
func NormalizeTurns(turns []ChatTurn) []ChatTurn {
	out := make([]ChatTurn, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if len(out) == 0 && t.Role == RoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1].Text += "\n" + text
			continue
		}
		out = append(out, ChatTurn{Role: t.Role, Text: text})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
