package ai

import "strings"

// ScamKeywords is the fixed vocabulary that marks a message as a scam attempt.
// Entries are lowercase and matched as substrings.
var ScamKeywords = []string{
	"kyc", "expired", "pay", "upi", "bank", "verify",
	"update", "deposit", "money", "win", "electricity", "bill",
	"account blocked", "urgent", "verify now", "otp",
}

// IntentClassifier is the keyword gate that decides whether to engage.
// High recall is preferred: a single vocabulary hit is enough.
type IntentClassifier struct {
	keywords []string
}

// NewIntentClassifier creates a classifier over the default vocabulary
func NewIntentClassifier() *IntentClassifier {
	return NewIntentClassifierWithKeywords(ScamKeywords)
}

// NewIntentClassifierWithKeywords creates a classifier over a custom vocabulary
func NewIntentClassifierWithKeywords(keywords []string) *IntentClassifier {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && !containsString(normalized, k) {
			normalized = append(normalized, k)
		}
	}
	return &IntentClassifier{keywords: normalized}
}

// Classify returns true iff the lowercased text contains a vocabulary entry
func (c *IntentClassifier) Classify(text string) bool {
	return containsAny(strings.ToLower(text), c.keywords)
}

// MatchedKeywords returns the vocabulary entries found in text, in vocabulary order
func (c *IntentClassifier) MatchedKeywords(text string) []string {
	return findMatches(strings.ToLower(text), c.keywords)
}

// Keywords returns a copy of the vocabulary
func (c *IntentClassifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

var defaultClassifier = NewIntentClassifier()

// IsScamIntent classifies text with the default vocabulary
func IsScamIntent(text string) bool {
	return defaultClassifier.Classify(text)
}

// Helper functions

func containsAny(content string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(content, pattern) {
			return true
		}
	}
	return false
}

func findMatches(content string, patterns []string) []string {
	var matches []string
	for _, pattern := range patterns {
		if strings.Contains(content, pattern) {
			matches = append(matches, pattern)
		}
	}
	return matches
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
