package models

import (
	"encoding/json"
	"sort"
)

// StringSet is a deduplicated set of strings with exact-match membership
type StringSet map[string]struct{}

// NewStringSet creates a set holding the given values
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	s.Add(values...)
	return s
}

// Add inserts values, ignoring empty strings. Returns the number of new members.
func (s StringSet) Add(values ...string) int {
	added := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := s[v]; ok {
			continue
		}
		s[v] = struct{}{}
		added++
	}
	return added
}

// Contains reports whether v is a member
func (s StringSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members
func (s StringSet) Len() int {
	return len(s)
}

// Sorted returns the members as a sorted list, never nil
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array into the set
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// IntelligenceSet is the per-session accumulator of harvested intelligence
type IntelligenceSet struct {
	BankAccounts       StringSet `json:"bankAccounts"`
	UpiIDs             StringSet `json:"upiIds"`
	PhishingLinks      StringSet `json:"phishingLinks"`
	PhoneNumbers       StringSet `json:"phoneNumbers"`
	SuspiciousKeywords StringSet `json:"suspiciousKeywords"`
}

// NewIntelligenceSet creates an empty accumulator
func NewIntelligenceSet() IntelligenceSet {
	return IntelligenceSet{
		BankAccounts:       NewStringSet(),
		UpiIDs:             NewStringSet(),
		PhishingLinks:      NewStringSet(),
		PhoneNumbers:       NewStringSet(),
		SuspiciousKeywords: NewStringSet(),
	}
}

// ensure allocates any nil sets, e.g. after decoding a partial document
func (i *IntelligenceSet) ensure() {
	if i.BankAccounts == nil {
		i.BankAccounts = NewStringSet()
	}
	if i.UpiIDs == nil {
		i.UpiIDs = NewStringSet()
	}
	if i.PhishingLinks == nil {
		i.PhishingLinks = NewStringSet()
	}
	if i.PhoneNumbers == nil {
		i.PhoneNumbers = NewStringSet()
	}
	if i.SuspiciousKeywords == nil {
		i.SuspiciousKeywords = NewStringSet()
	}
}

// Merge unions the non-empty fields of an extraction into the accumulator.
// Empty fields are no-ops; existing members are never removed.
func (i *IntelligenceSet) Merge(r ExtractionResult) int {
	i.ensure()
	added := 0
	added += i.BankAccounts.Add(r.BankAccounts...)
	added += i.UpiIDs.Add(r.UpiIDs...)
	added += i.PhishingLinks.Add(r.PhishingLinks...)
	added += i.PhoneNumbers.Add(r.PhoneNumbers...)
	added += i.SuspiciousKeywords.Add(r.SuspiciousKeywords...)
	return added
}

// Total returns the sum of all set sizes
func (i IntelligenceSet) Total() int {
	return i.BankAccounts.Len() + i.UpiIDs.Len() + i.PhishingLinks.Len() +
		i.PhoneNumbers.Len() + i.SuspiciousKeywords.Len()
}

// Clone returns a deep copy
func (i IntelligenceSet) Clone() IntelligenceSet {
	c := NewIntelligenceSet()
	c.BankAccounts.Add(i.BankAccounts.Sorted()...)
	c.UpiIDs.Add(i.UpiIDs.Sorted()...)
	c.PhishingLinks.Add(i.PhishingLinks.Sorted()...)
	c.PhoneNumbers.Add(i.PhoneNumbers.Sorted()...)
	c.SuspiciousKeywords.Add(i.SuspiciousKeywords.Sorted()...)
	return c
}

// Lists converts the accumulator into ordered lists for reporting
func (i IntelligenceSet) Lists() ExtractedIntelligence {
	return ExtractedIntelligence{
		BankAccounts:       i.BankAccounts.Sorted(),
		UpiIDs:             i.UpiIDs.Sorted(),
		PhishingLinks:      i.PhishingLinks.Sorted(),
		PhoneNumbers:       i.PhoneNumbers.Sorted(),
		SuspiciousKeywords: i.SuspiciousKeywords.Sorted(),
	}
}

// ExtractedIntelligence is the list form of an IntelligenceSet used on the wire
type ExtractedIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UpiIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// ExtractionResult is the transient output of one extraction pass.
// Every field is optional.
type ExtractionResult struct {
	BankAccounts       []string `json:"bankAccounts,omitempty"`
	UpiIDs             []string `json:"upiIds,omitempty"`
	PhishingLinks      []string `json:"phishingLinks,omitempty"`
	PhoneNumbers       []string `json:"phoneNumbers,omitempty"`
	SuspiciousKeywords []string `json:"suspiciousKeywords,omitempty"`

	// Auxiliary classification, passed through untouched
	ScamType     string `json:"scamType,omitempty"`
	UrgencyLevel int    `json:"urgencyLevel,omitempty"`
}

// Count returns the number of extracted items across the five intelligence fields
func (r ExtractionResult) Count() int {
	return len(r.BankAccounts) + len(r.UpiIDs) + len(r.PhishingLinks) +
		len(r.PhoneNumbers) + len(r.SuspiciousKeywords)
}

// IsEmpty reports whether nothing was extracted
func (r ExtractionResult) IsEmpty() bool {
	return r.Count() == 0 && r.ScamType == "" && r.UrgencyLevel == 0
}

// FirstUpiID returns the first UPI handle, if any
func (r ExtractionResult) FirstUpiID() string {
	if len(r.UpiIDs) == 0 {
		return ""
	}
	return r.UpiIDs[0]
}

// FirstPhone returns the first phone number, if any
func (r ExtractionResult) FirstPhone() string {
	if len(r.PhoneNumbers) == 0 {
		return ""
	}
	return r.PhoneNumbers[0]
}
