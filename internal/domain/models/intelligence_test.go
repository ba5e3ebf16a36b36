package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestStringSet_AddIgnoresEmptyAndDuplicates(t *testing.T) {
	s := NewStringSet()

	if added := s.Add("b", "a", "", "b"); added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if !reflect.DeepEqual(s.Sorted(), []string{"a", "b"}) {
		t.Errorf("Sorted() = %v", s.Sorted())
	}
}

func TestStringSet_JSONIsSortedList(t *testing.T) {
	s := NewStringSet("upi@b", "upi@a")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["upi@a","upi@b"]` {
		t.Errorf("json = %s", data)
	}

	empty, _ := json.Marshal(NewStringSet())
	if string(empty) != `[]` {
		t.Errorf("empty set json = %s, want []", empty)
	}
}

func TestIntelligenceSet_MergeUnion(t *testing.T) {
	first := ExtractionResult{
		UpiIDs:             []string{"badguy@okaxis"},
		SuspiciousKeywords: []string{"kyc"},
	}
	second := ExtractionResult{
		UpiIDs:       []string{"badguy@okaxis", "other@ybl"},
		PhoneNumbers: []string{"+919876543210"},
	}

	acc := NewIntelligenceSet()
	if added := acc.Merge(first); added != 2 {
		t.Errorf("first merge added %d, want 2", added)
	}
	if added := acc.Merge(second); added != 2 {
		t.Errorf("second merge added %d, want 2", added)
	}
	if added := acc.Merge(second); added != 0 {
		t.Errorf("repeated merge added %d, want 0", added)
	}

	if acc.Total() != 4 {
		t.Errorf("Total() = %d, want 4", acc.Total())
	}
}

func TestIntelligenceSet_MergeIntoZeroValue(t *testing.T) {
	var acc IntelligenceSet
	acc.Merge(ExtractionResult{BankAccounts: []string{"123456789"}})

	if !acc.BankAccounts.Contains("123456789") {
		t.Error("merge into zero value lost data")
	}
}

func TestIntelligenceSet_CloneIsDeep(t *testing.T) {
	acc := NewIntelligenceSet()
	acc.PhishingLinks.Add("http://a.test")

	c := acc.Clone()
	c.PhishingLinks.Add("http://b.test")

	if acc.PhishingLinks.Len() != 1 {
		t.Error("clone shares storage with the original")
	}
}

func TestSessionState_RoundTripsThroughJSON(t *testing.T) {
	s := NewSessionState("sess-1")
	s.MessageCount = 3
	s.Intelligence.Merge(ExtractionResult{UpiIDs: []string{"x@ybl"}})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var decoded SessionState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.MessageCount != 3 || !decoded.Intelligence.UpiIDs.Contains("x@ybl") {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Intelligence.PhoneNumbers == nil {
		t.Error("empty set decoded as nil")
	}
}

func TestExtractionResult_EmptyEncodesAsObject(t *testing.T) {
	data, _ := json.Marshal(ExtractionResult{})
	if string(data) != `{}` {
		t.Errorf("json = %s, want {}", data)
	}
}
