package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"honeypot-lab/pkg/logger"
)

func TestLLMClient_MissingCredential(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  error
	}{
		{"claude without key", ProviderClaude, ErrNoCredential},
		{"gemini without key", ProviderGemini, ErrNoCredential},
		{"disabled", ProviderNone, ErrNoCredential},
		{"empty provider", "", ErrNoCredential},
		{"unknown provider", "llama", ErrProviderUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLLMClient(LLMConfig{Provider: tt.provider}, logger.NewNop())

			res := c.Complete(context.Background(), CompletionRequest{System: "x"})
			if res.OK() {
				t.Fatal("expected failure result")
			}
			if !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestLLMClient_Claude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}

		var body struct {
			System    string `json:"system"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if body.System != "persona" || body.MaxTokens != 150 {
			t.Errorf("system=%q max_tokens=%d", body.System, body.MaxTokens)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("messages not normalized: %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Hello beta"}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider:      ProviderClaude,
		ClaudeAPIKey:  "test-key",
		ClaudeBaseURL: srv.URL,
	}, logger.NewNop())

	res := c.Complete(context.Background(), CompletionRequest{
		System:    "persona",
		MaxTokens: 150,
		Messages: []ChatTurn{
			{Role: RoleAssistant, Text: "leading agent turn"},
			{Role: RoleUser, Text: "pay now"},
			{Role: RoleUser, Text: "urgent"},
		},
	})

	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Text != "Hello beta" || res.Provider != ProviderClaude {
		t.Errorf("result = %+v", res)
	}
}

func TestLLMClient_Gemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}

		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if len(body.Contents) != 3 || body.Contents[0].Parts[0].Text != "persona" || body.Contents[2].Role != "model" {
			t.Errorf("contents = %+v", body.Contents)
		}

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Which app beta?"}]}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider:      ProviderGemini,
		GeminiAPIKey:  "g-key",
		GeminiBaseURL: srv.URL,
	}, logger.NewNop())

	res := c.Complete(context.Background(), CompletionRequest{
		System: "persona",
		Messages: []ChatTurn{
			{Role: RoleUser, Text: "send otp"},
			{Role: RoleAssistant, Text: "what otp?"},
		},
	})
	if !res.OK() || res.Text != "Which app beta?" {
		t.Fatalf("result = %+v", res)
	}
}

func TestLLMClient_GeminiNormalizesTurns(t *testing.T) {
	type geminiContent struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}
	received := make(chan []geminiContent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Contents []geminiContent `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		received <- body.Contents
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Ok ok"}]}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider:      ProviderGemini,
		GeminiAPIKey:  "g-key",
		GeminiBaseURL: srv.URL,
	}, logger.NewNop())

	res := c.Complete(context.Background(), CompletionRequest{
		System: "persona",
		Messages: []ChatTurn{
			{Role: RoleAssistant, Text: "hello?"},
			{Role: RoleUser, Text: "your account is blocked"},
			{Role: RoleUser, Text: "   "},
			{Role: RoleUser, Text: "share otp"},
			{Role: RoleAssistant, Text: ""},
		},
	})
	if !res.OK() {
		t.Fatalf("result = %+v", res)
	}

	// system part plus one merged user turn
	got := <-received
	if len(got) != 2 {
		t.Fatalf("contents = %+v", got)
	}
	if got[1].Role != "user" || got[1].Parts[0].Text != "your account is blocked\nshare otp" {
		t.Errorf("turn = %+v", got[1])
	}
}

func TestLLMClient_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer o-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Rohan will help me"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider:      ProviderOpenAI,
		OpenAIAPIKey:  "o-key",
		OpenAIBaseURL: srv.URL + "/v1",
	}, logger.NewNop())

	res := c.Complete(context.Background(), CompletionRequest{
		System:   "persona",
		Messages: []ChatTurn{{Role: RoleUser, Text: "pay"}},
	})
	if !res.OK() || res.Text != "Rohan will help me" {
		t.Fatalf("result = %+v", res)
	}
}

func TestLLMClient_TimeoutAndBreaker(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewLLMClient(LLMConfig{
		Provider:           ProviderClaude,
		ClaudeAPIKey:       "k",
		ClaudeBaseURL:      srv.URL,
		BreakerMaxFailures: 2,
		BreakerOpenTimeout: time.Minute,
	}, logger.NewNop())

	req := CompletionRequest{System: "x", Timeout: 50 * time.Millisecond}
	for i := 0; i < 2; i++ {
		start := time.Now()
		res := c.Complete(context.Background(), req)
		if res.OK() {
			t.Fatal("expected timeout failure")
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Fatalf("call took %v despite 50ms timeout", elapsed)
		}
	}

	res := c.Complete(context.Background(), req)
	if !errors.Is(res.Err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want open breaker", res.Err)
	}
}

func TestLLMClient_EmptyTextIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{Provider: ProviderClaude, ClaudeAPIKey: "k", ClaudeBaseURL: srv.URL}, logger.NewNop())

	res := c.Complete(context.Background(), CompletionRequest{System: "x"})
	if !errors.Is(res.Err, ErrEmptyCompletion) {
		t.Errorf("err = %v, want ErrEmptyCompletion", res.Err)
	}
}

func TestNormalizeTurns(t *testing.T) {
	got := NormalizeTurns([]ChatTurn{
		{Role: RoleAssistant, Text: "hi"},
		{Role: RoleUser, Text: "a"},
		{Role: RoleUser, Text: "  "},
		{Role: RoleUser, Text: "b"},
		{Role: RoleAssistant, Text: "c"},
	})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Role != RoleUser || got[0].Text != "a\nb" {
		t.Errorf("first turn = %+v", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Text != "c" {
		t.Errorf("second turn = %+v", got[1])
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}

	if err := decodeModelJSON("```json\n{\"a\": 1}\n```", &v); err != nil || v.A != 1 {
		t.Errorf("fenced: v=%+v err=%v", v, err)
	}
	if err := decodeModelJSON("no json here", &v); !errors.Is(err, errNoJSONObject) {
		t.Errorf("err = %v, want errNoJSONObject", err)
	}
	if err := decodeModelJSON("{broken", &v); err == nil {
		t.Error("expected error for unterminated object")
	}
}
