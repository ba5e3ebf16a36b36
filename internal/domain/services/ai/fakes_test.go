package ai

import (
	"context"
	"sync"
)

// fakeGenerator returns scripted results and records requests
type fakeGenerator struct {
	mu       sync.Mutex
	result   CompletionResult
	panicVal interface{}
	requests []CompletionRequest
}

func (f *fakeGenerator) Complete(_ context.Context, req CompletionRequest) CompletionResult {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.result
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
