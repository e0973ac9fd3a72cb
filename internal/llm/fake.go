package llm

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient returns scripted responses for offline use and tests. When the
// script runs out it echoes a deterministic counter so callers can still
// distinguish turns.
type FakeClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
	err       error
}

func NewFakeClient(responses []string) *FakeClient {
	return &FakeClient{responses: responses}
}

// Fail makes every subsequent Generate return err.
func (f *FakeClient) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls reports how many Generate calls were made.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Generate(_ context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if n := f.calls - 1; n < len(f.responses) {
		return f.responses[n], nil
	}
	return fmt.Sprintf("fake response %d (%d turns)", f.calls, len(messages)), nil
}
