package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enveye/internal/diff"
	"enveye/internal/evidence"
	"enveye/internal/llm"
)

type stubBackend struct {
	mu            sync.Mutex
	startCalls    int
	followupCalls int
	closeCalls    int
	flagCalls     int

	startErr    error
	followupErr error
	closeErr    error
	flagErr     error

	startResult  StartResult
	followupResp string

	startGate chan struct{} // when set, StartDiagnosis blocks until closed
}

func (s *stubBackend) StartDiagnosis(_ context.Context, _ StartInput) (StartResult, error) {
	s.mu.Lock()
	s.startCalls++
	gate := s.startGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if s.startErr != nil {
		return StartResult{}, s.startErr
	}
	return s.startResult, nil
}

func (s *stubBackend) Followup(_ context.Context, _ string, _ []Message, _ string) (string, error) {
	s.mu.Lock()
	s.followupCalls++
	s.mu.Unlock()
	if s.followupErr != nil {
		return "", s.followupErr
	}
	return s.followupResp, nil
}

func (s *stubBackend) CloseSession(_ context.Context, _ string) error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	return s.closeErr
}

func (s *stubBackend) FlagSession(_ context.Context, _, _ string) error {
	s.mu.Lock()
	s.flagCalls++
	s.mu.Unlock()
	return s.flagErr
}

func newActiveManager(t *testing.T, backend *stubBackend) *Manager {
	t.Helper()
	if backend.startResult.SessionID == "" {
		backend.startResult = StartResult{SessionID: "sess-1", Response: "initial diagnosis"}
	}
	m := NewManager(backend)
	_, err := m.Start(context.Background(), StartInput{})
	require.NoError(t, err)
	require.Equal(t, StateActive, m.State())
	return m
}

func TestStartTransitionsAndSeedsTranscript(t *testing.T) {
	backend := &stubBackend{startResult: StartResult{SessionID: "sess-42", Response: "looks like the db host changed"}}
	m := NewManager(backend)

	require.Equal(t, StateNotStarted, m.State())
	require.Empty(t, m.SessionID())

	result, err := m.Start(context.Background(), StartInput{})
	require.NoError(t, err)
	assert.Equal(t, "sess-42", result.SessionID)
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, "sess-42", m.SessionID())

	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Equal(t, "looks like the db host changed", msgs[0].Content)
}

func TestStartRejectsDuplicateWhileStarting(t *testing.T) {
	gate := make(chan struct{})
	backend := &stubBackend{
		startResult: StartResult{SessionID: "sess-1", Response: "ok"},
		startGate:   gate,
	}
	m := NewManager(backend)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background(), StartInput{})
		firstDone <- err
	}()

	// Wait until the first Start is inside the backend call.
	require.Eventually(t, func() bool {
		return m.State() == StateStarting
	}, time.Second, time.Millisecond)

	_, err := m.Start(context.Background(), StartInput{})
	require.ErrorIs(t, err, ErrInvalidState)

	close(gate)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, backend.startCalls, "only one network start call may be issued")
}

func TestStartFailureRevertsAndAllowsRetry(t *testing.T) {
	backend := &stubBackend{startErr: errors.New("backend down")}
	m := NewManager(backend)

	_, err := m.Start(context.Background(), StartInput{})
	require.Error(t, err)
	assert.Equal(t, StateNotStarted, m.State())
	assert.Empty(t, m.SessionID())
	assert.Empty(t, m.Messages())

	backend.startErr = nil
	backend.startResult = StartResult{SessionID: "sess-2", Response: "retry worked"}
	_, err = m.Start(context.Background(), StartInput{})
	require.NoError(t, err)
	assert.Equal(t, StateActive, m.State())
}

func TestFollowupAppendsUserThenAssistant(t *testing.T) {
	backend := &stubBackend{followupResp: "check the connection string"}
	m := newActiveManager(t, backend)

	resp, err := m.Followup(context.Background(), "why?")
	require.NoError(t, err)
	assert.Equal(t, "check the connection string", resp)

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "why?"}, msgs[1])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "check the connection string"}, msgs[2])
}

func TestFollowupRejectsBlankText(t *testing.T) {
	backend := &stubBackend{}
	m := newActiveManager(t, backend)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := m.Followup(context.Background(), text)
		require.ErrorIs(t, err, ErrEmptyFollowup)
	}
	assert.Equal(t, 0, backend.followupCalls, "blank followups must not reach the backend")
	assert.Len(t, m.Messages(), 1)
}

func TestFollowupFailureLeavesTranscriptUnchanged(t *testing.T) {
	backend := &stubBackend{followupErr: errors.New("timeout")}
	m := newActiveManager(t, backend)

	_, err := m.Followup(context.Background(), "still broken?")
	require.Error(t, err)
	assert.Len(t, m.Messages(), 1, "no partial user-message append on failure")

	// Retry with the same text after the backend recovers.
	backend.followupErr = nil
	backend.followupResp = "try restarting"
	_, err = m.Followup(context.Background(), "still broken?")
	require.NoError(t, err)
	assert.Len(t, m.Messages(), 3)
}

func TestFollowupRejectedBeforeStartAndAfterClose(t *testing.T) {
	backend := &stubBackend{}
	m := NewManager(backend)
	_, err := m.Followup(context.Background(), "hello")
	require.ErrorIs(t, err, ErrInvalidState)

	m = newActiveManager(t, backend)
	require.NoError(t, m.Close(context.Background()))
	_, err = m.Followup(context.Background(), "hello")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCloseIsNotIdempotent(t *testing.T) {
	backend := &stubBackend{}
	m := newActiveManager(t, backend)

	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, StateClosed, m.State())

	err := m.Close(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, backend.closeCalls)
}

func TestCloseFailureKeepsSessionActive(t *testing.T) {
	backend := &stubBackend{closeErr: errors.New("backend down")}
	m := newActiveManager(t, backend)

	require.Error(t, m.Close(context.Background()))
	assert.Equal(t, StateActive, m.State())
}

func TestFlagSetsMarkerWithoutStateChange(t *testing.T) {
	backend := &stubBackend{}
	m := newActiveManager(t, backend)

	require.NoError(t, m.Flag(context.Background(), "inaccurate"))
	assert.True(t, m.Flagged())
	assert.Equal(t, StateActive, m.State())

	require.ErrorIs(t, m.Flag(context.Background(), "again"), ErrAlreadyFlagged)
	assert.Equal(t, 1, backend.flagCalls)
}

func TestFlagRejectedAfterClose(t *testing.T) {
	backend := &stubBackend{}
	m := newActiveManager(t, backend)
	require.NoError(t, m.Close(context.Background()))
	require.ErrorIs(t, m.Flag(context.Background(), "late"), ErrInvalidState)
	assert.False(t, m.Flagged())
}

func TestFlagFailureLeavesMarkerUnset(t *testing.T) {
	backend := &stubBackend{flagErr: errors.New("feedback store down")}
	m := newActiveManager(t, backend)
	require.Error(t, m.Flag(context.Background(), "inaccurate"))
	assert.False(t, m.Flagged())
}

func TestSubscribeReceivesTranscriptEvents(t *testing.T) {
	backend := &stubBackend{followupResp: "answer"}
	m := newActiveManager(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := m.Subscribe(ctx)

	// Seeded state event first.
	evt := <-sub
	require.Equal(t, EventState, evt.Type)
	require.Equal(t, StateActive, evt.State)

	_, err := m.Followup(context.Background(), "why?")
	require.NoError(t, err)

	var contents []string
	deadline := time.After(time.Second)
	for len(contents) < 2 {
		select {
		case evt := <-sub:
			if evt.Type == EventMessage && evt.Message != nil {
				contents = append(contents, evt.Message.Content)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message events, got %v", contents)
		}
	}
	assert.Equal(t, []string{"why?", "answer"}, contents)
}

// End-to-end: raw diff through normalization into a real LLMBackend with a
// scripted model, covering the full session lifecycle.
func TestDiagnosisLifecycleEndToEnd(t *testing.T) {
	raw, err := diff.ParseRawDiff([]byte(`{"values_changed": {"root['a']": {"old_value": 1, "new_value": 2}}}`))
	require.NoError(t, err)

	records := diff.Normalize(raw)
	require.Len(t, records, 1)
	assert.Equal(t, diff.KindChanged, records[0].Kind)
	assert.Equal(t, "a", records[0].Path)
	assert.Equal(t, "1", records[0].OldValue)
	assert.Equal(t, "2", records[0].NewValue)

	fake := llm.NewFakeClient([]string{"value a changed from 1 to 2", "because something rewrote it"})
	backend := NewLLMBackend(fake, nil)
	m := NewManager(backend)

	result, err := m.Start(context.Background(), StartInput{Records: records, Evidence: evidence.Bundle{}})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, StateActive, m.State())
	require.Len(t, m.Messages(), 1)

	resp, err := m.Followup(context.Background(), "why?")
	require.NoError(t, err)
	assert.Equal(t, "because something rewrote it", resp)
	require.Len(t, m.Messages(), 3)

	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, StateClosed, m.State())
	require.ErrorIs(t, m.Close(context.Background()), ErrInvalidState)
}
