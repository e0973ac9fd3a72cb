package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"enveye/internal/diff"
	"enveye/internal/evidence"
)

// State is the primary lifecycle state of a diagnosis session.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateClosed     State = "closed"
)

var (
	// ErrInvalidState rejects an operation issued outside its valid state,
	// including a second Close.
	ErrInvalidState = errors.New("session: operation not valid in current state")
	// ErrEmptyFollowup rejects blank followup text before any network call.
	ErrEmptyFollowup = errors.New("session: followup text is empty")
	// ErrBusy rejects a second followup while one is still in flight.
	ErrBusy = errors.New("session: a followup is already in flight")
	// ErrAlreadyFlagged rejects flagging a session twice.
	ErrAlreadyFlagged = errors.New("session: already flagged")
)

// StartInput seeds a diagnosis session: the normalized diff plus the
// evidence bundle assembled beforehand.
type StartInput struct {
	Records  []diff.Record
	Evidence evidence.Bundle
}

// StartResult carries the backend-issued identity and the first assistant
// message.
type StartResult struct {
	SessionID string
	Response  string
}

// Backend is the reasoning service a session talks to. Start issues the
// session identity; every other operation addresses it.
type Backend interface {
	StartDiagnosis(ctx context.Context, in StartInput) (StartResult, error)
	Followup(ctx context.Context, sessionID string, history []Message, text string) (string, error)
	CloseSession(ctx context.Context, sessionID string) error
	FlagSession(ctx context.Context, sessionID, reason string) error
}

// EventType classifies subscription events.
type EventType string

const (
	EventState   EventType = "state"
	EventMessage EventType = "message"
)

// Event is pushed to transcript subscribers on every state change or
// transcript append.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state,omitempty"`
	Flagged bool      `json:"flagged,omitempty"`
	Message *Message  `json:"message,omitempty"`
}

// Manager owns one diagnosis session: its state machine, identity, and
// transcript. All mutation goes through Start, Followup, Close, and Flag;
// the mutex is released around backend calls so a stalled collaborator
// never blocks readers.
type Manager struct {
	backend Backend

	mu           sync.Mutex
	state        State
	sessionID    string
	flagged      bool
	followupBusy bool
	transcript   Transcript
	createdAt    time.Time
	subscribers  map[chan Event]struct{}
}

func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:     backend,
		state:       StateNotStarted,
		createdAt:   time.Now().UTC(),
		subscribers: make(map[chan Event]struct{}),
	}
}

// State returns the current primary state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the backend identity, empty until Start succeeds.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Flagged reports whether the orthogonal flag marker is set.
func (m *Manager) Flagged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flagged
}

// CreatedAt reports when the session value was created.
func (m *Manager) CreatedAt() time.Time {
	return m.createdAt
}

// Messages returns a read-only copy of the transcript.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript.Messages()
}

// Start issues the initial diagnosis request. Valid only from NotStarted;
// the Starting state is entered immediately so a duplicate Start is
// rejected without a second backend call. On failure the session reverts
// to NotStarted and may be retried.
func (m *Manager) Start(ctx context.Context, in StartInput) (StartResult, error) {
	m.mu.Lock()
	if m.state != StateNotStarted {
		m.mu.Unlock()
		return StartResult{}, ErrInvalidState
	}
	m.state = StateStarting
	m.notifyLocked(Event{Type: EventState, State: m.state, Flagged: m.flagged})
	m.mu.Unlock()

	result, err := m.backend.StartDiagnosis(ctx, in)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateNotStarted
		m.notifyLocked(Event{Type: EventState, State: m.state, Flagged: m.flagged})
		return StartResult{}, err
	}
	m.sessionID = result.SessionID
	m.state = StateActive
	m.transcript.append(RoleAssistant, result.Response)
	m.notifyLocked(Event{Type: EventState, State: m.state, Flagged: m.flagged})
	m.notifyLocked(Event{Type: EventMessage, Message: &Message{Role: RoleAssistant, Content: result.Response}})
	return result, nil
}

// Followup sends one follow-up turn. Blank text and overlapping calls are
// rejected locally. On success the user message and the assistant response
// are appended in that order; on failure the transcript is left untouched
// so the caller may retry with the same text.
func (m *Manager) Followup(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyFollowup
	}

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return "", ErrInvalidState
	}
	if m.followupBusy {
		m.mu.Unlock()
		return "", ErrBusy
	}
	m.followupBusy = true
	sessionID := m.sessionID
	history := m.transcript.Messages()
	m.mu.Unlock()

	response, err := m.backend.Followup(ctx, sessionID, history, trimmed)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.followupBusy = false
	if err != nil {
		return "", err
	}
	m.transcript.append(RoleUser, trimmed)
	m.transcript.append(RoleAssistant, response)
	m.notifyLocked(Event{Type: EventMessage, Message: &Message{Role: RoleUser, Content: trimmed}})
	m.notifyLocked(Event{Type: EventMessage, Message: &Message{Role: RoleAssistant, Content: response}})
	return response, nil
}

// Close releases the backend-side session. Valid only from Active; a
// second Close is a caller error, not an idempotent no-op.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrInvalidState
	}
	sessionID := m.sessionID
	m.mu.Unlock()

	if err := m.backend.CloseSession(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateClosed
	m.notifyLocked(Event{Type: EventState, State: m.state, Flagged: m.flagged})
	return nil
}

// Flag sets the orthogonal flag marker once while the session is Active.
// The primary state does not change.
func (m *Manager) Flag(ctx context.Context, reason string) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrInvalidState
	}
	if m.flagged {
		m.mu.Unlock()
		return ErrAlreadyFlagged
	}
	sessionID := m.sessionID
	m.mu.Unlock()

	if err := m.backend.FlagSession(ctx, sessionID, reason); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.flagged = true
	m.notifyLocked(Event{Type: EventState, State: m.state, Flagged: m.flagged})
	return nil
}

// Subscribe returns a channel of session events. The subscription ends
// when ctx is done; slow consumers drop events instead of blocking the
// session.
func (m *Manager) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 32)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	// Seed the subscriber with the current state so late joiners render
	// something immediately.
	select {
	case ch <- Event{Type: EventState, State: m.state, Flagged: m.flagged}:
	default:
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subscribers, ch)
		m.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (m *Manager) notifyLocked(evt Event) {
	for ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
