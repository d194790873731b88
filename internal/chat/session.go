// Package chat tracks a single dashboard conversation: an ordered transcript
// of user and assistant turns plus a small state machine gating sends.
package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/weathersense/weathersense/internal/models"
)

var (
	// ErrEmptyMessage signals a send with no non-whitespace content.
	ErrEmptyMessage = errors.New("empty message")
	// ErrBusy signals a send while a previous one is still awaiting a reply.
	ErrBusy = errors.New("response pending")
)

// State is the conversation's send-gate state.
type State int

const (
	// StateIdle accepts a new send.
	StateIdle State = iota
	// StateAwaiting has a send in flight; further sends are rejected.
	StateAwaiting
)

func (s State) String() string {
	if s == StateAwaiting {
		return "awaiting"
	}
	return "idle"
}

// NoResponsePlaceholder stands in for an assistant turn when generation
// produced empty text.
const NoResponsePlaceholder = "No response"

// Session is a single conversation. All methods are safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	state      State
	transcript []models.ChatTurn
}

// NewSession returns an idle session with an empty transcript.
func NewSession() *Session {
	return &Session{}
}

// Begin validates and records an outgoing user message. The user turn is
// appended immediately, before any reply exists, and the session moves to
// StateAwaiting. Returns the trimmed message text to build the prompt from.
func (s *Session) Begin(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaiting {
		return "", ErrBusy
	}
	s.transcript = append(s.transcript, models.ChatTurn{Role: models.RoleUser, Text: trimmed})
	s.state = StateAwaiting
	return trimmed, nil
}

// Complete records the assistant's reply for the in-flight send and returns
// the session to StateIdle. Empty text is replaced with a placeholder so the
// transcript never holds a blank assistant turn. Reports whether the turn
// was appended: a session no longer awaiting (a Reset landed while the
// reply was in flight) drops the turn and returns false.
func (s *Session) Complete(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaiting {
		return false
	}
	if text == "" {
		text = NoResponsePlaceholder
	}
	s.transcript = append(s.transcript, models.ChatTurn{Role: models.RoleAssistant, Text: text})
	s.state = StateIdle
	return true
}

// Reset clears the transcript and returns to StateIdle. Used when the
// dashboard's location changes and the prior conversation no longer applies.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.state = StateIdle
}

// State returns the current send-gate state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the conversation so far, oldest first.
func (s *Session) Transcript() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatTurn, len(s.transcript))
	copy(out, s.transcript)
	return out
}
