package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nadzzz/readaloud/internal/speech"
)

// Session tracks the run a single caller (a UI view, a request) has in
// flight. Starting a new run on a session cancels the previous one.
type Session struct {
	// Observer, if set, is called on every state change of every run
	// started on this session.
	Observer func(runID string, state speech.State)

	mu     sync.Mutex
	runID  string
	state  speech.State
	cancel context.CancelFunc
}

// NewSession returns an idle session.
func NewSession(observer func(runID string, state speech.State)) *Session {
	return &Session{Observer: observer, state: speech.StateIdle}
}

// RunID returns the id of the most recently started run, or "" if none.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// State returns the state of the most recently started run.
func (s *Session) State() speech.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return speech.StateIdle
	}
	return s.state
}

// Cancel aborts the in-flight run, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// begin supersedes any in-flight run and returns the context and id of a new one.
func (s *Session) begin(parent context.Context) (context.Context, context.CancelFunc, string) {
	ctx, cancel := context.WithCancel(parent)
	runID := uuid.NewString()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.runID = runID
	s.mu.Unlock()

	s.transition(runID, speech.StateIdle)
	return ctx, cancel, runID
}

// transition records state for runID and notifies the observer. A superseded
// run still notifies but no longer changes the session's state.
func (s *Session) transition(runID string, state speech.State) {
	s.mu.Lock()
	if s.runID == runID {
		s.state = state
	}
	observer := s.Observer
	s.mu.Unlock()

	if observer != nil {
		observer(runID, state)
	}
}

// finish drops the cancel func of runID if it is still the current run.
func (s *Session) finish(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == runID {
		s.cancel = nil
	}
}
