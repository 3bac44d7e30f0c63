package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/reposcan/schema"
)

// ErrInvalidTransition is returned when a session is moved to a state it cannot reach.
var ErrInvalidTransition = errors.New("invalid session state transition")

// DefaultSubscriberBuffer is the channel capacity used by Subscribe.
const DefaultSubscriberBuffer = 64

// forward lists the non-failure transition out of each state.
var forward = map[schema.SessionState]schema.SessionState{
	schema.StateIdle:        schema.StateEstimating,
	schema.StateEstimating:  schema.StateCloning,
	schema.StateCloning:     schema.StateListing,
	schema.StateListing:     schema.StateSampling,
	schema.StateSampling:    schema.StateScanning,
	schema.StateScanning:    schema.StateAggregating,
	schema.StateAggregating: schema.StateCompleted,
}

// Session is one scan request moving through the orchestrator state machine.
// It is owned by a single orchestrator run.
type Session struct {
	ID         string
	Repository schema.RepositoryDescriptor
	Config     schema.ScanConfiguration
	CreatedAt  time.Time

	mu     sync.Mutex
	state  schema.SessionState
	subs   []chan schema.ProgressEvent
	closed bool
}

// NewSession creates an idle session.
func NewSession(desc schema.RepositoryDescriptor, cfg schema.ScanConfiguration) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Repository: desc,
		Config:     cfg,
		CreatedAt:  time.Now(),
		state:      schema.StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() schema.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving progress events until the session closes.
// Events are dropped for subscribers that do not keep up.
func (s *Session) Subscribe(buffer int) <-chan schema.ProgressEvent {
	ch := make(chan schema.ProgressEvent, max(buffer, 1))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Transition moves the session to state and publishes an event.
func (s *Session) Transition(to schema.SessionState, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	s.publishLocked(schema.ProgressEvent{State: to, Message: msg})
	return nil
}

// Publish sends ev to every subscriber, stamped with the session id and state.
func (s *Session) Publish(ev schema.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.State = s.state
	s.publishLocked(ev)
}

func (s *Session) publishLocked(ev schema.ProgressEvent) {
	if s.closed {
		return
	}
	ev.SessionID = s.ID
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func canTransition(from, to schema.SessionState) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case schema.StateFailed, schema.StateTimedOut, schema.StateCancelled:
		return true
	}
	return forward[from] == to
}
