package audit

import (
	"context"
	"sync"
	"time"
)

// Recorder is an in-memory Publisher for tests and local development.
type Recorder struct {
	mu     sync.Mutex
	events []Event

	// FailWith, when set, makes every Emit return that error. Lets tests
	// exercise the audit-failure paths without a broker.
	FailWith error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
