// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a one-shot cross-stream barrier. It starts pending and
// transitions to signaled exactly once per recording; Wait calls made
// after signaling return immediately and idempotently.
type Event struct {
	id uuid.UUID

	mu         sync.Mutex
	ch         chan struct{}
	occurred   bool
	recordedAt time.Time
}

// NewEvent allocates a pending event not yet associated with any stream.
// Waiting on it blocks until some stream records it (or the wait times
// out); an event that is never recorded by any stream times out every
// waiter that passes a positive timeout, and a wait with timeout 0 on it
// never returns.
func NewEvent() *Event {
	return &Event{id: uuid.New(), ch: make(chan struct{})}
}

// ID returns the event's identity, used in log fields.
func (e *Event) ID() uuid.UUID { return e.id }

// signal flips the event to signaled and stamps the recorded time. It is
// idempotent: signaling an already-signaled event (without an
// intervening RecordOn reset) is a no-op.
func (e *Event) signal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.occurred {
		return
	}
	e.occurred = true
	e.recordedAt = time.Now()
	close(e.ch)
}

// RecordOn appends a closure to s that signals e when it runs. Recording
// an already-signaled event is legal: it first resets e to pending (a
// fresh channel) so late waiters block again until the new recording
// fires, then enqueues the signal closure.
func (e *Event) RecordOn(s *Stream) *Event {
	e.mu.Lock()
	if e.occurred {
		e.occurred = false
		e.ch = make(chan struct{})
	}
	e.mu.Unlock()
	s.Enqueue(func() error {
		e.signal()
		return nil
	})
	return e
}

// Wait blocks until e signals, or returns ErrTimedOut if timeout elapses
// first. A timeout of 0 means wait forever.
func (e *Event) Wait(timeout time.Duration) error {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()

	if timeout <= 0 {
		<-ch
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return ErrTimedOut
	}
}

// ForceSignal signals e immediately, without any stream involved. It is
// used to represent a write that already completed synchronously (e.g.
// a host-side write made with no stream at all).
func (e *Event) ForceSignal() { e.signal() }

// Occurred reports whether the event has signaled.
func (e *Event) Occurred() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.occurred
}

// ElapsedSince returns the interval between other's and e's most recent
// recorded times, and true, when both have signaled. It returns false if
// either has not yet signaled.
func (e *Event) ElapsedSince(other *Event) (time.Duration, bool) {
	e.mu.Lock()
	eOccurred, eAt := e.occurred, e.recordedAt
	e.mu.Unlock()

	other.mu.Lock()
	oOccurred, oAt := other.occurred, other.recordedAt
	other.mu.Unlock()

	if !eOccurred || !oOccurred {
		return 0, false
	}
	return eAt.Sub(oAt), true
}
