// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package stream implements the single-producer FIFO command queue
// (Stream) and the one-shot cross-stream barrier (Event) that the tensor
// runtime core uses to order and synchronize asynchronous device work.
//
// A Stream runs one dedicated worker goroutine that drains a FIFO of
// closures to completion, one at a time, in submission order. The
// submitting goroutine never blocks inside Enqueue; the only blocking
// calls in this package are Event.Wait and Stream.BlockUntilIdle.
package stream

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/born-ml/tensorcore/metrics"
	"github.com/born-ml/tensorcore/xlog"
)

// ErrTimedOut is returned by Event.Wait and Stream.BlockUntilIdle when a
// blocking wait exceeds its deadline.
var ErrTimedOut = errors.New("stream: timed out")

// Closure is a unit of work submitted to a Stream. A non-nil error poisons
// the stream: it is recorded as the stream's last error and every
// subsequent Enqueue becomes a silent no-op.
type Closure func() error

// Stream is a single-producer FIFO of closures executed on a dedicated
// worker goroutine, one at a time, in submission order.
type Stream struct {
	id         uuid.UUID
	device     string
	timeout    time.Duration
	creatorGID uint64

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Closure
	closed  bool
	lastErr error

	log zerolog.Logger
	reg *metrics.Registry
}

// New creates a Stream bound to a logical device label (typically
// device.Key.String()), with the given blocking-wait timeout (0 means
// wait forever). The calling goroutine becomes the stream's sole
// permitted enqueuer; enqueuing from any other goroutine is a programming
// error and panics.
func New(device string, timeout time.Duration) *Stream {
	s := &Stream{
		id:         uuid.New(),
		device:     device,
		timeout:    timeout,
		creatorGID: goroutineID(),
		log:        xlog.For(nil, "stream"),
		reg:        metrics.Global(),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// ID returns the stream's identity, used in log fields and diagnostics.
func (s *Stream) ID() uuid.UUID { return s.id }

// Device returns the logical device label this stream was created for.
func (s *Stream) Device() string { return s.device }

func (s *Stream) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := fn(); err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.reg.StreamFaults.WithLabelValues(s.id.String()).Inc()
			s.log.Error().Err(err).Str("stream", s.id.String()).Str("device", s.device).
				Msg("stream closure failed; stream is poisoned")
		}
	}
}

// assertOwner panics if called from a goroutine other than the one that
// created the stream, per the single-producer invariant. This is a
// best-effort debugging assertion (see goroutineID), not a correctness
// mechanism: it catches accidental cross-goroutine submission in tests
// and development builds.
func (s *Stream) assertOwner() {
	if goroutineID() != s.creatorGID {
		panic("stream: enqueue from a goroutine other than the stream's creator")
	}
}

// Enqueue appends fn to the FIFO. It is O(1), never blocks, and is a
// no-op once the stream has been poisoned by a prior closure failure or
// closed.
func (s *Stream) Enqueue(fn Closure) {
	s.assertOwner()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil || s.closed {
		return
	}
	s.queue = append(s.queue, fn)
	s.cond.Signal()
}

// CreateEvent allocates a fresh, unrecorded StreamEvent.
func (s *Stream) CreateEvent() *Event {
	return NewEvent()
}

// Record appends a closure to self that signals e, and returns e for
// chaining (e.g. storage stamping write_completion = stream.Record(...)).
func (s *Stream) Record(e *Event) *Event {
	return e.RecordOn(s)
}

// SyncWith establishes a happens-before edge from other to self without
// blocking the submitting goroutine: it records e on other, then appends
// a wait-for-e closure to self. Every closure enqueued on self after this
// call observes every closure enqueued on other before e was recorded.
func (s *Stream) SyncWith(other *Stream, e *Event) {
	other.Record(e)
	s.WaitFor(e)
}

// WaitFor appends a closure to self that blocks the stream's worker
// (not the submitting goroutine) until e signals or self's timeout
// elapses.
func (s *Stream) WaitFor(e *Event) {
	s.Enqueue(func() error {
		return e.Wait(s.timeout)
	})
}

// BlockUntilIdle blocks the calling goroutine until every closure
// submitted so far has drained, by recording and waiting on a fresh
// event. It surfaces the stream's poisoned error, if any, exactly as a
// synchronous join is specified to.
func (s *Stream) BlockUntilIdle() error {
	s.assertOwner()
	e := s.CreateEvent()
	// Check for poisoning and append the signal closure under one lock: on
	// a poisoned stream Enqueue drops work, so the event would never fire.
	s.mu.Lock()
	if err := s.lastErr; err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue = append(s.queue, func() error { e.signal(); return nil })
	s.cond.Signal()
	s.mu.Unlock()
	if err := e.Wait(s.timeout); err != nil {
		return err
	}
	return s.LastError()
}

// ThrowTestError enqueues a closure that always fails, for exercising the
// stream-poisoning fault path in tests.
func (s *Stream) ThrowTestError() {
	s.Enqueue(func() error {
		return errors.New("stream: injected test error")
	})
}

// LastError returns the error that poisoned the stream, if any.
func (s *Stream) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops the worker goroutine once the FIFO drains. A closed stream
// accepts no further enqueues.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// goroutineID extracts the calling goroutine's runtime id by parsing the
// "goroutine N [...]" header of a stack trace. This is the standard
// best-effort hack for goroutine-local debugging assertions in Go (the
// runtime deliberately exposes no supported API for it); it is used here
// only to catch single-producer violations, never for control flow.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
