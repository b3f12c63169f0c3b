// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package storage implements the multi-master replica cache: the
// per-logical-tensor master-version and replica dictionary, the migration
// policy that moves bytes between devices, and the copy-on-write
// bookkeeping views rely on.
//
// This is the heart of the tensor runtime core. Everything else — views,
// iterators, the public tensor surface — is a reader or writer of a
// Storage through ReadOnly/ReadWrite.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/dtype"
	"github.com/born-ml/tensorcore/metrics"
	"github.com/born-ml/tensorcore/stream"
	"github.com/born-ml/tensorcore/xlog"
)

// ErrReadOnlyViolation is returned by ReadWrite on a read-only-reference
// storage.
var ErrReadOnlyViolation = errors.New("storage: read_write on a read-only storage")

// Storage is the logical backing of a tensor: it owns zero or more
// per-device replicas and a monotonic master version. Exactly one replica
// may carry version == masterVersion at any time; others are stale
// (version < masterVersion) or never written (version == -1).
type Storage struct {
	mu sync.Mutex

	elementType dtype.Kind
	count       int
	readOnly    bool

	master        *device.Key
	masterVersion int64
	replicas      map[device.Key]*device.Buffer

	writeCompletion       *stream.Event
	lastAccessMutatedView bool

	// host is used only to stage cross-service discrete<->discrete
	// migrations through an intermediate host buffer. It is passed in
	// explicitly at construction, per the design note against hidden
	// platform globals.
	host *device.Device

	refs atomic.Int32

	log zerolog.Logger
	reg *metrics.Registry
}

// New creates an empty storage (never written; any replica is a valid
// zero initializer) for count elements of elementType. host is used
// solely to stage cross-service migrations; pass the platform's CPU
// device.
func New(host *device.Device, elementType dtype.Kind, count int, readOnly bool) *Storage {
	st := &Storage{
		elementType: elementType,
		count:       count,
		readOnly:    readOnly,
		replicas:    make(map[device.Key]*device.Buffer),
		host:        host,
		log:         xlog.For(nil, "storage"),
		reg:         metrics.Global(),
	}
	st.refs.Store(1)
	return st
}

// NewFromHost creates a storage already initialized from host-resident
// bytes: the host device's replica is seeded as the master at version 0.
// readOnly marks the storage as a read-only reference (ReadWrite always
// fails on it).
func NewFromHost(host *device.Device, elementType dtype.Kind, data []byte, readOnly bool) (*Storage, error) {
	count := len(data) / elementType.Size()
	st := New(host, elementType, count, readOnly)
	buf, err := host.NewBuffer(len(data))
	if err != nil {
		return nil, err
	}
	copy(buf.Bytes(), data)
	buf.Version = 0
	key := host.Key()
	st.replicas[key] = buf
	st.master = &key
	st.masterVersion = 0
	return st, nil
}

// CopyFrom creates a new storage of the same shape and type as src, with
// its initial master replica copied (asynchronously, on s) from src's
// current contents as seen on dev. Resolving src's own ReadOnly access
// first lets storage's own migration logic bring the bytes onto dev, so
// this never needs to duplicate the migration policy.
func CopyFrom(src *Storage, dev *device.Device, s *stream.Stream) (*Storage, error) {
	srcBuf, err := src.ReadOnly(dev, s)
	if err != nil {
		return nil, err
	}
	dst := New(src.host, src.elementType, src.count, false)
	dstBuf, err := dst.ReadWrite(dev, s)
	if err != nil {
		return nil, err
	}
	if s == nil {
		copy(dstBuf.Bytes(), srcBuf.Bytes())
		dst.CommitWrite(nil)
		return dst, nil
	}
	s.Enqueue(func() error {
		copy(dstBuf.Bytes(), srcBuf.Bytes())
		return nil
	})
	dst.CommitWrite(s)
	return dst, nil
}

// ElementType returns the storage's element kind.
func (st *Storage) ElementType() dtype.Kind { return st.elementType }

// Count returns the logical element count.
func (st *Storage) Count() int { return st.count }

// ReadOnly returns a buffer reflecting the current master contents, on
// dev, resolved via s. When s is nil, the call blocks the calling
// goroutine (the "read_only() without a stream" host-fetch case): an
// internal stream drives the migration and is drained before returning.
func (st *Storage) ReadOnly(dev *device.Device, s *stream.Stream) (*device.Buffer, error) {
	return st.resolve(dev, s, false)
}

// ReadWrite returns a mutable buffer for dev, resolved via s, after
// advancing the master version. It fails with ErrReadOnlyViolation if the
// storage is a read-only reference.
//
// ReadWrite only resolves access: it does not yet mark the write
// complete, because the caller's actual mutation is typically enqueued
// on s *after* this call returns. Once that work is enqueued, the
// caller must call CommitWrite(s) so that other streams synchronizing
// on this storage wait for the real write, not merely for access being
// granted.
func (st *Storage) ReadWrite(dev *device.Device, s *stream.Stream) (*device.Buffer, error) {
	if st.readOnly {
		return nil, fmt.Errorf("%w", ErrReadOnlyViolation)
	}
	return st.resolve(dev, s, true)
}

// CommitWrite records a fresh write_completion event on s and installs
// it as the storage's current write_completion, superseding whatever
// was there before. Call it once the mutating closures made possible by
// the preceding ReadWrite have all been enqueued on s. s == nil commits
// a synchronous host write: the completion is already satisfied.
func (st *Storage) CommitWrite(s *stream.Stream) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s == nil {
		ev := stream.NewEvent()
		ev.ForceSignal()
		st.writeCompletion = ev
	} else {
		ev := s.CreateEvent()
		s.Record(ev)
		st.writeCompletion = ev
	}
	st.reg.WriteCompletions.Inc()
}

// resolve implements the seven-step access algorithm: wait for the
// pending write, resolve or create the target replica, migrate it if
// stale, and (for a mutating access) promote it to master.
func (st *Storage) resolve(dev *device.Device, s *stream.Stream, mutating bool) (*device.Buffer, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	// Step 2: wait for the current write_completion, if any. A caller
	// submitting on its own stream arranges this as a non-blocking
	// happens-before edge; a host caller (s == nil) blocks.
	if st.writeCompletion != nil {
		if s != nil {
			s.WaitFor(st.writeCompletion)
		} else if err := st.writeCompletion.Wait(dev.Timeout()); err != nil {
			return nil, err
		}
	}

	// Step 3: resolve or create the replica for dev.
	key := dev.Key()
	replica, existed := st.replicas[key]
	if !existed {
		buf, err := dev.NewBuffer(st.count * st.elementType.Size())
		if err != nil {
			st.reg.AllocFailures.Inc()
			return nil, err
		}
		replica = buf
		st.replicas[key] = replica
		st.reg.ActiveReplicas.Inc()
	}

	// Host callers with no stream of their own need somewhere to enqueue
	// migration work; an ephemeral stream models a one-shot blocking drain
	// for this path.
	workStream := s
	var owned *stream.Stream
	if workStream == nil {
		owned = dev.NewStream()
		workStream = owned
		defer owned.Close()
	}

	// Step 4: migrate if the replica is stale relative to the master.
	if st.master != nil && replica.Version != st.masterVersion {
		if err := st.migrate(*st.master, key, workStream); err != nil {
			return nil, err
		}
		replica.Version = st.masterVersion
	}

	// Step 5: on a mutating access, this replica becomes the master. Step
	// 6 (recording write_completion) is deferred to CommitWrite, called
	// once the caller has enqueued its actual mutating closure.
	if mutating {
		st.master = &key
		st.masterVersion++
		replica.Version = st.masterVersion
	}

	if owned != nil {
		if err := owned.BlockUntilIdle(); err != nil {
			return nil, err
		}
	}

	return replica, nil
}

// migrate copies bytes from the master replica to the target replica,
// picking the cheapest path for the pair's addressing modes: aliasing
// when both are host-visible, a direct copy when one side is, a peer
// copy for same-service discrete pairs, and a host-staged two-hop copy
// for cross-service discrete pairs.
func (st *Storage) migrate(masterKey, targetKey device.Key, s *stream.Stream) error {
	masterBuf := st.replicas[masterKey]
	targetBuf := st.replicas[targetKey]
	sameService := masterKey.ServiceID == targetKey.ServiceID

	switch {
	case masterBuf.Addressing == device.Unified && targetBuf.Addressing == device.Unified:
		targetBuf.CopyAsyncFromHost(masterBuf.Bytes(), s)
		st.reg.Migrations.WithLabelValues("unified_unified").Inc()

	case masterBuf.Addressing == device.Unified && targetBuf.Addressing == device.Discrete:
		targetBuf.CopyAsyncFromHost(masterBuf.Bytes(), s)
		st.reg.Migrations.WithLabelValues("unified_to_discrete").Inc()
		st.reg.BytesMigrated.Add(float64(targetBuf.Len()))

	case masterBuf.Addressing == device.Discrete && targetBuf.Addressing == device.Unified:
		if err := masterBuf.CopyToHost(targetBuf.Bytes(), s); err != nil {
			return err
		}
		st.reg.Migrations.WithLabelValues("discrete_to_unified").Inc()
		st.reg.BytesMigrated.Add(float64(targetBuf.Len()))

	case sameService: // discrete -> discrete, same service: peer copy.
		if err := targetBuf.CopyAsyncFromBuffer(masterBuf, s); err != nil {
			return err
		}
		st.reg.Migrations.WithLabelValues("peer").Inc()
		st.reg.BytesMigrated.Add(float64(targetBuf.Len()))

	default: // discrete -> discrete, different services: stage through host.
		hostKey := st.host.Key()
		hostBuf, existed := st.replicas[hostKey]
		if !existed {
			var err error
			hostBuf, err = st.host.NewBuffer(masterBuf.Len())
			if err != nil {
				return err
			}
			st.replicas[hostKey] = hostBuf
		}
		if err := masterBuf.CopyToHost(hostBuf.Bytes(), s); err != nil {
			return err
		}
		targetBuf.CopyAsyncFromHost(hostBuf.Bytes(), s)
		st.reg.Migrations.WithLabelValues("staged_cross_service").Inc()
		st.reg.BytesMigrated.Add(float64(2 * targetBuf.Len()))
	}
	return nil
}

// AddRef increments the shared-owner count. Views call this when they
// are cloned (copying a view is cheap: clone the struct, bump the count).
func (st *Storage) AddRef() { st.refs.Add(1) }

// IsUnique reports whether exactly one view currently references this
// storage, the precondition for skipping copy-on-write.
func (st *Storage) IsUnique() bool { return st.refs.Load() == 1 }

// Refs returns the current shared-owner count, for diagnostics.
func (st *Storage) Refs() int32 { return st.refs.Load() }

// Release decrements the shared-owner count. When it reaches zero, it
// waits on the current write_completion (if any) so that queued writes
// finish before the replica buffers become eligible for collection.
func (st *Storage) Release() {
	if st.refs.Add(-1) != 0 {
		return
	}
	st.mu.Lock()
	wc := st.writeCompletion
	st.mu.Unlock()
	if wc != nil {
		_ = wc.Wait(0)
	}
}

// SetLastAccessMutatedView is called by package view when a read_write
// access triggers a copy-on-write clone, for testability.
func (st *Storage) SetLastAccessMutatedView(v bool) {
	st.mu.Lock()
	st.lastAccessMutatedView = v
	st.mu.Unlock()
}

// LastAccessMutatedView reports whether the most recent access to this
// storage cloned a view's backing storage.
func (st *Storage) LastAccessMutatedView() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastAccessMutatedView
}

// Stats summarizes replica counts for diagnostics and the ambient CLI.
type Stats struct {
	ReplicaCount  int
	MasterVersion int64
}

// Stats returns a snapshot of the storage's replica bookkeeping.
func (st *Storage) Stats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Stats{ReplicaCount: len(st.replicas), MasterVersion: st.masterVersion}
}
