// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device models the platform/service/device enumeration, the
// per-device byte buffer, and the migration-relevant addressing mode
// (unified vs. discrete memory). It hosts streams (package stream) but
// never imports storage or view, keeping the dependency graph a DAG.
package device

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/born-ml/tensorcore/stream"
)

// Addressing describes whether a device's memory is directly host-visible
// (Unified) or requires an explicit copy to and from the host (Discrete).
type Addressing int

const (
	// Unified devices share the host's address space: a buffer on such a
	// device IS host memory, so migrating to or from it is free.
	Unified Addressing = iota
	// Discrete devices have their own memory; migrating to or from them
	// requires an actual copy.
	Discrete
)

// String renders the addressing mode for log fields and diagnostics.
func (a Addressing) String() string {
	if a == Unified {
		return "unified"
	}
	return "discrete"
}

// Key identifies a device by (service, device id) pair. It is comparable
// and used as the replica dictionary key in package storage.
type Key struct {
	ServiceID string
	DeviceID  int
}

// String renders the key as "service:id".
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.ServiceID, k.DeviceID)
}

// Allocator obtains the backing bytes for a newly allocated buffer of the
// given size. A service that leaves this nil gets the default host-memory
// allocation; a service backed by real device memory (package gpu) installs
// one that round-trips the allocation through its native buffer API.
type Allocator func(size int) ([]byte, error)

// Device is one compute device within a Service: it can allocate buffers
// and create streams, and it carries the default blocking-wait timeout
// its streams inherit.
type Device struct {
	service    *Service
	id         int
	addressing Addressing
	timeout    time.Duration
	log        zerolog.Logger
	allocator  Allocator
}

// Key returns this device's (service, id) identity.
func (d *Device) Key() Key { return Key{ServiceID: d.service.ID, DeviceID: d.id} }

// Addressing reports whether this device shares the host's address space.
func (d *Device) Addressing() Addressing { return d.addressing }

// Timeout returns the default blocking-wait timeout streams on this
// device inherit (0 means wait forever).
func (d *Device) Timeout() time.Duration { return d.timeout }

// Service returns the owning service.
func (d *Device) Service() *Service { return d.service }

// NewStream creates a fresh per-device command stream. The calling
// goroutine becomes the stream's sole permitted enqueuer.
func (d *Device) NewStream() *stream.Stream {
	return stream.New(d.Key().String(), d.timeout)
}

// NewBuffer allocates a zero-initialized, uninitialized-version buffer of
// size bytes on this device. When the device's service was constructed
// with an Allocator, that allocator supplies the backing bytes; otherwise
// the buffer is plain host memory.
func (d *Device) NewBuffer(size int) (*Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, size)
	}
	data := make([]byte, size)
	if d.allocator != nil {
		alloc, err := d.allocator(size)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
		}
		data = alloc
	}
	return &Buffer{
		Dev:        d,
		data:       data,
		Version:    -1,
		Addressing: d.addressing,
	}, nil
}

// logger returns the device's sub-logger, tagged component=device.
func (d *Device) logger() zerolog.Logger {
	return d.log
}
