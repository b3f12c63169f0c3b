// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	"fmt"

	"github.com/born-ml/tensorcore/stream"
)

// Buffer is a contiguous byte region living on one device, with async
// copy primitives enqueued on a stream. Buffer never advances its own
// Version; that is entirely controlled by package storage, which treats
// Version as "the master_version this replica last satisfied" (-1 means
// never written).
type Buffer struct {
	Dev        *Device
	data       []byte
	Version    int64
	Addressing Addressing
}

// Bytes returns the buffer's backing storage. For a Unified buffer this
// is literally host memory (no copy was ever needed to get here); for a
// Discrete buffer it is the device-local shadow copy. Callers must only
// read or write it from within a closure enqueued on the buffer's owning
// stream, or after that stream has been drained.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the buffer's size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Zero enqueues an async clear of the buffer's contents on s.
func (b *Buffer) Zero(s *stream.Stream) {
	s.Enqueue(func() error {
		for i := range b.data {
			b.data[i] = 0
		}
		return nil
	})
}

// CopyAsyncFromBuffer enqueues a peer device-to-device copy from src into
// b on s. It is only valid when src and b live on the same service; the
// cross-service case is staged through a host buffer by package storage,
// not performed here.
func (b *Buffer) CopyAsyncFromBuffer(src *Buffer, s *stream.Stream) error {
	if src.Dev.Service().ID != b.Dev.Service().ID {
		return fmt.Errorf("device: peer copy requires same service, got %s and %s",
			src.Dev.Service().ID, b.Dev.Service().ID)
	}
	s.Enqueue(func() error {
		n := copy(b.data, src.data)
		if n != len(b.data) {
			return fmt.Errorf("device: peer copy truncated: copied %d of %d bytes", n, len(b.data))
		}
		return nil
	})
	return nil
}

// CopyAsyncFromHost enqueues a host-to-device async copy on s. When b is
// Unified, the host bytes ARE the buffer (same address space): this
// aliases src directly rather than copying, so it is free regardless of
// size.
func (b *Buffer) CopyAsyncFromHost(src []byte, s *stream.Stream) {
	if b.Addressing == Unified {
		s.Enqueue(func() error {
			b.data = src
			return nil
		})
		return
	}
	s.Enqueue(func() error {
		copy(b.data, src)
		return nil
	})
}

// CopyToHost enqueues a device-to-host copy on s and blocks the calling
// goroutine until it drains: this is the only synchronous copy primitive on
// Buffer.
func (b *Buffer) CopyToHost(dst []byte, s *stream.Stream) error {
	s.Enqueue(func() error {
		copy(dst, b.data)
		return nil
	})
	return s.BlockUntilIdle()
}
