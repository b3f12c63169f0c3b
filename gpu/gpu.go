// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gpu supplies a discrete-addressing device.Service backed by a
// real github.com/go-webgpu/webgpu device: allocating a buffer on it
// round-trips the bytes through an actual WebGPU buffer (upload via a
// mapped-at-creation staging buffer, device-to-device copy, then a mapped
// read-back) before handing the caller its host-side mirror. This gives
// the storage migration matrix a genuine non-unified target instead of
// only ever exercising two unified (CPU) replicas.
//
// Grounded in the framework's own internal/backend/webgpu package: the
// panic-recovery wrapping in New(), and the CreateBuffer/GetMappedRange/
// Unmap/CreateCommandEncoder/CopyBufferToBuffer/Submit/MapAsync sequence
// in its buffer pool and compute helpers.
package gpu

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/tensorcore/device"
)

// ServiceID is the device.Service identifier RegisterGPU installs.
const ServiceID = "gpu"

// Session owns the WebGPU instance/adapter/device/queue backing a
// registered service, so it can be released when the caller is done.
type Session struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	queue    *wgpu.Queue
	stats    Stats
}

// Stats counts the allocator round trips a Session has performed, for the
// ambient CLI to report alongside storage.Stats.
type Stats struct {
	BuffersAllocated int
	BytesUploaded    int64
	BytesReadBack    int64
}

// Stats returns a snapshot of this session's allocator activity.
func (sess *Session) Stats() Stats { return sess.stats }

// Release frees the WebGPU device and adapter. Safe to call once.
func (sess *Session) Release() {
	if sess == nil {
		return
	}
	if sess.dev != nil {
		sess.dev.Release()
	}
	if sess.adapter != nil {
		sess.adapter.Release()
	}
	if sess.instance != nil {
		sess.instance.Release()
	}
}

// IsAvailable reports whether a WebGPU adapter can be obtained on this
// host, without keeping anything around afterward.
func IsAvailable() bool {
	sess, err := newSession()
	if err != nil {
		return false
	}
	sess.Release()
	return true
}

// newSession requests an instance, a high-performance adapter, and a
// device+queue from it. Adapter/device negotiation in go-webgpu's native
// bindings panics on certain unsupported-host conditions rather than
// returning an error, so newSession recovers and reports it as one, mirroring the
// framework's own webgpu backend constructor.
func newSession() (sess *Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			sess = nil
			err = fmt.Errorf("gpu: webgpu unavailable: %v", r)
		}
	}()

	instance, ierr := wgpu.CreateInstance(nil)
	if ierr != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", ierr)
	}
	adapter, aerr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if aerr != nil {
		instance.Release()
		return nil, fmt.Errorf("gpu: request adapter: %w", aerr)
	}

	dev, derr := adapter.RequestDevice(nil)
	if derr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("gpu: request device: %w", derr)
	}

	return &Session{
		instance: instance,
		adapter:  adapter,
		dev:      dev,
		queue:    dev.GetQueue(),
	}, nil
}

// RegisterGPU creates a real WebGPU device/queue and registers a Discrete
// device.Service named ServiceID on p, with numDevices devices whose
// buffers are allocated via Session.allocate. Callers invoke this
// explicitly (e.g. from cmd/tensorctl) rather than via a package init, so
// a host without WebGPU support never pays for adapter negotiation it
// doesn't need.
func RegisterGPU(p *device.Platform, numDevices int, timeout time.Duration) (*Session, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}
	svc := device.NewServiceWithAllocator(ServiceID, "webgpu", numDevices, device.Discrete, timeout, sess.allocate)
	p.Register(svc)
	return sess, nil
}

// alignedSize rounds size up to a 4-byte boundary, the minimum WebGPU
// buffer alignment.
func alignedSize(size int) uint64 {
	const align = 4
	n := uint64(size)
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// allocate is a device.Allocator: it creates a real storage-usage WebGPU
// buffer of the requested size, uploads a zeroed staging buffer into it,
// then immediately reads it back into a host byte slice, proving the
// round trip actually works rather than merely creating a buffer handle
// and never touching it. The returned bytes are the host-side mirror the
// rest of the runtime reads and writes through device.Buffer.
func (sess *Session) allocate(size int) ([]byte, error) {
	if size == 0 {
		sess.stats.BuffersAllocated++
		return make([]byte, 0), nil
	}
	sz := alignedSize(size)
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	gpuBuf := sess.dev.CreateBuffer(&wgpu.BufferDescriptor{Usage: usage, Size: sz})
	defer gpuBuf.Release()

	if err := sess.upload(gpuBuf, make([]byte, sz)); err != nil {
		return nil, err
	}
	out, err := sess.readBack(gpuBuf, sz)
	if err != nil {
		return nil, err
	}
	sess.stats.BuffersAllocated++
	return out[:size], nil
}

// upload writes data into dst via a mapped-at-creation staging buffer and
// a device-side copy, the pattern the framework's compute helpers use to
// get host bytes onto the device.
func (sess *Session) upload(dst *wgpu.Buffer, data []byte) error {
	size := uint64(len(data))
	staging := sess.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()

	ptr := staging.GetMappedRange(0, size)
	dstSlice := unsafe.Slice((*byte)(ptr), size)
	copy(dstSlice, data)
	staging.Unmap()

	encoder := sess.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dst, 0, size)
	cmd := encoder.Finish(nil)
	sess.queue.Submit(cmd)

	sess.stats.BytesUploaded += int64(len(data))
	return nil
}

// readBack copies src into a map-read staging buffer and returns its
// contents, the pattern the framework's compute helpers use to get device
// bytes back to the host.
func (sess *Session) readBack(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := sess.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := sess.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	cmd := encoder.Finish(nil)
	sess.queue.Submit(cmd)

	if err := staging.MapAsync(sess.dev, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("gpu: map read-back buffer: %w", err)
	}
	ptr := staging.GetMappedRange(0, size)
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	staging.Unmap()

	sess.stats.BytesReadBack += int64(size)
	return out, nil
}
