// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/born-ml/tensorcore/xlog"
)

// ErrRemoteUnsupported is returned by Service.Open: remote-open by URL is
// specified but not implemented in this core.
var ErrRemoteUnsupported = errors.New("device: remote service open is not implemented in the core")

// ErrDeviceUnavailable indicates a requested service or device id does not
// exist and substitution was not requested.
var ErrDeviceUnavailable = errors.New("device: unavailable")

// ErrAllocation indicates backing memory for a device buffer could not be
// obtained.
var ErrAllocation = errors.New("device: allocation failure")

// Service groups the devices hosted by one compute backend (e.g. "cpu" or
// a discrete accelerator kind).
type Service struct {
	ID      string
	Kind    string
	devices []*Device
}

// NewService creates a Service with numDevices devices of the given
// addressing mode, each inheriting timeout for its streams' blocking
// waits. Buffers on these devices are plain host memory; use
// NewServiceWithAllocator to back them with a real device allocator.
func NewService(id, kind string, numDevices int, addressing Addressing, timeout time.Duration) *Service {
	return NewServiceWithAllocator(id, kind, numDevices, addressing, timeout, nil)
}

// NewServiceWithAllocator is NewService with an explicit per-buffer
// allocator. Package gpu uses this to register a service whose buffers are
// backed by real WebGPU device memory instead of make([]byte, size).
func NewServiceWithAllocator(id, kind string, numDevices int, addressing Addressing, timeout time.Duration, allocator Allocator) *Service {
	svc := &Service{ID: id, Kind: kind}
	for i := 0; i < numDevices; i++ {
		svc.devices = append(svc.devices, &Device{
			service:    svc,
			id:         i,
			addressing: addressing,
			timeout:    timeout,
			log:        xlog.For(nil, "device"),
			allocator:  allocator,
		})
	}
	return svc
}

// Devices returns every device this service hosts.
func (s *Service) Devices() []*Device {
	return s.devices
}

// Device returns the device with the given id.
func (s *Service) Device(id int) (*Device, error) {
	if id < 0 || id >= len(s.devices) {
		return nil, fmt.Errorf("%w: %s device %d (have %d)", ErrDeviceUnavailable, s.ID, id, len(s.devices))
	}
	return s.devices[id], nil
}

// DeviceCount returns the number of devices this service hosts.
func (s *Service) DeviceCount() int { return len(s.devices) }

// Open resolves a remote device by URL. Not implemented in the core: the
// platform/service enumeration shell is an external collaborator.
func (s *Service) Open(url string) (*Device, error) {
	return nil, fmt.Errorf("%w: %s", ErrRemoteUnsupported, url)
}
