// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"sync"
	"time"
)

// CPUServiceID is the identifier of the always-present host CPU service.
const CPUServiceID = "cpu"

// Platform is a process-wide enumeration of services and their devices.
// It is not a package-level singleton: callers construct one explicitly
// (typically once, at process start) and pass it to whatever needs to
// resolve a default device, per the design note on avoiding hidden
// globals.
type Platform struct {
	mu       sync.Mutex
	services map[string]*Service
	order    []string
}

// NewPlatform returns a Platform with the host CPU service already
// registered as a single unified device, guaranteed to exist.
func NewPlatform() *Platform {
	p := &Platform{services: make(map[string]*Service)}
	p.Register(NewService(CPUServiceID, "cpu", 1, Unified, 0))
	return p
}

// Register adds svc to the platform. Registering a service with an
// already-used ID replaces the previous one.
func (p *Platform) Register(svc *Service) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.services[svc.ID]; !exists {
		p.order = append(p.order, svc.ID)
	}
	p.services[svc.ID] = svc
}

// Services returns every registered service, in registration order.
func (p *Platform) Services() []*Service {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Service, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.services[id])
	}
	return out
}

// Service looks up a registered service by id.
func (p *Platform) Service(id string) (*Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	svc, ok := p.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: service %q", ErrDeviceUnavailable, id)
	}
	return svc, nil
}

// CPU returns the always-present host CPU device (device 0 of the "cpu"
// service).
func (p *Platform) CPU() *Device {
	svc, err := p.Service(CPUServiceID)
	if err != nil {
		panic("device: platform missing guaranteed cpu service: " + err.Error())
	}
	dev, err := svc.Device(0)
	if err != nil {
		panic("device: platform's cpu service has no device 0: " + err.Error())
	}
	return dev
}

// Default resolves the default device by walking servicePriority in
// order: for each named service, it returns the device at
// deviceIDPriority[0] if that id is valid for the service, else
// deviceIDPriority[0] mod device_count; it falls back to the host CPU
// device, which always exists.
func (p *Platform) Default(servicePriority []string, deviceIDPriority []int) *Device {
	idx := 0
	if len(deviceIDPriority) > 0 {
		idx = deviceIDPriority[0]
	}
	for _, sid := range servicePriority {
		svc, err := p.Service(sid)
		if err != nil || svc.DeviceCount() == 0 {
			continue
		}
		if dev, err := svc.Device(idx); err == nil {
			return dev
		}
		mod := idx % svc.DeviceCount()
		if mod < 0 {
			mod += svc.DeviceCount()
		}
		dev, _ := svc.Device(mod)
		return dev
	}
	return p.CPU()
}

// DefaultTimeout is used by callers that create standalone devices
// outside of a Platform (e.g. in tests) and want the "0 means wait
// forever" default made explicit.
const DefaultTimeout time.Duration = 0
