// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package gpu

import (
	"testing"
	"time"

	"github.com/born-ml/tensorcore/device"
)

func TestIsAvailable(t *testing.T) {
	available := IsAvailable()
	t.Logf("WebGPU available: %v", available)
}

// TestRegisterGPUAllocatesRealBuffers registers a two-device WebGPU service
// and checks that a buffer allocated on it is Discrete, zero-filled, and
// counted by the session's allocator stats.
func TestRegisterGPUAllocatesRealBuffers(t *testing.T) {
	p := device.NewPlatform()
	sess, err := RegisterGPU(p, 2, time.Second)
	if err != nil {
		t.Skipf("WebGPU not available on this system: %v", err)
	}
	defer sess.Release()

	svc, err := p.Service(ServiceID)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if svc.DeviceCount() != 2 {
		t.Fatalf("DeviceCount = %d, want 2", svc.DeviceCount())
	}

	dev0, err := svc.Device(0)
	if err != nil {
		t.Fatalf("Device(0): %v", err)
	}
	if dev0.Addressing() != device.Discrete {
		t.Fatalf("Addressing() = %v, want Discrete", dev0.Addressing())
	}

	buf, err := dev0.NewBuffer(64)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if buf.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", buf.Len())
	}
	for i, b := range buf.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (freshly allocated)", i, b)
		}
	}

	if got := sess.Stats().BuffersAllocated; got != 1 {
		t.Fatalf("BuffersAllocated = %d, want 1", got)
	}
}
