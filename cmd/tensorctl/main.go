// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Command tensorctl is the tensor runtime core's ambient CLI: it
// enumerates the registered platform, runs the cross-device migration
// scenario end to end, and prints replica and allocator stats.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/dtype"
	"github.com/born-ml/tensorcore/gpu"
	"github.com/born-ml/tensorcore/storage"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("tensorctl %s\n", version)
		return
	}

	p := device.NewPlatform()

	p.Register(device.NewService("sim-discrete", "simulated-discrete", 2, device.Discrete, 5*time.Second))

	var gpuSess *gpu.Session
	if sess, err := gpu.RegisterGPU(p, 1, 5*time.Second); err != nil {
		fmt.Printf("gpu: unavailable, continuing without it: %v\n", err)
	} else {
		gpuSess = sess
		defer gpuSess.Release()
	}

	fmt.Println("tensorctl - Born ML Framework tensor runtime core")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("Platform services:")
	for _, svc := range p.Services() {
		fmt.Printf("  %-16s devices=%d\n", svc.ID, svc.DeviceCount())
	}
	fmt.Println()

	if err := runScenarioS2(p); err != nil {
		fmt.Fprintf(os.Stderr, "scenario S2 failed: %v\n", err)
		os.Exit(1)
	}

	if gpuSess != nil {
		stats := gpuSess.Stats()
		fmt.Printf("gpu allocator: buffers=%d uploaded=%dB read_back=%dB\n",
			stats.BuffersAllocated, stats.BytesUploaded, stats.BytesReadBack)
	}
}

// runScenarioS2 replays the cross-device migration scenario: a (2,3,4)
// tensor filled with 0..24 on the host, accessed in a sequence of
// read_only/read_write calls across the host and two simulated-discrete
// devices, printing the replica bookkeeping after each step.
func runScenarioS2(p *device.Platform) error {
	const count = 2 * 3 * 4
	data := make([]byte, count*dtype.I32.Size())
	for i := 0; i < count; i++ {
		v := int32(i)
		data[i*4] = byte(v)
		data[i*4+1] = byte(v >> 8)
		data[i*4+2] = byte(v >> 16)
		data[i*4+3] = byte(v >> 24)
	}

	host := p.CPU()
	svc, err := p.Service("sim-discrete")
	if err != nil {
		return err
	}
	d1, err := svc.Device(0)
	if err != nil {
		return err
	}
	d2, err := svc.Device(1)
	if err != nil {
		return err
	}

	st, err := storage.NewFromHost(host, dtype.I32, data, false)
	if err != nil {
		return err
	}

	step := func(label string, dev *device.Device, mutating bool) error {
		var err error
		if mutating {
			_, err = st.ReadWrite(dev, nil)
			if err == nil {
				st.CommitWrite(nil)
			}
		} else {
			_, err = st.ReadOnly(dev, nil)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		stats := st.Stats()
		fmt.Printf("  %-28s replicas=%d master_version=%d\n", label, stats.ReplicaCount, stats.MasterVersion)
		return nil
	}

	fmt.Println("Scenario S2 (cross-device migration):")
	steps := []struct {
		label    string
		dev      *device.Device
		mutating bool
	}{
		{"read_only() [host]", host, false},
		{"read_only() [host]", host, false},
		{"read_only(d1)", d1, false},
		{"read_only() [host]", host, false},
		{"read_write(d1)", d1, true},
		{"read_only(d2)", d2, false},
		{"read_write(d1)", d1, true},
		{"read_only(d2)", d2, false},
		{"read_write(d2)", d2, true},
		{"read_write(d1)", d1, true},
		{"read_write(d2)", d2, true},
		{"read_only() [host]", host, false},
	}
	for _, st2 := range steps {
		if err := step(st2.label, st2.dev, st2.mutating); err != nil {
			return err
		}
	}
	return nil
}
