// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics exposes the Prometheus counters and gauges the runtime
// core updates as it migrates replicas, allocates device buffers, and
// poisons streams. A single process-wide registry is used, mirroring how
// most Go services wire a default Prometheus registry; tests that want
// isolation construct their own registry with NewRegistry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the tensor core emits.
type Registry struct {
	Migrations       *prometheus.CounterVec
	BytesMigrated    prometheus.Counter
	AllocFailures    prometheus.Counter
	StreamFaults     *prometheus.CounterVec
	ActiveReplicas   prometheus.Gauge
	WriteCompletions prometheus.Counter
}

// NewRegistry builds a fresh Registry and registers its metrics with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tensorcore",
			Name:      "replica_migrations_total",
			Help:      "Replica migrations performed, labeled by migration case.",
		}, []string{"case"}),
		BytesMigrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorcore",
			Name:      "replica_bytes_migrated_total",
			Help:      "Total bytes copied across all replica migrations.",
		}),
		AllocFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorcore",
			Name:      "device_buffer_alloc_failures_total",
			Help:      "Device buffer allocations that failed.",
		}),
		StreamFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tensorcore",
			Name:      "stream_faults_total",
			Help:      "Closures that failed inside a stream, labeled by stream id.",
		}, []string{"stream"}),
		ActiveReplicas: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tensorcore",
			Name:      "active_replicas",
			Help:      "Number of live per-device replicas across all storages.",
		}),
		WriteCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorcore",
			Name:      "write_completions_total",
			Help:      "StreamEvents recorded as write-completion barriers.",
		}),
	}
	reg.MustRegister(r.Migrations, r.BytesMigrated, r.AllocFailures, r.StreamFaults, r.ActiveReplicas, r.WriteCompletions)
	return r
}

var global = NewRegistry(prometheus.DefaultRegisterer)

// Global returns the process-wide Registry backed by Prometheus's default
// registry. Most callers should use this; constructing a private Registry
// is mainly useful for tests that don't want MustRegister panics on reuse.
func Global() *Registry { return global }
