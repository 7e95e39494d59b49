// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK       = "ok"
	outcomeFailed   = "failed"
	outcomeCanceled = "canceled"
)

// Metrics holds the Prometheus collectors of batch runs. A nil
// *Metrics records nothing.
type Metrics struct {
	Chunks   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewMetrics returns Metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fqbatch",
			Name:      "chunks_total",
			Help:      "Number of chunks processed by operation and outcome.",
		}, []string{"op", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fqbatch",
			Name:      "chunk_duration_seconds",
			Help:      "Time taken to process a chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"op"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fqbatch",
			Name:      "chunks_in_flight",
			Help:      "Number of chunks being processed.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.Chunks, m.Duration, m.InFlight)
	return m
}

func (m *Metrics) start(op string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(op).Inc()
}

func (m *Metrics) done(op string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(op).Dec()
}

func (m *Metrics) observe(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(op, outcome).Inc()
	if outcome != outcomeCanceled || d > 0 {
		m.Duration.WithLabelValues(op).Observe(d.Seconds())
	}
}
