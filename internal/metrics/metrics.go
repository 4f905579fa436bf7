// Copyright 2025 The Workspaced Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus metrics for async-storage pod cleanup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// AsyncStorageMetrics holds Prometheus metrics for async-storage pod cleanup.
type AsyncStorageMetrics struct {
	// RemovalsTotal counts cleanup decisions and results by outcome.
	RemovalsTotal *prometheus.CounterVec
	// DeletionWaitSeconds tracks how long deletions take to be confirmed.
	DeletionWaitSeconds prometheus.Histogram
}

// NewAsyncStorageMetrics creates the metrics and registers them with the
// controller-runtime registry served on the manager's metrics endpoint.
func NewAsyncStorageMetrics() *AsyncStorageMetrics {
	return newAsyncStorageMetricsWithRegistry(ctrlmetrics.Registry)
}

// newAsyncStorageMetricsWithRegistry creates metrics with a custom registry for testing.
func newAsyncStorageMetricsWithRegistry(reg prometheus.Registerer) *AsyncStorageMetrics {
	factory := promauto.With(reg)
	return &AsyncStorageMetrics{
		RemovalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workspaced_async_storage_removals_total",
			Help: "Total number of async-storage pod cleanup decisions by outcome",
		}, []string{"outcome"}),

		DeletionWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "workspaced_async_storage_deletion_wait_seconds",
			Help:    "Time between deleting the async-storage pod and observing its removal",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// RecordOutcome increments the removal counter for outcome.
func (m *AsyncStorageMetrics) RecordOutcome(outcome string) {
	m.RemovalsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDeletionWait records a confirmed deletion's wait time.
func (m *AsyncStorageMetrics) ObserveDeletionWait(d time.Duration) {
	m.DeletionWaitSeconds.Observe(d.Seconds())
}
