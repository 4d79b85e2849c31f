// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hep

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts planner activity. Metrics are safe for concurrent use and
// are typically shared by every compilation of a process. A nil *Metrics
// records nothing.
type Metrics struct {
	RuleApplications *prometheus.CounterVec
	Transformations  prometheus.Counter
	ConvertersAdded  prometheus.Counter
	Compilations     prometheus.Counter
	Failures         *prometheus.CounterVec
}

// NewMetrics creates unregistered metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RuleApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heplan",
			Subsystem: "planner",
			Name:      "rule_applications_total",
			Help:      "Number of successful rule applications, by rule.",
		}, []string{"rule"}),
		Transformations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heplan",
			Subsystem: "planner",
			Name:      "transformations_total",
			Help:      "Number of plan graph transformations.",
		}),
		ConvertersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heplan",
			Subsystem: "planner",
			Name:      "converters_added_total",
			Help:      "Number of edges converted by add-converters instructions.",
		}),
		Compilations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heplan",
			Subsystem: "compiler",
			Name:      "compilations_total",
			Help:      "Number of compilations started.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heplan",
			Subsystem: "compiler",
			Name:      "failures_total",
			Help:      "Number of failed compilations, by reason.",
		}, []string{"reason"}),
	}
}

// Register registers every metric with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.RuleApplications, m.Transformations, m.ConvertersAdded, m.Compilations, m.Failures,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ruleApplied(name string) {
	if m == nil {
		return
	}
	m.RuleApplications.WithLabelValues(name).Inc()
	m.Transformations.Inc()
}

func (m *Metrics) converterAdded() {
	if m == nil {
		return
	}
	m.ConvertersAdded.Inc()
	m.Transformations.Inc()
}

// CompilationStarted counts a compilation.
func (m *Metrics) CompilationStarted() {
	if m == nil {
		return
	}
	m.Compilations.Inc()
}

// CompilationFailed counts a failed compilation.
func (m *Metrics) CompilationFailed(reason string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(reason).Inc()
}
