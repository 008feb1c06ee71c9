package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry       *prometheus.Registry
	ActiveTests    prometheus.Gauge
	ActiveWorkers  prometheus.Gauge
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	TestsTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveTests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "load_tester",
			Name:      "active_tests",
			Help:      "Number of tests currently running",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "load_tester",
			Name:      "active_workers",
			Help:      "Number of virtual users currently launched",
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "load_tester",
			Name:      "actions_total",
			Help:      "Total executed actions by scenario and outcome",
		}, []string{"scenario", "outcome"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "load_tester",
			Name:      "action_duration_seconds",
			Help:      "Action round-trip time by scenario",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scenario"}),
		TestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "load_tester",
			Name:      "tests_total",
			Help:      "Total finished tests by final status",
		}, []string{"status"}),
	}
	r.MustRegister(m.ActiveTests, m.ActiveWorkers, m.ActionsTotal, m.ActionDuration, m.TestsTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
