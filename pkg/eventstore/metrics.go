package eventstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	appendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaf",
		Subsystem: "eventstore",
		Name:      "append_total",
		Help:      "Append calls by outcome (ok, conflict, failure).",
	}, []string{"outcome"})

	appendEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eaf",
		Subsystem: "eventstore",
		Name:      "append_events_total",
		Help:      "Total number of individual events persisted.",
	})

	loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eaf",
		Subsystem: "eventstore",
		Name:      "load_duration_seconds",
		Help:      "Latency of Load/LoadFrom calls.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Collectors returns the metrics this package registers, for use with a
// shared prometheus.Registry at process startup.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{appendTotal, appendEventsTotal, loadDuration}
}

func recordAppend(outcome string, eventCount int) {
	appendTotal.WithLabelValues(outcome).Inc()
	if eventCount > 0 {
		appendEventsTotal.Add(float64(eventCount))
	}
}

// prometheusTimer starts a load-latency observation; call the returned
// func once the operation completes.
func prometheusTimer() func() {
	start := time.Now()
	return func() {
		loadDuration.Observe(time.Since(start).Seconds())
	}
}
