package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eaf",
		Subsystem: "dispatch",
		Name:      "command_interceptor_duration_seconds",
		Help:      "tenant.command.interceptor.duration equivalent: command handler latency by type and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command_type", "outcome"})

	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eaf",
		Subsystem: "dispatch",
		Name:      "query_interceptor_duration_seconds",
		Help:      "tenant.query.interceptor.duration: query handler latency by type, outcome, and error_type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query_type", "outcome", "error_type"})

	eventDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eaf",
		Subsystem: "dispatch",
		Name:      "event_interceptor_duration_seconds",
		Help:      "tenant.event.interceptor.duration: event updater latency by event type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type", "outcome"})

	rateLimitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eaf",
		Subsystem: "dispatch",
		Name:      "rate_limit_error_total",
		Help:      "Count of events processed under graceful degradation because the rate limit counter store was unreachable.",
	})
)

// Collectors returns the metrics this package registers.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{commandDuration, queryDuration, eventDuration, rateLimitErrors}
}

func commandMetrics[T HasTenant](next Handler[T]) Handler[T] {
	return func(ctx context.Context, msg T) (any, error) {
		start := time.Now()
		result, err := next(ctx, msg)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		commandDuration.WithLabelValues(kindOf(msg), outcome).Observe(time.Since(start).Seconds())
		return result, err
	}
}

func queryMetrics[T HasTenant](next Handler[T]) Handler[T] {
	return func(ctx context.Context, msg T) (any, error) {
		start := time.Now()
		result, err := next(ctx, msg)
		outcome := "success"
		errType := ""
		if err != nil {
			outcome = "failure"
			errType = errorType(err)
		}
		queryDuration.WithLabelValues(kindOf(msg), outcome, errType).Observe(time.Since(start).Seconds())
		return result, err
	}
}

func eventMetrics[T any](eventType string) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, msg T) (any, error) {
			start := time.Now()
			result, err := next(ctx, msg)
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			eventDuration.WithLabelValues(eventType, outcome).Observe(time.Since(start).Seconds())
			return result, err
		}
	}
}

func errorType(err error) string {
	return fmtType(err)
}
