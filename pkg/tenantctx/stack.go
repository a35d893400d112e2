// Package tenantctx implements the per-unit-of-work tenant stack.
//
// The source this framework is modelled on keeps the current tenant id in a
// ThreadLocal, pushed and popped around the lifetime of a pooled worker
// thread. Go has no thread-locals and goroutines are not reused the way
// platform threads are, so the stack is instead bound to context.Context:
// every Push/Pop/Current/Require/Depth call threads ctx explicitly. A
// context derived from a parent for the same unit of work shares the same
// underlying stack, which mirrors "per task, not per thread"; a genuinely
// new asynchronous continuation (anything started from context.Background)
// gets a fresh, empty stack and must copy the tenant id forward explicitly.
package tenantctx

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrEmptyTenant is returned by Push when the tenant id is blank.
var ErrEmptyTenant = errors.New("tenantctx: tenant id must not be blank")

// ErrMissingTenantContext is returned by Require when the stack is empty.
// It is a programming/integration error, distinct from the security denial
// surfaced by the token pipeline and dispatch chains.
var ErrMissingTenantContext = errors.New("tenantctx: missing tenant context")

type stack struct {
	mu  sync.Mutex
	ids []string
}

type ctxKey struct{}

var (
	pushTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eaf",
		Subsystem: "tenant_context",
		Name:      "push_total",
		Help:      "Total number of tenant ids pushed onto a tenant context stack.",
	})
	depthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eaf",
		Subsystem: "tenant_context",
		Name:      "stack_depth",
		Help:      "Current depth of the tenant context stack for the last-touched unit of work.",
	})
	leakTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eaf",
		Subsystem: "tenant_context",
		Name:      "leak_detected_total",
		Help:      "Number of times ReportLeakIfAny observed a non-zero stack.",
	})
)

// Collectors returns the Prometheus collectors owned by this package, for
// registration against the process registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{pushTotal, depthGauge, leakTotal}
}

func from(ctx context.Context) (*stack, bool) {
	s, ok := ctx.Value(ctxKey{}).(*stack)
	return s, ok
}

// Push rejects an empty/blank tenant id, records a metric, and pushes it
// onto the stack carried by ctx, installing a fresh stack on first use. The
// returned context must be used for the remainder of the unit of work; the
// caller must pair this with exactly one Pop on every exit path, including
// panics (use defer).
func Push(ctx context.Context, tenantID string) (context.Context, error) {
	if strings.TrimSpace(tenantID) == "" {
		return ctx, ErrEmptyTenant
	}

	s, ok := from(ctx)
	if !ok {
		s = &stack{}
		ctx = context.WithValue(ctx, ctxKey{}, s)
	}

	s.mu.Lock()
	s.ids = append(s.ids, tenantID)
	depth := len(s.ids)
	s.mu.Unlock()

	pushTotal.Inc()
	depthGauge.Set(float64(depth))
	return ctx, nil
}

// Current returns the top tenant id, or "" if the stack is empty or was
// never installed. It never fails.
func Current(ctx context.Context) string {
	s, ok := from(ctx)
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return ""
	}
	return s.ids[len(s.ids)-1]
}

// Require returns the top tenant id, or ErrMissingTenantContext if none is
// set. Every data-path call into the event store or session binder goes
// through Require so that a missing tenant fails closed rather than
// silently operating un-scoped.
func Require(ctx context.Context) (string, error) {
	t := Current(ctx)
	if t == "" {
		return "", ErrMissingTenantContext
	}
	return t, nil
}

// Pop removes the top entry. It is idempotent on an empty or uninstalled
// stack. The depth gauge is set to the remaining depth, so it reads zero
// once the stack is empty.
func Pop(ctx context.Context) {
	s, ok := from(ctx)
	if !ok {
		return
	}
	s.mu.Lock()
	if len(s.ids) > 0 {
		s.ids = s.ids[:len(s.ids)-1]
	}
	depth := len(s.ids)
	s.mu.Unlock()
	depthGauge.Set(float64(depth))
}

// Depth returns the current stack size. Call sites outside an active unit
// of work (e.g. a background sweep asserting hygiene between requests)
// should treat depth > 0 as a leak and call ReportLeakIfAny instead of
// reading Depth directly.
func Depth(ctx context.Context) int {
	s, ok := from(ctx)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// ReportLeakIfAny records a leak metric if ctx's stack is non-empty. Test
// builds and worker-loop housekeeping call this after each unit of work
// completes; a non-zero depth here means some code path pushed without a
// matching pop.
func ReportLeakIfAny(ctx context.Context) {
	if Depth(ctx) > 0 {
		leakTotal.Inc()
	}
}

// Detach returns a fresh context carrying no tenant stack, for use at the
// boundary of a genuinely new asynchronous continuation (e.g. a projection
// worker picking up an event published by a different unit of work). The
// caller must explicitly Push the tenant id restored from the event's own
// metadata; it is never inherited.
func Detach(ctx context.Context) context.Context {
	// Re-rooting on Background is deliberate: a detached unit of work
	// manages its own deadline, and carrying the parent's stack pointer
	// forward would violate "tasks may not share stacks". The first Push
	// against the returned context lazily installs a brand new stack.
	return context.Background()
}
