// Package telemetry wires the process-wide Prometheus registry and the
// OpenTelemetry tracer provider used by every component of the core.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/eaf/internal/httpserver"
	"github.com/wisbric/eaf/pkg/dispatch"
	"github.com/wisbric/eaf/pkg/eventstore"
	"github.com/wisbric/eaf/pkg/tenantctx"
	"github.com/wisbric/eaf/pkg/tokenvalidator"
)

// NewRegistry builds a registry carrying every component's collectors
// plus the standard process/Go runtime collectors, so one /metrics
// endpoint covers the whole core without each component needing to know
// about the others.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	for _, c := range tenantctx.Collectors() {
		reg.MustRegister(c)
	}
	for _, c := range tokenvalidator.Collectors() {
		reg.MustRegister(c)
	}
	for _, c := range eventstore.Collectors() {
		reg.MustRegister(c)
	}
	for _, c := range dispatch.Collectors() {
		reg.MustRegister(c)
	}
	for _, c := range httpserver.Collectors() {
		reg.MustRegister(c)
	}

	return reg
}
