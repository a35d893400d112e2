package tokenvalidator

import "github.com/prometheus/client_golang/prometheus"

var layerOutcomeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "eaf",
		Subsystem: "token_validator",
		Name:      "layer_outcome_total",
		Help:      "Outcome of each token validation layer, by layer name and outcome.",
	},
	[]string{"layer", "outcome"},
)

// Collectors returns the Prometheus collectors owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{layerOutcomeTotal}
}

func recordLayer(layer string, pass bool) {
	outcome := "pass"
	if !pass {
		outcome = "fail"
	}
	layerOutcomeTotal.WithLabelValues(layer, outcome).Inc()
}
