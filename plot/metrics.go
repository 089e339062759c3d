package plot

import (
	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "plots"

var (
	plotsGauge = metrics.NewGauge(
		"count",
		subsystem,
		"number of plots by state",
		[]string{"state"},
	)
	plotsActive   = plotsGauge.WithLabelValues("active")
	plotsDegraded = plotsGauge.WithLabelValues("degraded")
	plotsNoKey    = plotsGauge.WithLabelValues("no_key")

	plotErrors = metrics.NewCounter(
		"errors",
		subsystem,
		"number of plot errors by operation",
		[]string{"op"},
	)
	openErrors   = plotErrors.WithLabelValues("open")
	lookupErrors = plotErrors.WithLabelValues("lookup")
)
