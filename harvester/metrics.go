package harvester

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "harvester"

var (
	lookupDuration = metrics.NewHistogramWithBuckets(
		"lookup_duration_seconds",
		subsystem,
		"time to evaluate a signage point against all plots",
		[]string{},
		prometheus.ExponentialBuckets(0.001, 2, 14),
	).WithLabelValues()
	passedFilter = metrics.NewCounter(
		"passed_filter",
		subsystem,
		"number of plots that passed the plot filter",
		[]string{},
	).WithLabelValues()
	proofsFound = metrics.NewCounter(
		"proofs_found",
		subsystem,
		"number of proofs found",
		[]string{},
	).WithLabelValues()
)
