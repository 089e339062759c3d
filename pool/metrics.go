package pool

import (
	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "pool"

var (
	partials = metrics.NewCounter(
		"partials",
		subsystem,
		"number of partials submitted by pool and outcome",
		[]string{"pool", "outcome"},
	)
	pointsAcknowledged = metrics.NewCounter(
		"points_acknowledged",
		subsystem,
		"points acknowledged by pool",
		[]string{"pool"},
	)
	difficulty = metrics.NewGauge(
		"difficulty",
		subsystem,
		"current difficulty by pool",
		[]string{"pool"},
	)
)
