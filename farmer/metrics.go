package farmer

import (
	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "farmer"

var (
	signagePoints = metrics.NewCounter(
		"signage_points",
		subsystem,
		"number of signage points received by outcome",
		[]string{"outcome"},
	)
	windows = metrics.NewCounter(
		"proof_windows",
		subsystem,
		"number of closed proof windows by final state",
		[]string{"state"},
	)
	candidates = metrics.NewCounter(
		"candidates",
		subsystem,
		"number of proofs reported by harvesters by outcome",
		[]string{"outcome"},
	)
	harvestersReady = metrics.NewGauge(
		"harvesters_ready",
		subsystem,
		"number of harvesters a challenge was sent to",
		[]string{},
	).WithLabelValues()
)
