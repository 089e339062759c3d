package supervisor

import (
	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "link"

var (
	linkState = metrics.NewGauge(
		"state",
		subsystem,
		"current state of a supervised link (0 disconnected, 1 connecting, 2 handshaking, 3 ready, 4 degraded)",
		[]string{"link"},
	)
	reconnects = metrics.NewCounter(
		"reconnects",
		subsystem,
		"number of reconnect attempts",
		[]string{"link"},
	)
)
