package fullnode

import (
	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "full_node"

var (
	signagePointGaps = metrics.NewCounter(
		"signage_point_gaps",
		subsystem,
		"number of signage points that skipped over earlier ones",
		[]string{},
	).WithLabelValues()
	declaredProofs = metrics.NewCounter(
		"declared_proofs",
		subsystem,
		"number of full proofs declared to the full node",
		[]string{},
	).WithLabelValues()
)
