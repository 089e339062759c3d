package wire

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plotfarm/go-farmer/metrics"
)

const subsystem = "wire"

var (
	sentMessages = metrics.NewCounter(
		"sent_messages",
		subsystem,
		"number of messages sent by type",
		[]string{"type"},
	)
	receivedMessages = metrics.NewCounter(
		"received_messages",
		subsystem,
		"number of messages received by type",
		[]string{"type"},
	)
	requestLatency = metrics.NewHistogramWithBuckets(
		"request_latency_seconds",
		subsystem,
		"latency of requests until the reply arrived",
		[]string{"type"},
		prometheus.ExponentialBuckets(0.001, 2, 14),
	)
)
