package pool

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/plotfarm/go-farmer/common/types"
)

// Outcome of a partial submission.
type Outcome uint8

const (
	Accepted Outcome = iota + 1
	Rejected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type statEvent struct {
	outcome    Outcome
	difficulty uint64
}

// Stats accounts submitted partials. Counters are owned by the Run loop and published as
// immutable snapshots.
type Stats struct {
	logger   *zap.Logger
	label    string
	events   chan statEvent
	snapshot atomic.Pointer[types.PoolStats]
}

func newStats(logger *zap.Logger, label string) *Stats {
	s := &Stats{
		logger: logger,
		label:  label,
		events: make(chan statEvent, 1024),
	}
	s.snapshot.Store(&types.PoolStats{})
	return s
}

// Snapshot returns the latest counters.
func (s *Stats) Snapshot() types.PoolStats {
	return *s.snapshot.Load()
}

// record queues an outcome. It never blocks the submission path; outcomes are dropped
// when the accounting loop is behind.
func (s *Stats) record(outcome Outcome, difficulty uint64) {
	select {
	case s.events <- statEvent{outcome: outcome, difficulty: difficulty}:
	default:
		s.logger.Warn("dropping pool statistics event", zap.Stringer("outcome", outcome))
	}
}

// Run applies queued outcomes until ctx is canceled.
func (s *Stats) Run(ctx context.Context) error {
	current := *s.snapshot.Load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			current.PartialsSubmitted++
			current.PointsFound += ev.difficulty
			switch ev.outcome {
			case Accepted:
				current.PartialsAccepted++
				current.PointsAcknowledged += ev.difficulty
				pointsAcknowledged.WithLabelValues(s.label).Add(float64(ev.difficulty))
			case Rejected:
				current.PartialsRejected++
			case Failed:
				current.PartialsFailed++
			}
			partials.WithLabelValues(s.label, ev.outcome.String()).Inc()
			next := current
			s.snapshot.Store(&next)
		}
	}
}
