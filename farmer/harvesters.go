package farmer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plotfarm/go-farmer/wire"
)

// HarvesterPool fans challenges out to the usable proof sources. Sources that are down
// are skipped and rejoin as soon as their link is ready again.
type HarvesterPool struct {
	logger  *zap.Logger
	sources []ProofSource
	// timeout bounds a signature round trip.
	timeout time.Duration
}

// NewHarvesterPool creates a pool over sources.
func NewHarvesterPool(logger *zap.Logger, timeout time.Duration, sources ...ProofSource) *HarvesterPool {
	return &HarvesterPool{logger: logger, sources: sources, timeout: timeout}
}

// Sources returns every configured source.
func (p *HarvesterPool) Sources() []ProofSource {
	return p.sources
}

// Active returns the sources whose link is usable.
func (p *HarvesterPool) Active() []ProofSource {
	var active []ProofSource
	for _, src := range p.sources {
		if src.State().Usable() {
			active = append(active, src)
		}
	}
	return active
}

// Run keeps the remote sources connected until ctx is canceled.
func (p *HarvesterPool) Run(ctx context.Context) error {
	var eg errgroup.Group
	for _, src := range p.sources {
		if runner, ok := src.(interface{ Run(context.Context) error }); ok {
			eg.Go(func() error { return runner.Run(ctx) })
		}
	}
	return eg.Wait()
}

// Broadcast sends a challenge to every active source and returns their ids. Each source
// is challenged on its own goroutine; onProof and onReport are called from those
// goroutines and must not block for long.
func (p *HarvesterPool) Broadcast(
	ctx context.Context,
	sp *wire.NewSignagePointHarvester,
	onProof func(uuid.UUID, *wire.NewProofOfSpace),
	onReport func(uuid.UUID, *wire.FarmingInfo, error),
) []uuid.UUID {
	active := p.Active()
	if len(active) == 0 {
		p.logger.Warn("no harvester available",
			zap.Uint8("index", sp.Index),
			zap.Int("configured", len(p.sources)),
		)
	}
	ids := make([]uuid.UUID, 0, len(active))
	for _, src := range active {
		id := src.ID()
		ids = append(ids, id)
		go func() {
			info, err := src.Challenge(ctx, sp, func(proof *wire.NewProofOfSpace) {
				onProof(id, proof)
			})
			onReport(id, info, err)
		}()
	}
	harvestersReady.Set(float64(len(active)))
	return ids
}

// SignatureShares asks the source holding the plot for its signature shares.
func (p *HarvesterPool) SignatureShares(
	ctx context.Context,
	id uuid.UUID,
	req *wire.RequestSignatures,
) (*wire.RespondSignatures, error) {
	for _, src := range p.sources {
		if src.ID() != id {
			continue
		}
		if !src.State().Usable() {
			return nil, fmt.Errorf("%w: %s", ErrHarvesterUnavailable, src.Name())
		}
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return src.SignatureShares(ctx, req)
	}
	return nil, fmt.Errorf("%w: unknown harvester %s", ErrHarvesterUnavailable, id)
}

// Plots is the number of plots reported by active sources.
func (p *HarvesterPool) Plots() int {
	total := 0
	for _, src := range p.Active() {
		total += src.Plots()
	}
	return total
}
