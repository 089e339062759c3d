package harvester

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/wire"
)

// PlotHealth receives the outcome of every plot lookup.
type PlotHealth interface {
	ReportSuccess(id types.Bytes32)
	ReportFailure(id types.Bytes32, err error) bool
}

// Evaluator searches a plot snapshot for proofs of a signage point. Lookups run in
// parallel, bounded by a semaphore shared by all signage points.
type Evaluator struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	constants *consensus.Constants
	health    PlotHealth
	sem       *semaphore.Weighted
}

// NewEvaluator creates an evaluator that runs at most concurrency lookups at once.
func NewEvaluator(
	logger *zap.Logger,
	clock clockwork.Clock,
	constants *consensus.Constants,
	health PlotHealth,
	concurrency int,
) *Evaluator {
	return &Evaluator{
		logger:    logger,
		clock:     clock,
		constants: constants,
		health:    health,
		sem:       semaphore.NewWeighted(int64(max(concurrency, 1))),
	}
}

// Eligible reports whether a plot passes the filter for a signage point.
func Eligible(sp *wire.NewSignagePointHarvester, plotID types.Bytes32) bool {
	return consensus.PassesPlotFilter(sp.FilterPrefixBits, plotID, sp.ChallengeHash, sp.SPHash)
}

// Evaluate looks up every eligible plot of snapshot and calls emit for each proof whose
// required iterations are below the signage point interval for the plot's difficulty.
// emit is never called concurrently. A failing plot is counted and reported to the plot
// health tracker; it does not stop the search on other plots.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	snapshot *plot.Snapshot,
	sp *wire.NewSignagePointHarvester,
	emit func(*wire.NewProofOfSpace),
) (*wire.FarmingInfo, error) {
	start := e.clock.Now()
	difficulties := make(map[types.Bytes32]wire.PoolDifficulty, len(sp.PoolDifficulties))
	for _, pd := range sp.PoolDifficulties {
		difficulties[pd.PoolContractPuzzleHash] = pd
	}
	info := &wire.FarmingInfo{
		ChallengeHash: sp.ChallengeHash,
		SPHash:        sp.SPHash,
		Index:         sp.Index,
		TotalPlots:    uint32(snapshot.Len()),
	}

	var (
		mu      sync.Mutex
		eg      errgroup.Group
		stopErr error
	)
	for _, p := range snapshot.Plots() {
		if !Eligible(sp, p.ID()) {
			continue
		}
		info.PassedFilter++
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}
		eg.Go(func() error {
			defer e.sem.Release(1)
			proofs, err := e.lookup(p, sp, difficulties)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				info.Errors++
				return nil
			}
			for _, proof := range proofs {
				info.Proofs++
				emit(proof)
			}
			return nil
		})
	}
	eg.Wait()
	elapsed := e.clock.Since(start)
	info.LookupTime = uint64(elapsed.Milliseconds())
	lookupDuration.Observe(elapsed.Seconds())
	passedFilter.Add(float64(info.PassedFilter))
	proofsFound.Add(float64(info.Proofs))

	log := e.logger.Debug
	if elapsed > e.constants.SPInterval()/2 {
		log = e.logger.Warn
	}
	log("signage point evaluated",
		zap.Uint8("index", sp.Index),
		zap.Stringer("sp_hash", sp.SPHash),
		zap.Uint32("plots", info.TotalPlots),
		zap.Uint32("passed_filter", info.PassedFilter),
		zap.Uint32("proofs", info.Proofs),
		zap.Uint32("errors", info.Errors),
		zap.Duration("duration", elapsed),
	)
	return info, stopErr
}

func (e *Evaluator) lookup(
	p *plot.Plot,
	sp *wire.NewSignagePointHarvester,
	difficulties map[types.Bytes32]wire.PoolDifficulty,
) ([]*wire.NewProofOfSpace, error) {
	info := p.Info()
	challenge := consensus.PosChallenge(info.PlotID, sp.ChallengeHash, sp.SPHash)
	found, err := p.Lookup(challenge)
	if err != nil {
		degraded := e.health.ReportFailure(info.PlotID, err)
		level := e.logger.Warn
		if degraded || errors.Is(err, plot.ErrCorrupted) {
			level = e.logger.Error
		}
		level("plot lookup failed",
			zap.Inline(info),
			zap.Bool("degraded", degraded),
			zap.Error(err),
		)
		return nil, err
	}
	e.health.ReportSuccess(info.PlotID)

	difficulty, subSlotIters := sp.Difficulty, sp.SubSlotIters
	if info.PoolContractPuzzleHash != nil {
		if pd, ok := difficulties[*info.PoolContractPuzzleHash]; ok {
			difficulty, subSlotIters = pd.Difficulty, pd.SubSlotIters
		}
	}
	threshold := e.constants.SPIntervalIters(subSlotIters)

	var proofs []*wire.NewProofOfSpace
	for _, proof := range found {
		iters := consensus.RequiredIters(e.constants, proof.Quality, info.K, difficulty, sp.SPHash)
		if iters >= threshold {
			continue
		}
		proofs = append(proofs, &wire.NewProofOfSpace{
			ChallengeHash: sp.ChallengeHash,
			SPHash:        sp.SPHash,
			Index:         sp.Index,
			PlotID:        info.PlotID,
			Proof:         p.ProofOfSpace(challenge, proof.Proof),
		})
	}
	return proofs, nil
}

// LookupTime converts the reported lookup time into a duration.
func LookupTime(info *wire.FarmingInfo) time.Duration {
	return time.Duration(info.LookupTime) * time.Millisecond
}
