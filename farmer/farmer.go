// Package farmer coordinates proof discovery: it opens a proof window for every signage
// point announced by the full node, challenges the harvesters and routes the proofs they
// find to pools and the full node.
package farmer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/log"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

// Config of the farmer.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Router    RouterConfig    `mapstructure:"submission"`
	// SignatureTimeout bounds a signature round trip to a harvester.
	SignatureTimeout time.Duration `mapstructure:"signature-timeout"`
}

func (cfg *Config) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if err := encoder.AddObject("scheduler", &cfg.Scheduler); err != nil {
		return err
	}
	encoder.AddString("farmer target", cfg.Router.FarmerTarget.String())
	encoder.AddString("pool target", cfg.Router.PoolTarget.String())
	encoder.AddDuration("signature timeout", cfg.SignatureTimeout)
	return nil
}

func DefaultConfig() Config {
	return Config{
		Scheduler:        DefaultSchedulerConfig(),
		Router:           DefaultRouterConfig(),
		SignatureTimeout: 5 * time.Second,
	}
}

type Opt func(*Farmer)

func WithLogger(logger *zap.Logger) Opt {
	return func(f *Farmer) {
		f.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(f *Farmer) {
		f.clock = clock
	}
}

// Farmer wires the scheduler, the router, the harvesters and the pools.
type Farmer struct {
	logger     *zap.Logger
	clock      clockwork.Clock
	constants  *consensus.Constants
	cfg        Config
	sources    []ProofSource
	harvesters *HarvesterPool
	pools      []PoolMember
	scheduler  *Scheduler
	router     *Router

	peak atomic.Pointer[types.Peak]
}

// New creates a farmer over sources. Proofs of plots bound to the contract of one of
// pools are submitted as partials to that pool.
func New(
	cfg Config,
	constants *consensus.Constants,
	keys *signing.Keychain,
	sources []ProofSource,
	pools []PoolMember,
	opts ...Opt,
) *Farmer {
	f := &Farmer{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		constants: constants,
		cfg:       cfg,
		sources:   sources,
		pools:     pools,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.harvesters = NewHarvesterPool(f.logger.Named("harvesters"), cfg.SignatureTimeout, sources...)
	f.router = NewRouter(f.logger.Named("router"), constants, cfg.Router, keys, f.harvesters, pools)
	f.scheduler = NewScheduler(
		f.logger.Named("scheduler"),
		f.clock,
		constants,
		cfg.Scheduler,
		f.harvesters,
		f.router,
		f.poolDifficulties,
	)
	return f
}

// Run farms until ctx is canceled. node is kept connected for the lifetime of the farmer.
func (f *Farmer) Run(ctx context.Context, node FullNode) error {
	f.logger.Info("starting farmer",
		zap.Inline(&f.cfg),
		zap.String("network", f.constants.Name),
		zap.Int("harvesters", len(f.sources)),
		zap.Int("pools", len(f.pools)),
	)
	f.router.node = node
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return f.scheduler.Run(ctx) })
	eg.Go(func() error { return f.harvesters.Run(ctx) })
	for _, p := range f.pools {
		eg.Go(func() error { return p.Run(ctx) })
	}
	eg.Go(func() error { return node.Run(ctx) })
	err := eg.Wait()
	f.router.Wait()
	return err
}

func (f *Farmer) poolDifficulties() []wire.PoolDifficulty {
	var out []wire.PoolDifficulty
	for _, p := range f.pools {
		if !p.Ready() {
			continue
		}
		out = append(out, wire.PoolDifficulty{
			Difficulty:             p.State().CurrentDifficulty,
			SubSlotIters:           f.constants.PoolSubSlotIters,
			PoolContractPuzzleHash: p.ContractPuzzleHash(),
		})
	}
	return out
}

// NewSignagePoint implements fullnode.Handler.
func (f *Farmer) NewSignagePoint(ctx context.Context, sp *types.SignagePoint, reset bool) {
	f.scheduler.NewSignagePoint(ctx, sp, reset)
}

// NewPeak implements fullnode.Handler.
func (f *Farmer) NewPeak(_ context.Context, peak *types.Peak) {
	f.peak.Store(peak)
	f.logger.Debug("new peak", zap.Uint32("height", peak.Height), log.ZShortStringer("header_hash", peak.HeaderHash))
}

// SignedValues implements fullnode.Handler.
func (f *Farmer) SignedValues(ctx context.Context, req *wire.RequestSignedValues) (*wire.SignedValues, error) {
	return f.router.SignedValues(ctx, req)
}

// HarvesterStatus describes one proof source.
type HarvesterStatus struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Plots int    `json:"plots"`
}

// PoolStatus describes one pool membership.
type PoolStatus struct {
	LauncherID types.Bytes32   `json:"launcher_id"`
	URL        string          `json:"url"`
	Difficulty uint64          `json:"difficulty"`
	Registered bool            `json:"registered"`
	Stats      types.PoolStats `json:"stats"`
}

// Status is a point in time view of the farmer.
type Status struct {
	Window     WindowStatus      `json:"window"`
	Peak       *types.Peak       `json:"peak,omitempty"`
	Harvesters []HarvesterStatus `json:"harvesters"`
	Pools      []PoolStatus      `json:"pools"`
}

// Status returns the current state of the farmer.
func (f *Farmer) Status() *Status {
	s := &Status{
		Window:     f.scheduler.Status(),
		Peak:       f.peak.Load(),
		Harvesters: make([]HarvesterStatus, 0, len(f.sources)),
		Pools:      make([]PoolStatus, 0, len(f.pools)),
	}
	for _, src := range f.sources {
		state := src.State()
		plots := 0
		if state != supervisor.Disconnected {
			plots = src.Plots()
		}
		s.Harvesters = append(s.Harvesters, HarvesterStatus{
			ID:    src.ID().String(),
			Name:  src.Name(),
			State: state.String(),
			Plots: plots,
		})
	}
	for _, p := range f.pools {
		state := p.State()
		s.Pools = append(s.Pools, PoolStatus{
			LauncherID: p.LauncherID(),
			URL:        state.PoolURL,
			Difficulty: state.CurrentDifficulty,
			Registered: state.Registered,
			Stats:      p.Stats(),
		})
	}
	return s
}
