// Package harvester farms a set of plot files: it evaluates signage points against them,
// produces the local share of plot signatures and serves both to remote farmers.
package harvester

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/wire"
)

// ErrPlotNotFound is returned for signature requests on plots the harvester does not farm.
var ErrPlotNotFound = errors.New("plot not found")

// Config of the harvester.
type Config struct {
	Plots plot.Config `mapstructure:",squash"`
	// Concurrency bounds the number of plot lookups running at once.
	Concurrency int `mapstructure:"lookup-concurrency"`
	// Listen is the address the remote harvester server listens on.
	Listen string `mapstructure:"listen"`
}

func (cfg *Config) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if err := cfg.Plots.MarshalLogObject(encoder); err != nil {
		return err
	}
	encoder.AddInt("lookup concurrency", cfg.Concurrency)
	encoder.AddString("listen", cfg.Listen)
	return nil
}

func DefaultConfig() Config {
	return Config{
		Plots:       plot.DefaultConfig(),
		Concurrency: 8,
		Listen:      "0.0.0.0:8448",
	}
}

type Opt func(*Harvester)

func WithLogger(logger *zap.Logger) Opt {
	return func(h *Harvester) {
		h.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(h *Harvester) {
		h.clock = clock
	}
}

// WithID sets the harvester id. A random one is used otherwise.
func WithID(id uuid.UUID) Opt {
	return func(h *Harvester) {
		h.id = id
	}
}

// Harvester answers farmer requests from the plots of a plot manager.
type Harvester struct {
	logger *zap.Logger
	clock  clockwork.Clock
	id     uuid.UUID
	plots  *plot.Manager
	eval   *Evaluator
}

// New creates a harvester over the plots of manager.
func New(manager *plot.Manager, constants *consensus.Constants, cfg Config, opts ...Opt) *Harvester {
	h := &Harvester{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		id:     uuid.New(),
		plots:  manager,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.Stringer("harvester", h.id))
	h.eval = NewEvaluator(h.logger.Named("evaluator"), h.clock, constants, manager, cfg.Concurrency)
	return h
}

// ID identifies the harvester to farmers.
func (h *Harvester) ID() uuid.UUID {
	return h.id
}

// Plots is the plot manager the harvester farms.
func (h *Harvester) Plots() *plot.Manager {
	return h.plots
}

// NewSignagePoint evaluates a signage point against the current plot snapshot.
func (h *Harvester) NewSignagePoint(
	ctx context.Context,
	sp *wire.NewSignagePointHarvester,
	emit func(*wire.NewProofOfSpace),
) (*wire.FarmingInfo, error) {
	return h.eval.Evaluate(ctx, h.plots.Snapshot(), sp, emit)
}

// SignatureShares signs every requested message with the plot's local key, using the
// augmented scheme prefixed by the plot public key.
func (h *Harvester) SignatureShares(req *wire.RequestSignatures) (*wire.RespondSignatures, error) {
	p, ok := h.plots.Snapshot().Get(req.PlotID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlotNotFound, req.PlotID.ShortString())
	}
	info := p.Info()
	local := p.LocalKey()
	resp := &wire.RespondSignatures{
		PlotID:        req.PlotID,
		ChallengeHash: req.ChallengeHash,
		SPHash:        req.SPHash,
		LocalPK:       local.PublicKey(),
		FarmerPK:      info.FarmerPublicKey,
		Signatures:    make([]types.Bytes96, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		resp.Signatures = append(resp.Signatures, local.SignPrepend(msg.Data, info.PlotPublicKey))
	}
	return resp, nil
}

// Inventory reports the plots currently farmed.
func (h *Harvester) Inventory() *wire.PlotInventory {
	snapshot := h.plots.Snapshot()
	return &wire.PlotInventory{
		Fingerprint: snapshot.Fingerprint(),
		Plots:       snapshot.Summaries(),
		Degraded:    uint32(len(h.plots.Degraded())),
	}
}
