package farmer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/hash"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/wire"
)

// Signer returns harvester signature shares.
type Signer interface {
	SignatureShares(ctx context.Context, id uuid.UUID, req *wire.RequestSignatures) (*wire.RespondSignatures, error)
}

type sigKey struct {
	plotID types.Bytes32
	digest types.Bytes32
}

// RouterConfig tunes submission caches.
type RouterConfig struct {
	// FarmerTarget receives the farmer share of block rewards.
	FarmerTarget types.Bytes32 `mapstructure:"-"`
	// PoolTarget receives the pool share of blocks won by plots bound to a pool key.
	PoolTarget types.Bytes32 `mapstructure:"-"`
	// CacheTTL bounds how long signature shares and declared proofs are kept.
	CacheTTL  time.Duration `mapstructure:"cache-ttl"`
	CacheSize int           `mapstructure:"cache-size"`
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CacheTTL:  10 * time.Minute,
		CacheSize: 10_000,
	}
}

// Router turns verified candidates into partials and full proof declarations.
type Router struct {
	logger    *zap.Logger
	constants *consensus.Constants
	cfg       RouterConfig
	keys      *signing.Keychain
	signer    Signer
	pools     map[types.Bytes32]PoolMember
	node      FullNode

	signatures *expirable.LRU[sigKey, *wire.RespondSignatures]
	declared   *expirable.LRU[types.Bytes32, *types.ProofCandidate]
	wg         sync.WaitGroup
}

// NewRouter creates a router. Pools are matched to plots by their contract puzzle hash.
func NewRouter(
	logger *zap.Logger,
	constants *consensus.Constants,
	cfg RouterConfig,
	keys *signing.Keychain,
	signer Signer,
	pools []PoolMember,
) *Router {
	r := &Router{
		logger:     logger,
		constants:  constants,
		cfg:        cfg,
		keys:       keys,
		signer:     signer,
		pools:      make(map[types.Bytes32]PoolMember, len(pools)),
		signatures: expirable.NewLRU[sigKey, *wire.RespondSignatures](max(cfg.CacheSize, 1), nil, cfg.CacheTTL),
		declared:   expirable.NewLRU[types.Bytes32, *types.ProofCandidate](max(cfg.CacheSize, 1), nil, cfg.CacheTTL),
	}
	for _, p := range pools {
		r.pools[p.ContractPuzzleHash()] = p
	}
	return r
}

// Mode returns how proofs of a plot are submitted and the pool they go to.
func (r *Router) Mode(pos *types.ProofOfSpace) (types.FarmingMode, PoolMember) {
	if pos.PoolContractPuzzleHash == nil {
		return types.FarmingSolo, nil
	}
	member, ok := r.pools[*pos.PoolContractPuzzleHash]
	if !ok {
		return types.FarmingSolo, nil
	}
	return types.FarmingPool, member
}

// Dispatch routes a candidate on its own goroutine.
func (r *Router) Dispatch(ctx context.Context, sp *types.SignagePoint, candidate *types.ProofCandidate) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Route(ctx, sp, candidate)
	}()
}

// Wait blocks until dispatched candidates are routed.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Route submits a candidate to every destination it qualifies for. A candidate that
// qualifies for nothing is dropped.
func (r *Router) Route(ctx context.Context, sp *types.SignagePoint, candidate *types.ProofCandidate) {
	logger := r.logger.With(zap.Inline(candidate))
	mode, member := r.Mode(&candidate.Proof)
	routed := false
	if mode == types.FarmingPool {
		ok, err := r.submitPartial(ctx, member, candidate)
		if err != nil {
			logPartialError(logger, err)
		}
		routed = routed || ok
	}
	ok, err := r.declare(ctx, sp, candidate)
	if err != nil {
		logger.Warn("failed to declare proof of space", zap.Error(err))
	}
	routed = routed || ok
	if !routed {
		candidates.WithLabelValues("discarded").Inc()
		logger.Debug("candidate does not qualify", zap.Stringer("mode", mode))
	}
}

func logPartialError(logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, types.ErrStaleWork):
		logger.Debug("stale partial", zap.Error(err))
	default:
		logger.Warn("partial not accepted", zap.Error(err))
	}
}

// submitPartial returns whether a partial was submitted.
func (r *Router) submitPartial(ctx context.Context, member PoolMember, c *types.ProofCandidate) (bool, error) {
	if !member.Ready() {
		return false, fmt.Errorf("%w: pool %s not ready", types.ErrTransientNetwork, member.LauncherID().ShortString())
	}
	state := member.State()
	iters := consensus.RequiredIters(r.constants, c.QualityString, c.Proof.Size, state.CurrentDifficulty, c.SPHash)
	if !consensus.QualifiesForPool(r.constants, iters) {
		return false, nil
	}
	payload := types.PartialPayload{
		LauncherID:          member.LauncherID(),
		AuthenticationToken: member.AuthenticationToken(),
		ProofOfSpace:        c.Proof,
		SPHash:              c.SPHash,
		EndOfSubSlot:        false,
		HarvesterID:         types.BytesToBytes32(c.HarvesterID[:]),
	}
	msg := pool.SigningMessage(&payload)
	sigs, err := r.sign(ctx, c, [][]byte{msg})
	if err != nil {
		return false, err
	}
	auth := member.AuthKey()
	if auth == nil {
		return false, fmt.Errorf("%w: no authentication key for pool %s",
			types.ErrConfiguration, member.LauncherID().ShortString())
	}
	aggregate, err := signing.Aggregate(sigs[0], auth.Sign(msg))
	if err != nil {
		return false, fmt.Errorf("%w: aggregate partial signature: %w", types.ErrCryptoValidation, err)
	}
	outcome, err := member.SubmitPartial(ctx, &types.Partial{Payload: payload, AggregateSignature: aggregate})
	if err != nil {
		return true, err
	}
	r.logger.Info("partial accepted",
		zap.Stringer("launcher_id", payload.LauncherID),
		zap.Stringer("plot_id", c.PlotID),
		zap.Uint8("index", c.SignagePointIndex),
		zap.Uint64("difficulty", state.CurrentDifficulty),
		zap.Stringer("outcome", outcome),
	)
	return true, nil
}

// declare returns whether a full proof was declared.
func (r *Router) declare(ctx context.Context, sp *types.SignagePoint, c *types.ProofCandidate) (bool, error) {
	iters := consensus.RequiredIters(r.constants, c.QualityString, c.Proof.Size, sp.Difficulty, c.SPHash)
	if !consensus.QualifiesForBlock(r.constants, iters, sp.SubSlotIters) {
		return false, nil
	}
	if r.node == nil {
		return false, errors.New("no full node to declare to")
	}
	ccSP, rcSP := sp.SPHash(), sp.RewardChainSP
	sigs, err := r.sign(ctx, c, [][]byte{ccSP[:], rcSP[:]})
	if err != nil {
		return false, err
	}
	decl := &wire.DeclareProofOfSpace{
		ChallengeHash:             sp.ChallengeHash,
		ChallengeChainSP:          ccSP,
		Index:                     sp.Index,
		RewardChainSP:             rcSP,
		Proof:                     c.Proof,
		ChallengeChainSPSignature: sigs[0],
		RewardChainSPSignature:    sigs[1],
		FarmerPuzzleHash:          r.cfg.FarmerTarget,
	}
	if c.Proof.PoolPublicKey != nil {
		poolKey, err := r.keys.Pool(*c.Proof.PoolPublicKey)
		if err != nil {
			return false, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
		target := types.PoolTarget{PuzzleHash: r.cfg.PoolTarget}
		sig := poolKey.Sign(target.Bytes())
		decl.PoolTarget = &target
		decl.PoolSignature = &sig
	}
	if err := r.node.DeclareProofOfSpace(ctx, decl); err != nil {
		return false, err
	}
	r.declared.Add(c.QualityString, c)
	r.logger.Info("declared proof of space",
		zap.Stringer("plot_id", c.PlotID),
		zap.Uint8("index", sp.Index),
		zap.Uint64("required_iters", iters),
	)
	return true, nil
}

// SignedValues signs the foliage of a block built on a declared proof.
func (r *Router) SignedValues(ctx context.Context, req *wire.RequestSignedValues) (*wire.SignedValues, error) {
	c, ok := r.declared.Get(req.QualityString)
	if !ok {
		return nil, fmt.Errorf("%w: no declared proof with quality %s", types.ErrStaleWork, req.QualityString.ShortString())
	}
	sigs, err := r.sign(ctx, c, [][]byte{req.FoliageBlockDataHash[:], req.FoliageTransactionBlockHash[:]})
	if err != nil {
		return nil, err
	}
	return &wire.SignedValues{
		QualityString:                    req.QualityString,
		FoliageBlockDataSignature:        sigs[0],
		FoliageTransactionBlockSignature: sigs[1],
	}, nil
}

// sign returns one plot signature per message. The harvester share is combined with the
// farmer share, and the taproot share for pool contract plots, and verified under the
// plot public key.
func (r *Router) sign(ctx context.Context, c *types.ProofCandidate, msgs [][]byte) ([]types.Bytes96, error) {
	key := sigKey{plotID: c.PlotID, digest: hash.StdHash(msgs...)}
	resp, ok := r.signatures.Get(key)
	if !ok {
		req := &wire.RequestSignatures{
			PlotID:        c.PlotID,
			ChallengeHash: c.ChallengeHash,
			SPHash:        c.SPHash,
			Messages:      make([]wire.SignMessage, 0, len(msgs)),
		}
		for _, msg := range msgs {
			req.Messages = append(req.Messages, wire.SignMessage{Data: msg})
		}
		var err error
		resp, err = r.signer.SignatureShares(ctx, c.HarvesterID, req)
		if err != nil {
			return nil, fmt.Errorf("request signatures: %w", err)
		}
		if len(resp.Signatures) != len(msgs) {
			return nil, fmt.Errorf("%w: %d signatures for %d messages",
				types.ErrProtocolViolation, len(resp.Signatures), len(msgs))
		}
		r.signatures.Add(key, resp)
	}

	farmerKey, err := r.keys.Farmer(resp.FarmerPK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	taproot := c.Proof.PoolContractPuzzleHash != nil
	plotPK, err := signing.PlotPublicKey(resp.LocalPK, resp.FarmerPK, taproot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCryptoValidation, err)
	}
	if plotPK != c.Proof.PlotPublicKey {
		return nil, fmt.Errorf("%w: harvester keys do not add up to the plot key", types.ErrCryptoValidation)
	}
	var taprootKey *signing.PrivateKey
	if taproot {
		if taprootKey, err = signing.TaprootKey(resp.LocalPK, resp.FarmerPK); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrCryptoValidation, err)
		}
	}
	out := make([]types.Bytes96, 0, len(msgs))
	for i, msg := range msgs {
		shares := []types.Bytes96{resp.Signatures[i], farmerKey.SignPrepend(msg, plotPK)}
		if taprootKey != nil {
			shares = append(shares, taprootKey.SignPrepend(msg, plotPK))
		}
		agg, err := signing.Aggregate(shares...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrCryptoValidation, err)
		}
		if !signing.Verify(plotPK, msg, agg) {
			r.signatures.Remove(key)
			return nil, fmt.Errorf("%w: plot signature does not verify", types.ErrCryptoValidation)
		}
		out = append(out, agg)
	}
	return out, nil
}
