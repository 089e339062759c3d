package farmer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/plot/plottest"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/wire"
)

type countingSigner struct {
	Signer
	calls atomic.Int32
}

func (s *countingSigner) SignatureShares(
	ctx context.Context,
	id uuid.UUID,
	req *wire.RequestSignatures,
) (*wire.RespondSignatures, error) {
	s.calls.Add(1)
	return s.Signer.SignatureShares(ctx, id, req)
}

type routerFixture struct {
	router *Router
	source *LocalSource
	signer *countingSigner
	node   *MockFullNode
	plots  []*plot.Plot
	cfg    RouterConfig
}

// newRouterFixture farms a pool contract plot bound to contractA and a solo plot.
func newRouterFixture(tb testing.TB, ctrl *gomock.Controller, pools ...PoolMember) *routerFixture {
	tb.Helper()
	h, plots := newHarvester(tb,
		plottest.Options{Seed: 1, Contract: &contractA},
		plottest.Options{Seed: 2},
	)
	source := NewLocalSource(h)
	signer := &countingSigner{Signer: NewHarvesterPool(zaptest.NewLogger(tb), time.Second, source)}
	cfg := DefaultRouterConfig()
	cfg.FarmerTarget = types.Bytes32{0xfa}
	cfg.PoolTarget = types.Bytes32{0x90}
	router := NewRouter(zaptest.NewLogger(tb), testConstants(), cfg, testKeychain(tb), signer, pools)
	node := NewMockFullNode(ctrl)
	router.node = node
	return &routerFixture{router: router, source: source, signer: signer, node: node, plots: plots, cfg: cfg}
}

func (f *routerFixture) candidates(
	tb testing.TB,
	index uint8,
) (*types.SignagePoint, *types.ProofCandidate, *types.ProofCandidate) {
	tb.Helper()
	sp, proofs := findProofs(tb, f.source, testSignagePoint(index, 1<<40), f.plots...)
	pooled := candidateOf(tb, sp, f.source, proofs[f.plots[0].ID()])
	solo := candidateOf(tb, sp, f.source, proofs[f.plots[1].ID()])
	return sp, pooled, solo
}

func TestRouterMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	member := mockPool(ctrl, contractA, launcherA, plottest.Key(t, 7), 1)
	f := newRouterFixture(t, ctrl, member)
	_, pooled, solo := f.candidates(t, 1)

	mode, got := f.router.Mode(&pooled.Proof)
	require.Equal(t, types.FarmingPool, mode)
	require.Equal(t, member, got)

	mode, got = f.router.Mode(&solo.Proof)
	require.Equal(t, types.FarmingSolo, mode)
	require.Nil(t, got)

	other := pooled.Proof
	other.PoolContractPuzzleHash = &contractB
	mode, _ = f.router.Mode(&other)
	require.Equal(t, types.FarmingSolo, mode)
}

func TestRouterPartialAndDiscard(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := plottest.Key(t, 7)
	member := mockPool(ctrl, contractA, launcherA, auth, 1)
	var log partialLog
	member.EXPECT().SubmitPartial(gomock.Any(), gomock.Any()).DoAndReturn(log.submit).Times(1)
	f := newRouterFixture(t, ctrl, member)

	sp, pooled, solo := f.candidates(t, 5)
	// the network difficulty is out of reach, only the pool threshold is met
	sp.SubSlotIters = 64

	f.router.Route(context.Background(), sp, pooled)
	f.router.Route(context.Background(), sp, solo)

	partials := log.all()
	require.Len(t, partials, 1)
	partial := partials[0]
	require.Equal(t, launcherA, partial.Payload.LauncherID)
	require.Equal(t, uint64(42), partial.Payload.AuthenticationToken)
	require.Equal(t, pooled.Proof, partial.Payload.ProofOfSpace)
	require.Equal(t, sp.SPHash(), partial.Payload.SPHash)
	id := f.source.ID()
	require.Equal(t, types.BytesToBytes32(id[:]), partial.Payload.HarvesterID)

	msg := pool.SigningMessage(&partial.Payload)
	require.True(t, signing.AggregateVerify(
		[]types.Bytes48{pooled.Proof.PlotPublicKey, auth.PublicKey()},
		[][]byte{msg, msg},
		partial.AggregateSignature,
	))
}

func TestRouterPoolNotReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	member := NewMockPoolMember(ctrl)
	member.EXPECT().ContractPuzzleHash().Return(contractA).AnyTimes()
	member.EXPECT().LauncherID().Return(launcherA).AnyTimes()
	member.EXPECT().Ready().Return(false)
	f := newRouterFixture(t, ctrl, member)

	sp, pooled, _ := f.candidates(t, 2)
	sp.SubSlotIters = 64
	f.router.Route(context.Background(), sp, pooled)
	require.Zero(t, f.signer.calls.Load())
}

func TestRouterPoolDifficulty(t *testing.T) {
	ctrl := gomock.NewController(t)
	member := mockPool(ctrl, contractA, launcherA, plottest.Key(t, 7), 1<<60)
	f := newRouterFixture(t, ctrl, member)

	sp, pooled, _ := f.candidates(t, 2)
	sp.SubSlotIters = 64
	// no partial at or above the pool threshold
	f.router.Route(context.Background(), sp, pooled)
	require.Zero(t, f.signer.calls.Load())
}

func TestRouterDeclaresFullProof(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newRouterFixture(t, ctrl)
	sp, _, solo := f.candidates(t, 8)

	var decl *wire.DeclareProofOfSpace
	f.node.EXPECT().DeclareProofOfSpace(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, d *wire.DeclareProofOfSpace) error {
			decl = d
			return nil
		})
	f.router.Route(context.Background(), sp, solo)
	require.NotNil(t, decl)

	plotPK := solo.Proof.PlotPublicKey
	require.Equal(t, sp.ChallengeHash, decl.ChallengeHash)
	require.Equal(t, sp.SPHash(), decl.ChallengeChainSP)
	require.Equal(t, sp.RewardChainSP, decl.RewardChainSP)
	require.Equal(t, f.cfg.FarmerTarget, decl.FarmerPuzzleHash)
	require.True(t, signing.Verify(plotPK, decl.ChallengeChainSP[:], decl.ChallengeChainSPSignature))
	require.True(t, signing.Verify(plotPK, decl.RewardChainSP[:], decl.RewardChainSPSignature))
	require.NotNil(t, decl.PoolTarget)
	require.Equal(t, f.cfg.PoolTarget, decl.PoolTarget.PuzzleHash)
	require.True(t, signing.Verify(plottest.Key(t, 101).PublicKey(), decl.PoolTarget.Bytes(), *decl.PoolSignature))

	req := &wire.RequestSignedValues{
		QualityString:               solo.QualityString,
		FoliageBlockDataHash:        types.Bytes32{0xf1},
		FoliageTransactionBlockHash: types.Bytes32{0xf2},
	}
	values, err := f.router.SignedValues(context.Background(), req)
	require.NoError(t, err)
	require.True(t, signing.Verify(plotPK, req.FoliageBlockDataHash[:], values.FoliageBlockDataSignature))
	require.True(t, signing.Verify(plotPK, req.FoliageTransactionBlockHash[:], values.FoliageTransactionBlockSignature))

	req.QualityString = types.Bytes32{0x01}
	_, err = f.router.SignedValues(context.Background(), req)
	require.ErrorIs(t, err, types.ErrStaleWork)
}

func TestRouterTaprootPlot(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := plottest.Key(t, 7)
	member := mockPool(ctrl, contractA, launcherA, auth, 1)
	var log partialLog
	member.EXPECT().SubmitPartial(gomock.Any(), gomock.Any()).DoAndReturn(log.submit)
	f := newRouterFixture(t, ctrl, member)
	sp, pooled, _ := f.candidates(t, 3)

	var decl *wire.DeclareProofOfSpace
	f.node.EXPECT().DeclareProofOfSpace(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, d *wire.DeclareProofOfSpace) error {
			decl = d
			return nil
		})
	f.router.Route(context.Background(), sp, pooled)
	require.Len(t, log.all(), 1)
	require.NotNil(t, decl)
	require.Nil(t, decl.PoolTarget)
	require.True(t, signing.Verify(pooled.Proof.PlotPublicKey, decl.ChallengeChainSP[:], decl.ChallengeChainSPSignature))
}

func TestRouterCachesSignatureShares(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newRouterFixture(t, ctrl)
	_, _, solo := f.candidates(t, 4)

	msgs := [][]byte{[]byte("one"), []byte("two")}
	first, err := f.router.sign(context.Background(), solo, msgs)
	require.NoError(t, err)
	second, err := f.router.sign(context.Background(), solo, msgs)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, f.signer.calls.Load())

	_, err = f.router.sign(context.Background(), solo, msgs[:1])
	require.NoError(t, err)
	require.EqualValues(t, 2, f.signer.calls.Load())
}

func TestRouterUnknownHarvester(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newRouterFixture(t, ctrl)
	sp, _, solo := f.candidates(t, 6)
	solo.HarvesterID = uuid.New()

	_, err := f.router.declare(context.Background(), sp, solo)
	require.ErrorIs(t, err, ErrHarvesterUnavailable)
	require.ErrorIs(t, err, types.ErrTransientNetwork)
}
