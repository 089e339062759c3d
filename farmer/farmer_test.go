package farmer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/harvester"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/plot/plottest"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

var (
	contractA = types.Bytes32{0xc0, 0x0a}
	contractB = types.Bytes32{0xc0, 0x0b}
	launcherA = types.Bytes32{0x1a}
)

// testConstants disables the plot filter so every plot is looked up.
func testConstants() *consensus.Constants {
	c := consensus.Simnet()
	c.NumberZeroBitsPlotFilter = 0
	return c
}

func testKeychain(tb testing.TB) *signing.Keychain {
	tb.Helper()
	kc, err := signing.NewKeychain(signing.KeySet{
		Farmer: plottest.Key(tb, 100),
		Pool:   plottest.Key(tb, 101),
	})
	require.NoError(tb, err)
	return kc
}

func newHarvester(tb testing.TB, plots ...plottest.Options) (*harvester.Harvester, []*plot.Plot) {
	tb.Helper()
	fs := afero.NewMemMapFs()
	var created []*plot.Plot
	for i, opts := range plots {
		path := fmt.Sprintf("/plots/%d%s", i, plot.Extension)
		created = append(created, plottest.Create(tb, fs, path, opts))
	}
	cfg := harvester.DefaultConfig()
	cfg.Plots.Directories = []string{"/plots"}
	logger := zaptest.NewLogger(tb)
	manager := plot.NewManager(fs, cfg.Plots, plot.WithLogger(logger))
	require.NoError(tb, manager.Rescan(context.Background()))
	h := harvester.New(manager, testConstants(), cfg,
		harvester.WithLogger(logger),
		harvester.WithClock(clockwork.NewFakeClock()),
	)
	return h, created
}

func testSignagePoint(index uint8, subSlotIters uint64) *types.SignagePoint {
	return &types.SignagePoint{
		Index:            index,
		ChallengeHash:    types.Bytes32{0xaa},
		ChallengeChainSP: types.Bytes32{0xbb, index},
		RewardChainSP:    types.Bytes32{0xcc, index},
		Difficulty:       1,
		SubSlotIters:     subSlotIters,
	}
}

func harvesterMessage(sp *types.SignagePoint) *wire.NewSignagePointHarvester {
	return &wire.NewSignagePointHarvester{
		ChallengeHash: sp.ChallengeHash,
		SPHash:        sp.SPHash(),
		Index:         sp.Index,
		Difficulty:    sp.Difficulty,
		SubSlotIters:  sp.SubSlotIters,
	}
}

// findProofs varies the signage point until every plot in plots yields a proof and
// returns the signage point with one proof per plot.
func findProofs(
	tb testing.TB,
	src ProofSource,
	sp *types.SignagePoint,
	plots ...*plot.Plot,
) (*types.SignagePoint, map[types.Bytes32]*wire.NewProofOfSpace) {
	tb.Helper()
	for n := range 256 {
		candidate := *sp
		candidate.ChallengeChainSP[2] = byte(n)
		msg := harvesterMessage(&candidate)
		msg.SubSlotIters = 1 << 40
		found := make(map[types.Bytes32]*wire.NewProofOfSpace)
		_, err := src.Challenge(context.Background(), msg, func(proof *wire.NewProofOfSpace) {
			if _, ok := found[proof.PlotID]; !ok {
				found[proof.PlotID] = proof
			}
		})
		require.NoError(tb, err)
		complete := true
		for _, p := range plots {
			if _, ok := found[p.ID()]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return &candidate, found
		}
	}
	require.FailNow(tb, "no signage point with a proof for every plot")
	return nil, nil
}

// candidateOf verifies a proof the way the scheduler does.
func candidateOf(
	tb testing.TB,
	sp *types.SignagePoint,
	source ProofSource,
	proof *wire.NewProofOfSpace,
) *types.ProofCandidate {
	tb.Helper()
	plotID, quality, err := plot.VerifyProofOfSpace(&proof.Proof, sp.ChallengeHash, sp.SPHash())
	require.NoError(tb, err)
	return &types.ProofCandidate{
		PlotID:            plotID,
		SignagePointIndex: sp.Index,
		SPHash:            sp.SPHash(),
		ChallengeHash:     sp.ChallengeHash,
		QualityString:     quality,
		Proof:             proof.Proof,
		HarvesterID:       source.ID(),
	}
}

func mockPool(
	ctrl *gomock.Controller,
	contract, launcher types.Bytes32,
	auth *signing.PrivateKey,
	difficulty uint64,
) *MockPoolMember {
	member := NewMockPoolMember(ctrl)
	member.EXPECT().ContractPuzzleHash().Return(contract).AnyTimes()
	member.EXPECT().LauncherID().Return(launcher).AnyTimes()
	member.EXPECT().Ready().Return(true).AnyTimes()
	member.EXPECT().State().Return(types.PoolState{
		LauncherID:        launcher,
		PoolURL:           "https://pool.example",
		CurrentDifficulty: difficulty,
		Registered:        true,
	}).AnyTimes()
	member.EXPECT().Stats().Return(types.PoolStats{}).AnyTimes()
	member.EXPECT().AuthenticationToken().Return(uint64(42)).AnyTimes()
	member.EXPECT().AuthKey().Return(auth).AnyTimes()
	return member
}

type partialLog struct {
	mu       sync.Mutex
	partials []*types.Partial
}

func (l *partialLog) submit(_ context.Context, p *types.Partial) (pool.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.partials = append(l.partials, p)
	return pool.Accepted, nil
}

func (l *partialLog) all() []*types.Partial {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*types.Partial(nil), l.partials...)
}

func TestFarmerEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	h, plots := newHarvester(t,
		plottest.Options{Seed: 1, Contract: &contractA},
		plottest.Options{Seed: 2},
	)
	local := NewLocalSource(h)
	sp, _ := findProofs(t, local, testSignagePoint(5, 64), plots[0])

	auth := plottest.Key(t, 7)
	var log partialLog
	member := mockPool(ctrl, contractA, launcherA, auth, 1)
	member.EXPECT().SubmitPartial(gomock.Any(), gomock.Any()).DoAndReturn(log.submit).MinTimes(1)
	member.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	node := NewMockFullNode(ctrl)
	node.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	cfg := DefaultConfig()
	cfg.Scheduler.Deadline = time.Hour
	f := New(cfg, testConstants(), testKeychain(t), []ProofSource{local}, []PoolMember{member},
		WithLogger(zaptest.NewLogger(t)),
		WithClock(clockwork.NewFakeClock()),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, node) }()

	f.NewPeak(ctx, &types.Peak{Height: 10})
	f.NewSignagePoint(ctx, sp, false)
	require.Eventually(t, func() bool {
		return f.Status().Window.State == types.WindowSubmitted && len(log.all()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	for _, partial := range log.all() {
		require.Equal(t, launcherA, partial.Payload.LauncherID)
		require.Equal(t, sp.SPHash(), partial.Payload.SPHash)
		require.Equal(t, contractA, *partial.Payload.ProofOfSpace.PoolContractPuzzleHash)
	}

	status := f.Status()
	require.Equal(t, uint32(10), status.Peak.Height)
	require.Equal(t, sp.Index, status.Window.SignagePoint.Index)
	require.Len(t, status.Harvesters, 1)
	require.Equal(t, supervisor.Ready.String(), status.Harvesters[0].State)
	require.Equal(t, 2, status.Harvesters[0].Plots)
	require.Len(t, status.Pools, 1)
	require.Equal(t, uint64(1), status.Pools[0].Difficulty)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "farmer did not stop")
	}
}

func TestPoolDifficulties(t *testing.T) {
	ctrl := gomock.NewController(t)
	ready := mockPool(ctrl, contractA, launcherA, plottest.Key(t, 7), 9)
	notReady := NewMockPoolMember(ctrl)
	notReady.EXPECT().ContractPuzzleHash().Return(contractB).AnyTimes()
	notReady.EXPECT().Ready().Return(false)

	constants := testConstants()
	f := New(DefaultConfig(), constants, testKeychain(t), nil, []PoolMember{ready, notReady})
	require.Equal(t, []wire.PoolDifficulty{{
		Difficulty:             9,
		SubSlotIters:           constants.PoolSubSlotIters,
		PoolContractPuzzleHash: contractA,
	}}, f.poolDifficulties())
}
