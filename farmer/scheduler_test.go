package farmer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/plot/plottest"
	"github.com/plotfarm/go-farmer/wire"
)

type dispatched struct {
	sp        *types.SignagePoint
	candidate *types.ProofCandidate
}

type recordingDispatcher struct {
	ch chan dispatched
}

func (d *recordingDispatcher) Dispatch(_ context.Context, sp *types.SignagePoint, c *types.ProofCandidate) {
	d.ch <- dispatched{sp: sp, candidate: c}
}

type broadcast struct {
	ctx      context.Context
	msg      *wire.NewSignagePointHarvester
	onProof  func(uuid.UUID, *wire.NewProofOfSpace)
	onReport func(uuid.UUID, *wire.FarmingInfo, error)
}

// scriptedHarvesters records broadcasts. With a source id set, it emits proofs and reports
// on behalf of that source unless hold is set.
type scriptedHarvesters struct {
	source uuid.UUID
	proofs []*wire.NewProofOfSpace
	hold   bool

	mu    sync.Mutex
	calls []broadcast
	ch    chan broadcast
}

func (h *scriptedHarvesters) Broadcast(
	ctx context.Context,
	msg *wire.NewSignagePointHarvester,
	onProof func(uuid.UUID, *wire.NewProofOfSpace),
	onReport func(uuid.UUID, *wire.FarmingInfo, error),
) []uuid.UUID {
	b := broadcast{ctx: ctx, msg: msg, onProof: onProof, onReport: onReport}
	h.mu.Lock()
	h.calls = append(h.calls, b)
	h.mu.Unlock()
	if h.ch != nil {
		h.ch <- b
	}
	if h.source == uuid.Nil {
		return nil
	}
	if !h.hold {
		go func() {
			for _, proof := range h.proofs {
				onProof(h.source, proof)
			}
			onReport(h.source, &wire.FarmingInfo{Index: msg.Index, SPHash: msg.SPHash}, nil)
		}()
	}
	return []uuid.UUID{h.source}
}

func (h *scriptedHarvesters) indices() []uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []uint8
	for _, c := range h.calls {
		out = append(out, c.msg.Index)
	}
	return out
}

func (h *scriptedHarvesters) last() *wire.NewSignagePointHarvester {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[len(h.calls)-1].msg
}

type schedulerFixture struct {
	clock      clockwork.FakeClock
	scheduler  *Scheduler
	harvesters *scriptedHarvesters
	dispatcher *recordingDispatcher
	cancel     context.CancelFunc
}

func newSchedulerFixture(tb testing.TB, harvesters *scriptedHarvesters, cfg SchedulerConfig) *schedulerFixture {
	tb.Helper()
	f := &schedulerFixture{
		clock:      clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		harvesters: harvesters,
		dispatcher: &recordingDispatcher{ch: make(chan dispatched, 64)},
	}
	f.scheduler = NewScheduler(
		zaptest.NewLogger(tb),
		f.clock,
		testConstants(),
		cfg,
		harvesters,
		f.dispatcher,
		func() []wire.PoolDifficulty {
			return []wire.PoolDifficulty{{Difficulty: 3, SubSlotIters: 1 << 30, PoolContractPuzzleHash: contractA}}
		},
	)
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	done := make(chan error, 1)
	go func() { done <- f.scheduler.Run(ctx) }()
	tb.Cleanup(func() {
		cancel()
		require.NoError(tb, <-done)
	})
	return f
}

func (f *schedulerFixture) waitIndex(tb testing.TB, index uint8, state types.WindowState) {
	tb.Helper()
	require.Eventually(tb, func() bool {
		status := f.scheduler.Status()
		return status.SignagePoint != nil && status.SignagePoint.Index == index && status.State == state
	}, 5*time.Second, time.Millisecond)
}

func (f *schedulerFixture) noDispatch(tb testing.TB) {
	tb.Helper()
	select {
	case d := <-f.dispatcher.ch:
		require.FailNow(tb, "unexpected dispatch", "plot %s", d.candidate.PlotID)
	default:
	}
}

func TestSchedulerStaleSignagePoints(t *testing.T) {
	harvesters := &scriptedHarvesters{}
	f := newSchedulerFixture(t, harvesters, DefaultSchedulerConfig())
	ctx := context.Background()

	f.scheduler.NewSignagePoint(ctx, testSignagePoint(5, 1<<40), false)
	f.waitIndex(t, 5, types.WindowSubmitted)

	// same sub-slot, not newer
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(5, 1<<40), false)
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(3, 1<<40), false)
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(6, 1<<40), false)
	f.waitIndex(t, 6, types.WindowSubmitted)
	require.Equal(t, []uint8{5, 6}, harvesters.indices())

	// a reset does not rewind the current sub-slot
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(1, 1<<40), true)
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(6, 1<<40), true)

	// a new challenge starts a new sub-slot
	next := testSignagePoint(0, 1<<40)
	next.ChallengeHash = types.Bytes32{0xab}
	next.PeakHeight = 10
	f.scheduler.NewSignagePoint(ctx, next, false)
	f.waitIndex(t, 0, types.WindowSubmitted)
	require.Equal(t, []uint8{5, 6, 0}, harvesters.indices())

	// the previous sub-slot and anything below the current peak are history
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(7, 1<<40), true)
	older := testSignagePoint(9, 1<<40)
	older.ChallengeHash = types.Bytes32{0xa0}
	older.PeakHeight = 9
	f.scheduler.NewSignagePoint(ctx, older, true)

	last := testSignagePoint(1, 1<<40)
	last.ChallengeHash = types.Bytes32{0xab}
	last.PeakHeight = 10
	f.scheduler.NewSignagePoint(ctx, last, false)
	f.waitIndex(t, 1, types.WindowSubmitted)
	require.Equal(t, []uint8{5, 6, 0, 1}, harvesters.indices())
}

func TestSchedulerKeepsLiveWindow(t *testing.T) {
	harvesters := &scriptedHarvesters{source: uuid.New(), hold: true, ch: make(chan broadcast, 4)}
	f := newSchedulerFixture(t, harvesters, DefaultSchedulerConfig())
	ctx := context.Background()

	f.scheduler.NewSignagePoint(ctx, testSignagePoint(5, 1<<40), false)
	<-harvesters.ch
	f.waitIndex(t, 5, types.WindowAwaitingProofs)

	// replayed after a full node reconnect
	f.scheduler.NewSignagePoint(ctx, testSignagePoint(5, 1<<40), true)
	// from a sub-slot that ended before the current one
	older := testSignagePoint(2, 1<<40)
	older.ChallengeHash = types.Bytes32{0x99}
	f.scheduler.NewSignagePoint(ctx, older, true)

	require.Never(t, func() bool {
		status := f.scheduler.Status()
		return len(harvesters.indices()) != 1 ||
			status.State != types.WindowAwaitingProofs || status.SignagePoint.Index != 5
	}, 50*time.Millisecond, time.Millisecond)

	// a new sub-slot starts at index 0 and supersedes the window
	next := testSignagePoint(0, 1<<40)
	next.ChallengeHash = types.Bytes32{0xab}
	f.scheduler.NewSignagePoint(ctx, next, true)
	<-harvesters.ch
	f.waitIndex(t, 0, types.WindowAwaitingProofs)
	require.Equal(t, []uint8{5, 0}, harvesters.indices())
}

func TestSchedulerChallengeMessage(t *testing.T) {
	harvesters := &scriptedHarvesters{}
	f := newSchedulerFixture(t, harvesters, DefaultSchedulerConfig())

	sp := testSignagePoint(9, 1<<40)
	sp.PeakHeight = 77
	f.scheduler.NewSignagePoint(context.Background(), sp, false)
	f.waitIndex(t, 9, types.WindowSubmitted)

	msg := harvesters.last()
	require.Equal(t, sp.SPHash(), msg.SPHash)
	require.Equal(t, sp.ChallengeHash, msg.ChallengeHash)
	require.Equal(t, uint32(77), msg.PeakHeight)
	require.Zero(t, msg.FilterPrefixBits)
	require.Len(t, msg.PoolDifficulties, 1)
	require.Equal(t, contractA, msg.PoolDifficulties[0].PoolContractPuzzleHash)

	status := f.scheduler.Status()
	require.Equal(t, f.clock.Now(), status.SignagePoint.Received)
	require.Equal(t, f.clock.Now().Add(testConstants().SPInterval()), status.SignagePoint.Deadline)
}

func TestSchedulerDispatchesOnce(t *testing.T) {
	h, plots := newHarvester(t, plottest.Options{Seed: 3}, plottest.Options{Seed: 4})
	local := NewLocalSource(h)
	sp, proofs := findProofs(t, local, testSignagePoint(2, 1<<40), plots...)

	harvesters := &scriptedHarvesters{source: local.ID()}
	for _, proof := range proofs {
		harvesters.proofs = append(harvesters.proofs, proof)
	}
	// the second copy of each proof is a duplicate within the window
	harvesters.proofs = append(harvesters.proofs, harvesters.proofs...)
	f := newSchedulerFixture(t, harvesters, DefaultSchedulerConfig())

	f.scheduler.NewSignagePoint(context.Background(), sp, false)
	f.waitIndex(t, sp.Index, types.WindowSubmitted)
	status := f.scheduler.Status()
	require.Equal(t, 2*len(proofs), status.Proofs)
	require.Equal(t, len(proofs), status.Candidates)

	seen := map[types.CandidateKey]struct{}{}
	for range proofs {
		d := <-f.dispatcher.ch
		require.Equal(t, sp.SPHash(), d.sp.SPHash())
		require.Equal(t, local.ID(), d.candidate.HarvesterID)
		seen[d.candidate.Key()] = struct{}{}
	}
	require.Len(t, seen, len(proofs))

	// a replay after a full node reconnect is not broadcast again
	f.scheduler.NewSignagePoint(context.Background(), sp, true)
	require.Never(t, func() bool {
		status := f.scheduler.Status()
		return len(harvesters.indices()) != 1 || status.Candidates != len(proofs)
	}, 50*time.Millisecond, time.Millisecond)
	f.noDispatch(t)
}

func TestSchedulerRejectsInvalidProofs(t *testing.T) {
	h, plots := newHarvester(t, plottest.Options{Seed: 5})
	local := NewLocalSource(h)
	sp, proofs := findProofs(t, local, testSignagePoint(4, 1<<40), plots...)
	proof := *proofs[plots[0].ID()]

	forged := proof
	forged.PlotID = types.Bytes32{0xff}
	mismatched := proof
	mismatched.Index = sp.Index + 1
	corrupted := proof
	corrupted.Proof.Challenge[0] ^= 0xff

	harvesters := &scriptedHarvesters{
		source: local.ID(),
		proofs: []*wire.NewProofOfSpace{&forged, &mismatched, &corrupted},
	}
	f := newSchedulerFixture(t, harvesters, DefaultSchedulerConfig())
	f.scheduler.NewSignagePoint(context.Background(), sp, false)
	f.waitIndex(t, sp.Index, types.WindowSubmitted)

	status := f.scheduler.Status()
	require.Equal(t, 3, status.Proofs)
	require.Zero(t, status.Candidates)
	f.noDispatch(t)
}

func TestSchedulerDeadline(t *testing.T) {
	h, plots := newHarvester(t, plottest.Options{Seed: 6})
	local := NewLocalSource(h)
	sp, proofs := findProofs(t, local, testSignagePoint(3, 1<<40), plots...)

	harvesters := &scriptedHarvesters{source: local.ID(), hold: true, ch: make(chan broadcast, 4)}
	cfg := DefaultSchedulerConfig()
	cfg.Deadline = 2 * time.Second
	f := newSchedulerFixture(t, harvesters, cfg)

	f.scheduler.NewSignagePoint(context.Background(), sp, false)
	held := <-harvesters.ch
	f.waitIndex(t, sp.Index, types.WindowAwaitingProofs)
	require.Equal(t, 1, f.scheduler.Status().Pending)
	require.NoError(t, held.ctx.Err())

	f.clock.BlockUntil(1)
	f.clock.Advance(cfg.Deadline)
	f.waitIndex(t, sp.Index, types.WindowExpired)
	// the deadline stops the wait, scans still running are not canceled
	require.NoError(t, held.ctx.Err())

	// reported after the deadline
	held.onProof(local.ID(), proofs[plots[0].ID()])
	held.onReport(local.ID(), &wire.FarmingInfo{Index: sp.Index}, nil)

	next := testSignagePoint(sp.Index+1, 1<<40)
	harvesters.source = uuid.Nil
	f.scheduler.NewSignagePoint(context.Background(), next, false)
	f.waitIndex(t, next.Index, types.WindowSubmitted)
	f.noDispatch(t)
}

func TestSchedulerSupersededWindow(t *testing.T) {
	harvesters := &scriptedHarvesters{source: uuid.New(), hold: true, ch: make(chan broadcast, 4)}
	f := newSchedulerFixture(t, harvesters, DefaultSchedulerConfig())

	first := testSignagePoint(1, 1<<40)
	f.scheduler.NewSignagePoint(context.Background(), first, false)
	held := <-harvesters.ch
	f.waitIndex(t, 1, types.WindowAwaitingProofs)

	f.scheduler.NewSignagePoint(context.Background(), testSignagePoint(2, 1<<40), false)
	<-harvesters.ch
	f.waitIndex(t, 2, types.WindowAwaitingProofs)

	// a report for the superseded window does not close the current one
	held.onReport(harvesters.source, &wire.FarmingInfo{Index: 1}, nil)
	f.scheduler.NewSignagePoint(context.Background(), testSignagePoint(2, 1<<40), false)
	require.Never(t, func() bool {
		return f.scheduler.Status().State != types.WindowAwaitingProofs
	}, 50*time.Millisecond, time.Millisecond)
	require.Equal(t, 1, f.scheduler.Status().Pending)
}
