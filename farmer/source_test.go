package farmer

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/harvester"
	"github.com/plotfarm/go-farmer/log/logtest"
	"github.com/plotfarm/go-farmer/plot/plottest"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

func serveHarvester(tb testing.TB, h *harvester.Harvester, addr string) (string, func()) {
	tb.Helper()
	ln, err := net.Listen("tcp", addr)
	require.NoError(tb, err)
	srv := harvester.NewServer(logtest.New(tb), h, testConstants().Name, "test", wire.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, nil) }()
	stop := sync.OnceFunc(func() {
		cancel()
		require.NoError(tb, <-done)
	})
	tb.Cleanup(stop)
	return ln.Addr().String(), stop
}

func startRemote(tb testing.TB, addr string, challengeTimeout time.Duration) *RemoteSource {
	tb.Helper()
	supCfg := supervisor.DefaultConfig()
	supCfg.InitialBackoff = 10 * time.Millisecond
	supCfg.MaxBackoff = 50 * time.Millisecond
	supCfg.Jitter = 0
	local := wire.Handshake{
		Network:         testConstants().Name,
		ProtocolVersion: wire.ProtocolVersion,
		SoftwareVersion: "test",
		NodeType:        wire.NodeFarmer,
		PeerID:          uuid.New(),
	}
	src := NewRemoteSource(logtest.New(tb), clockwork.NewRealClock(), "ws://"+addr, nil, local,
		wire.DefaultConfig(), challengeTimeout, supCfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()
	tb.Cleanup(func() {
		cancel()
		require.NoError(tb, <-done)
	})
	return src
}

func waitReady(tb testing.TB, src ProofSource) {
	tb.Helper()
	require.Eventually(tb, func() bool {
		return src.State() == supervisor.Ready
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRemoteSource(t *testing.T) {
	h, plots := newHarvester(t,
		plottest.Options{Seed: 1},
		plottest.Options{Seed: 2, Contract: &contractA},
	)
	addr, _ := serveHarvester(t, h, "127.0.0.1:0")
	src := startRemote(t, addr, 0)
	waitReady(t, src)
	require.Eventually(t, func() bool { return src.Plots() == 2 }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, h.ID(), src.ID())
	require.Equal(t, "ws://"+addr, src.Name())

	sp, proofs := findProofs(t, src, testSignagePoint(3, 1<<40), plots...)
	for id, proof := range proofs {
		candidate := candidateOf(t, sp, src, proof)
		require.Equal(t, id, candidate.PlotID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := &wire.RequestSignatures{
		PlotID:   plots[0].ID(),
		Messages: []wire.SignMessage{{Data: []byte("payload")}},
	}
	resp, err := src.SignatureShares(ctx, req)
	require.NoError(t, err)
	require.Len(t, resp.Signatures, 1)
	require.Equal(t, plottest.Key(t, 100).PublicKey(), resp.FarmerPK)

	req.PlotID = types.Bytes32{0xff}
	_, err = src.SignatureShares(ctx, req)
	var perr *wire.PeerError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, wire.CodeNotFound, perr.Code)
	require.Equal(t, supervisor.Ready, src.State())
}

func TestRemoteSourceReconnects(t *testing.T) {
	h, plots := newHarvester(t, plottest.Options{Seed: 4})
	addr, stop := serveHarvester(t, h, "127.0.0.1:0")
	src := startRemote(t, addr, 0)
	pool := NewHarvesterPool(logtest.New(t), time.Second, src)
	waitReady(t, src)
	require.Len(t, pool.Active(), 1)

	stop()
	require.Eventually(t, func() bool {
		return !src.State().Usable()
	}, 5*time.Second, 5*time.Millisecond)
	require.Empty(t, pool.Active())

	msg := harvesterMessage(testSignagePoint(1, 1<<40))
	_, err := pool.SignatureShares(context.Background(), src.ID(), &wire.RequestSignatures{PlotID: plots[0].ID()})
	require.ErrorIs(t, err, ErrHarvesterUnavailable)

	serveHarvester(t, h, addr)
	waitReady(t, src)
	require.Len(t, pool.Active(), 1)

	type report struct {
		info *wire.FarmingInfo
		err  error
	}
	reports := make(chan report, 1)
	ids := pool.Broadcast(context.Background(), msg,
		func(uuid.UUID, *wire.NewProofOfSpace) {},
		func(_ uuid.UUID, info *wire.FarmingInfo, err error) {
			reports <- report{info: info, err: err}
		},
	)
	require.Equal(t, []uuid.UUID{h.ID()}, ids)
	select {
	case r := <-reports:
		require.NoError(t, r.err)
		require.EqualValues(t, 1, r.info.TotalPlots)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "harvester did not report")
	}
}

// serveSilentHarvester answers inventory requests and forwards challenges to the returned
// channel without ever reporting on them.
func serveSilentHarvester(tb testing.TB) (string, <-chan *wire.Frame) {
	tb.Helper()
	challenges := make(chan *wire.Frame, 8)
	up := wire.NewUpgrader(logtest.New(tb), wire.Handshake{
		Network:         testConstants().Name,
		ProtocolVersion: wire.ProtocolVersion,
		SoftwareVersion: "test",
		NodeType:        wire.NodeHarvester,
		PeerID:          uuid.New(),
	}, wire.DefaultConfig())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r)
		if err != nil {
			return
		}
		defer conn.Close()
		for frame := range conn.Inbound() {
			switch frame.Type {
			case wire.MsgRequestPlotInventory:
				conn.Reply(r.Context(), frame, wire.MsgPlotInventory, &wire.PlotInventory{})
			case wire.MsgNewSignagePointHarvester:
				challenges <- frame
			}
		}
	}))
	tb.Cleanup(srv.Close)
	return srv.Listener.Addr().String(), challenges
}

func TestRemoteSourceAbandonedChallenge(t *testing.T) {
	addr, challenges := serveSilentHarvester(t)
	src := startRemote(t, addr, 100*time.Millisecond)
	waitReady(t, src)

	msg := harvesterMessage(testSignagePoint(2, 1<<40))
	challenge := func(ctx context.Context) <-chan error {
		errs := make(chan error, 1)
		go func() {
			_, err := src.Challenge(ctx, msg, func(*wire.NewProofOfSpace) {})
			errs <- err
		}()
		return errs
	}
	receive := func(errs <-chan error) error {
		select {
		case err := <-errs:
			return err
		case <-time.After(5 * time.Second):
			require.FailNow(t, "challenge still waiting")
		}
		return nil
	}

	first := challenge(context.Background())
	<-challenges
	second := challenge(context.Background())
	<-challenges
	require.ErrorIs(t, receive(first), ErrChallengeReplaced)

	// the harvester never reports
	err := receive(second)
	require.ErrorIs(t, err, ErrChallengeTimeout)
	require.ErrorIs(t, err, types.ErrTransientNetwork)
	src.mu.Lock()
	require.Empty(t, src.challenges)
	src.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	third := challenge(ctx)
	<-challenges
	cancel()
	require.ErrorIs(t, receive(third), context.Canceled)
}
