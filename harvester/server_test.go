package harvester

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/log/logtest"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/plot/plottest"
	"github.com/plotfarm/go-farmer/wire"
)

func farmerHandshake() wire.Handshake {
	return wire.Handshake{
		Network:         consensus.Simnet().Name,
		ProtocolVersion: wire.ProtocolVersion,
		SoftwareVersion: "test",
		NodeType:        wire.NodeFarmer,
		PeerID:          uuid.New(),
	}
}

func connect(tb testing.TB, f *fixture) *wire.Conn {
	tb.Helper()
	srv := NewServer(logtest.New(tb), f.harvester, consensus.Simnet().Name, "test", wire.DefaultConfig())
	ts := httptest.NewServer(srv)
	tb.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, err := wire.Dial(ctx, logtest.New(tb), url, nil, farmerHandshake(), wire.DefaultConfig())
	require.NoError(tb, err)
	tb.Cleanup(func() { conn.Close() })
	require.Equal(tb, f.harvester.ID(), conn.Remote().PeerID)
	require.Equal(tb, wire.NodeHarvester, conn.Remote().NodeType)
	return conn
}

func receive(tb testing.TB, conn *wire.Conn, typ wire.MessageType, msg codec.Decodable) {
	tb.Helper()
	select {
	case frame, ok := <-conn.Inbound():
		require.True(tb, ok, "connection closed")
		require.Equal(tb, typ, frame.Type)
		require.NoError(tb, codec.Decode(frame.Data, msg))
	case <-time.After(5 * time.Second):
		require.FailNow(tb, "timed out waiting for", typ.String())
	}
}

func TestServerInventory(t *testing.T) {
	f := newFixture(t, 2, 0)
	conn := connect(t, f)

	var inv wire.PlotInventory
	receive(t, conn, wire.MsgPlotInventory, &inv)
	require.Len(t, inv.Plots, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var requested wire.PlotInventory
	require.NoError(t, conn.Request(ctx, wire.MsgRequestPlotInventory, &wire.RequestPlotInventory{},
		wire.MsgPlotInventory, &requested))
	require.Equal(t, inv, requested)

	plottest.Create(t, f.fs, "/plots/new"+plot.Extension, plottest.Options{Seed: 99})
	require.NoError(t, f.manager.Rescan(ctx))
	var pushed wire.PlotInventory
	receive(t, conn, wire.MsgPlotInventory, &pushed)
	require.Len(t, pushed.Plots, 3)
	require.NotEqual(t, inv.Fingerprint, pushed.Fingerprint)
}

func TestServerSignagePoint(t *testing.T) {
	f := newFixture(t, 3, 0)
	conn := connect(t, f)
	receive(t, conn, wire.MsgPlotInventory, &wire.PlotInventory{})

	sp := signagePoint(5, 1<<40)
	require.NoError(t, conn.Send(context.Background(), wire.MsgNewSignagePointHarvester, sp))

	var proofs int
	for {
		select {
		case frame := <-conn.Inbound():
			switch frame.Type {
			case wire.MsgNewProofOfSpace:
				var proof wire.NewProofOfSpace
				require.NoError(t, codec.Decode(frame.Data, &proof))
				require.Equal(t, sp.SPHash, proof.SPHash)
				proofs++
				continue
			case wire.MsgFarmingInfo:
				var info wire.FarmingInfo
				require.NoError(t, codec.Decode(frame.Data, &info))
				require.Equal(t, sp.Index, info.Index)
				require.EqualValues(t, 3, info.TotalPlots)
				require.EqualValues(t, proofs, info.Proofs)
				require.NotZero(t, proofs)
				return
			default:
				require.FailNow(t, "unexpected message", frame.Type.String())
			}
		case <-time.After(5 * time.Second):
			require.FailNow(t, "timed out waiting for farming info")
		}
	}
}

func TestServerSignatures(t *testing.T) {
	f := newFixture(t, 1, 0)
	conn := connect(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := &wire.RequestSignatures{
		PlotID:   f.plots[0].ID(),
		Messages: []wire.SignMessage{{Data: []byte("payload")}},
	}
	var resp wire.RespondSignatures
	require.NoError(t, conn.Request(ctx, wire.MsgRequestSignatures, req, wire.MsgRespondSignatures, &resp))
	require.Len(t, resp.Signatures, 1)
	require.Equal(t, f.plots[0].Info().LocalPublicKey, resp.LocalPK)

	req.PlotID = types.Bytes32{0xff}
	err := conn.Request(ctx, wire.MsgRequestSignatures, req, wire.MsgRespondSignatures, &resp)
	var perr *wire.PeerError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, wire.CodeNotFound, perr.Code)
}

func TestServerDropsProtocolViolation(t *testing.T) {
	f := newFixture(t, 1, 0)
	conn := connect(t, f)
	receive(t, conn, wire.MsgPlotInventory, &wire.PlotInventory{})

	require.NoError(t, conn.Send(context.Background(), wire.MsgNewPeak, &wire.NewPeak{}))
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "harvester kept the connection")
	}
}

func TestServerServe(t *testing.T) {
	f := newFixture(t, 1, 0)
	srv := NewServer(logtest.New(t), f.harvester, consensus.Simnet().Name, "test", wire.DefaultConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln, nil) }()

	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	conn, err := wire.Dial(dctx, logtest.New(t), "ws://"+ln.Addr().String(), nil,
		farmerHandshake(), wire.DefaultConfig())
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-errc)
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "connection survived shutdown")
	}
}
