package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/log/logtest"
)

func handshake(typ NodeType) Handshake {
	return Handshake{
		Network:         "simnet",
		ProtocolVersion: ProtocolVersion,
		SoftwareVersion: "test",
		NodeType:        typ,
		PeerID:          uuid.New(),
	}
}

type server struct {
	url   string
	conns chan *Conn
	errs  chan error
}

func startServer(tb testing.TB, local Handshake, cfg Config) *server {
	tb.Helper()
	s := &server{conns: make(chan *Conn, 1), errs: make(chan error, 1)}
	up := NewUpgrader(logtest.New(tb), local, cfg)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r)
		if err != nil {
			s.errs <- err
			return
		}
		s.conns <- conn
	}))
	tb.Cleanup(srv.Close)
	s.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return s
}

func dial(tb testing.TB, s *server, local Handshake, cfg Config) (*Conn, *Conn) {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, logtest.New(tb), s.url, nil, local, cfg)
	require.NoError(tb, err)
	tb.Cleanup(func() { client.Close() })
	select {
	case conn := <-s.conns:
		tb.Cleanup(func() { conn.Close() })
		return client, conn
	case err := <-s.errs:
		require.NoError(tb, err)
	case <-time.After(5 * time.Second):
		require.FailNow(tb, "server did not accept")
	}
	return nil, nil
}

func TestHandshake(t *testing.T) {
	cfg := DefaultConfig()
	farmer := handshake(NodeFarmer)
	harvester := handshake(NodeHarvester)
	s := startServer(t, harvester, cfg)

	client, conn := dial(t, s, farmer, cfg)
	require.Equal(t, harvester, client.Remote())
	require.Equal(t, farmer, conn.Remote())
}

func TestHandshakeIncompatible(t *testing.T) {
	cfg := DefaultConfig()
	for _, tc := range []struct {
		desc   string
		modify func(*Handshake)
	}{
		{"network", func(h *Handshake) { h.Network = "mainnet" }},
		{"version", func(h *Handshake) { h.ProtocolVersion++ }},
		{"same node type", func(h *Handshake) { h.NodeType = NodeHarvester }},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			s := startServer(t, handshake(NodeHarvester), cfg)
			local := handshake(NodeFarmer)
			tc.modify(&local)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := Dial(ctx, logtest.New(t), s.url, nil, local, cfg)
			require.ErrorIs(t, err, ErrIncompatible)
			require.ErrorIs(t, err, types.ErrProtocolViolation)
			require.ErrorIs(t, <-s.errs, ErrIncompatible)
		})
	}
}

func TestRequestReply(t *testing.T) {
	cfg := DefaultConfig()
	s := startServer(t, handshake(NodeHarvester), cfg)
	client, conn := dial(t, s, handshake(NodeFarmer), cfg)

	go func() {
		for frame := range conn.Inbound() {
			switch frame.Type {
			case MsgRequestSignatures:
				var req RequestSignatures
				if err := codec.Decode(frame.Data, &req); err != nil {
					conn.ReplyError(context.Background(), frame, CodeInvalidRequest, err.Error())
					continue
				}
				if req.PlotID == (types.Bytes32{}) {
					conn.ReplyError(context.Background(), frame, CodeNotFound, "unknown plot")
					continue
				}
				resp := RespondSignatures{
					PlotID:     req.PlotID,
					Signatures: make([]types.Bytes96, len(req.Messages)),
				}
				conn.Reply(context.Background(), frame, MsgRespondSignatures, &resp)
			case MsgRequestPlotInventory:
				conn.Reply(context.Background(), frame, MsgFarmingInfo, &FarmingInfo{})
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp RespondSignatures
	req := RequestSignatures{
		PlotID:   types.Bytes32{1},
		Messages: []SignMessage{{Data: []byte("a")}, {Data: []byte("b")}},
	}
	require.NoError(t, client.Request(ctx, MsgRequestSignatures, &req, MsgRespondSignatures, &resp))
	require.Equal(t, req.PlotID, resp.PlotID)
	require.Len(t, resp.Signatures, 2)

	err := client.Request(ctx, MsgRequestSignatures, &RequestSignatures{}, MsgRespondSignatures, &resp)
	var perr *PeerError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CodeNotFound, perr.Code)

	err = client.Request(ctx, MsgRequestPlotInventory, &RequestPlotInventory{}, MsgPlotInventory, &PlotInventory{})
	require.ErrorIs(t, err, ErrUnexpectedMessage)
}

func TestSendAndClose(t *testing.T) {
	cfg := DefaultConfig()
	s := startServer(t, handshake(NodeFarmer), cfg)
	client, conn := dial(t, s, handshake(NodeFullNode), cfg)

	sp := NewSignagePoint{ChallengeHash: types.Bytes32{1}, Index: 3, Difficulty: 5}
	require.NoError(t, client.Send(context.Background(), MsgNewSignagePoint, &sp))

	select {
	case frame := <-conn.Inbound():
		require.Equal(t, MsgNewSignagePoint, frame.Type)
		var got NewSignagePoint
		require.NoError(t, codec.Decode(frame.Data, &got))
		require.Equal(t, sp, got)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "message not delivered")
	}

	require.NoError(t, client.Close())
	require.ErrorIs(t, client.Send(context.Background(), MsgNewPeak, &NewPeak{}), ErrClosed)

	select {
	case <-conn.Done():
		require.ErrorIs(t, conn.Err(), types.ErrTransientNetwork)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "peer did not observe close")
	}
	_, ok := <-conn.Inbound()
	require.False(t, ok)
}

func TestRequestCanceled(t *testing.T) {
	cfg := DefaultConfig()
	s := startServer(t, handshake(NodeHarvester), cfg)
	client, _ := dial(t, s, handshake(NodeFarmer), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.Request(ctx, MsgRequestPlotInventory, &RequestPlotInventory{}, MsgPlotInventory, &PlotInventory{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMessageTypeString(t *testing.T) {
	require.Equal(t, "new_proof_of_space", MsgNewProofOfSpace.String())
	require.Equal(t, "message(200)", MessageType(200).String())
	require.Equal(t, "harvester", NodeHarvester.String())
}
