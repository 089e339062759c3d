package harvester

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/wire"
)

// Server serves the harvester protocol to farmers over websocket.
type Server struct {
	logger   *zap.Logger
	h        *Harvester
	upgrader *wire.Upgrader
	timeout  time.Duration

	mu    sync.Mutex
	conns map[*wire.Conn]struct{}
}

// NewServer creates a server for h. Farmers receive the plot inventory on connect and
// whenever the plot set changes.
func NewServer(logger *zap.Logger, h *Harvester, network string, version string, cfg wire.Config) *Server {
	local := wire.Handshake{
		Network:         network,
		ProtocolVersion: wire.ProtocolVersion,
		SoftwareVersion: version,
		NodeType:        wire.NodeHarvester,
		PeerID:          h.ID(),
	}
	s := &Server{
		logger:   logger,
		h:        h,
		upgrader: wire.NewUpgrader(logger, local, cfg),
		timeout:  cfg.WriteTimeout,
		conns:    make(map[*wire.Conn]struct{}),
	}
	h.Plots().Subscribe(func(*plot.Snapshot) { s.broadcastInventory() })
	return s
}

// Serve accepts connections on ln until ctx is canceled. TLS is used when tlsConfig is
// not nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener, tlsConfig *tls.Config) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	var eg errgroup.Group
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeAll()
		return err
	})
	s.logger.Info("serving harvester protocol",
		zap.Stringer("address", ln.Addr()),
		zap.Bool("tls", tlsConfig != nil),
	)
	var err error
	if tlsConfig != nil {
		err = srv.ServeTLS(ln, "", "")
	} else {
		err = srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if shutdownErr := eg.Wait(); err == nil {
		err = shutdownErr
	}
	return err
}

// ServeHTTP upgrades the request and serves the connection until it is closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("failed to accept farmer", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	s.serve(r.Context(), conn)
}

func (s *Server) track(conn *wire.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn *wire.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) connections() []*wire.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*wire.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (s *Server) closeAll() {
	for _, conn := range s.connections() {
		conn.Close()
	}
}

func (s *Server) serve(ctx context.Context, conn *wire.Conn) {
	logger := s.logger.With(zap.Stringer("farmer", conn.Remote().PeerID))
	logger.Info("farmer connected")
	s.track(conn)
	defer s.untrack(conn)

	var eg errgroup.Group
	defer eg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.sendInventory(ctx, conn); err != nil {
		logger.Warn("failed to send inventory", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case frame, ok := <-conn.Inbound():
			if !ok {
				logger.Info("farmer disconnected", zap.Error(conn.Err()))
				return
			}
			if err := s.handle(ctx, logger, conn, frame, &eg); err != nil {
				logger.Warn("closing farmer connection", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

func (s *Server) handle(
	ctx context.Context,
	logger *zap.Logger,
	conn *wire.Conn,
	frame *wire.Frame,
	eg *errgroup.Group,
) error {
	switch frame.Type {
	case wire.MsgNewSignagePointHarvester:
		var sp wire.NewSignagePointHarvester
		if err := codec.Decode(frame.Data, &sp); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		eg.Go(func() error {
			s.evaluate(ctx, logger, conn, &sp)
			return nil
		})
	case wire.MsgRequestSignatures:
		var req wire.RequestSignatures
		if err := codec.Decode(frame.Data, &req); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		resp, err := s.h.SignatureShares(&req)
		if errors.Is(err, ErrPlotNotFound) {
			return conn.ReplyError(ctx, frame, wire.CodeNotFound, err.Error())
		}
		if err != nil {
			return conn.ReplyError(ctx, frame, wire.CodeInternal, err.Error())
		}
		return conn.Reply(ctx, frame, wire.MsgRespondSignatures, resp)
	case wire.MsgRequestPlotInventory:
		return conn.Reply(ctx, frame, wire.MsgPlotInventory, s.h.Inventory())
	default:
		if frame.ID != 0 {
			return conn.ReplyError(ctx, frame, wire.CodeInvalidRequest, "unsupported request "+frame.Type.String())
		}
		return fmt.Errorf("%w: unexpected %s", types.ErrProtocolViolation, frame.Type)
	}
	return nil
}

func (s *Server) evaluate(ctx context.Context, logger *zap.Logger, conn *wire.Conn, sp *wire.NewSignagePointHarvester) {
	info, err := s.h.NewSignagePoint(ctx, sp, func(proof *wire.NewProofOfSpace) {
		if err := conn.Send(ctx, wire.MsgNewProofOfSpace, proof); err != nil {
			logger.Debug("failed to send proof", zap.Stringer("plot_id", proof.PlotID), zap.Error(err))
		}
	})
	if err != nil {
		logger.Debug("signage point evaluation interrupted", zap.Uint8("index", sp.Index), zap.Error(err))
		return
	}
	if err := conn.Send(ctx, wire.MsgFarmingInfo, info); err != nil {
		logger.Debug("failed to send farming info", zap.Error(err))
	}
}

func (s *Server) sendInventory(ctx context.Context, conn *wire.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return conn.Send(ctx, wire.MsgPlotInventory, s.h.Inventory())
}

func (s *Server) broadcastInventory() {
	for _, conn := range s.connections() {
		go func() {
			if err := s.sendInventory(context.Background(), conn); err != nil {
				s.logger.Debug("failed to push inventory", zap.Error(err))
			}
		}()
	}
}
