package farmer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/harvester"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

var (
	// ErrHarvesterUnavailable is returned for requests to a harvester that is not connected.
	ErrHarvesterUnavailable = fmt.Errorf("%w: harvester unavailable", types.ErrTransientNetwork)
	// ErrChallengeReplaced is returned to a waiter whose challenge was sent again.
	ErrChallengeReplaced = fmt.Errorf("%w: challenge replaced", types.ErrStaleWork)
	// ErrChallengeTimeout is returned when a harvester does not report on a challenge.
	ErrChallengeTimeout = fmt.Errorf("%w: harvester did not report in time", types.ErrTransientNetwork)
)

const defaultChallengeTimeout = 30 * time.Second

// LocalSource challenges a harvester running in the farmer process.
type LocalSource struct {
	h *harvester.Harvester
}

func NewLocalSource(h *harvester.Harvester) *LocalSource {
	return &LocalSource{h: h}
}

func (s *LocalSource) ID() uuid.UUID { return s.h.ID() }

func (s *LocalSource) Name() string { return "local" }

// State of an in process harvester is always ready.
func (s *LocalSource) State() supervisor.State { return supervisor.Ready }

func (s *LocalSource) Plots() int { return s.h.Plots().Snapshot().Len() }

// Run keeps the plot set of the harvester current until ctx is canceled.
func (s *LocalSource) Run(ctx context.Context) error {
	return s.h.Plots().Run(ctx)
}

func (s *LocalSource) Challenge(
	ctx context.Context,
	sp *wire.NewSignagePointHarvester,
	emit func(*wire.NewProofOfSpace),
) (*wire.FarmingInfo, error) {
	return s.h.NewSignagePoint(ctx, sp, emit)
}

func (s *LocalSource) SignatureShares(
	_ context.Context,
	req *wire.RequestSignatures,
) (*wire.RespondSignatures, error) {
	return s.h.SignatureShares(req)
}

type challengeKey struct {
	spHash types.Bytes32
	index  uint8
}

type challenge struct {
	emit     func(*wire.NewProofOfSpace)
	done     chan *wire.FarmingInfo
	replaced chan struct{}
}

// RemoteSource challenges a harvester over the network. The connection is kept alive by
// a supervisor; challenges fail fast while it is down.
type RemoteSource struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	address string
	tls     *tls.Config
	local   wire.Handshake
	cfg     wire.Config
	timeout time.Duration
	sup     *supervisor.Supervisor

	mu         sync.Mutex
	pending    *wire.Pending
	conn       *wire.Conn
	id         uuid.UUID
	plots      int
	fp         types.Bytes32
	challenges map[challengeKey]*challenge
}

// NewRemoteSource creates a source for the harvester at address. challengeTimeout bounds
// the wait for the harvester's report on a challenge.
func NewRemoteSource(
	logger *zap.Logger,
	clock clockwork.Clock,
	address string,
	tlsConfig *tls.Config,
	local wire.Handshake,
	cfg wire.Config,
	challengeTimeout time.Duration,
	supCfg supervisor.Config,
	opts ...supervisor.Opt,
) *RemoteSource {
	logger = logger.With(zap.String("harvester", address))
	if challengeTimeout <= 0 {
		challengeTimeout = defaultChallengeTimeout
	}
	return &RemoteSource{
		logger:  logger,
		clock:   clock,
		address: address,
		tls:     tlsConfig,
		local:   local,
		cfg:     cfg,
		timeout: challengeTimeout,
		sup: supervisor.New("harvester "+address, supCfg,
			append([]supervisor.Opt{supervisor.WithLogger(logger), supervisor.WithClock(clock)}, opts...)...),
		challenges: make(map[challengeKey]*challenge),
	}
}

// ID is the peer id of the last connected harvester.
func (s *RemoteSource) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *RemoteSource) Name() string { return s.address }

func (s *RemoteSource) State() supervisor.State { return s.sup.State() }

func (s *RemoteSource) Plots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plots
}

// Run keeps the harvester connected until ctx is canceled.
func (s *RemoteSource) Run(ctx context.Context) error {
	err := s.sup.Run(ctx, (*remoteLink)(s))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *RemoteSource) current() *wire.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Challenge sends sp and waits for the harvester's farming info, at most for the
// challenge timeout. A second challenge for the same signage point releases the first
// waiter.
func (s *RemoteSource) Challenge(
	ctx context.Context,
	sp *wire.NewSignagePointHarvester,
	emit func(*wire.NewProofOfSpace),
) (*wire.FarmingInfo, error) {
	conn := s.current()
	if conn == nil {
		return nil, ErrHarvesterUnavailable
	}
	key := challengeKey{spHash: sp.SPHash, index: sp.Index}
	ch := &challenge{
		emit:     emit,
		done:     make(chan *wire.FarmingInfo, 1),
		replaced: make(chan struct{}),
	}
	s.mu.Lock()
	if prev := s.challenges[key]; prev != nil {
		close(prev.replaced)
	}
	s.challenges[key] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.challenges[key] == ch {
			delete(s.challenges, key)
		}
		s.mu.Unlock()
	}()

	if err := conn.Send(ctx, wire.MsgNewSignagePointHarvester, sp); err != nil {
		s.sup.ReportFailure(err)
		return nil, err
	}
	timer := s.clock.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		s.sup.ReportFailure(ErrChallengeTimeout)
		return nil, ErrChallengeTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-conn.Done():
		return nil, conn.Err()
	case <-ch.replaced:
		return nil, ErrChallengeReplaced
	case info := <-ch.done:
		s.sup.ReportSuccess()
		return info, nil
	}
}

func (s *RemoteSource) SignatureShares(
	ctx context.Context,
	req *wire.RequestSignatures,
) (*wire.RespondSignatures, error) {
	conn := s.current()
	if conn == nil {
		return nil, ErrHarvesterUnavailable
	}
	var resp wire.RespondSignatures
	err := conn.Request(ctx, wire.MsgRequestSignatures, req, wire.MsgRespondSignatures, &resp)
	var perr *wire.PeerError
	switch {
	case errors.As(err, &perr):
		// the harvester answered, the link is fine
		s.sup.ReportSuccess()
		return nil, fmt.Errorf("signature shares for %s: %w", req.PlotID.ShortString(), err)
	case err != nil:
		s.sup.ReportFailure(err)
		return nil, err
	}
	s.sup.ReportSuccess()
	return &resp, nil
}

func (s *RemoteSource) setInventory(inv *wire.PlotInventory) {
	s.mu.Lock()
	changed := s.fp != inv.Fingerprint
	s.plots = len(inv.Plots)
	s.fp = inv.Fingerprint
	s.mu.Unlock()
	if changed {
		s.logger.Info("harvester inventory",
			zap.Int("plots", len(inv.Plots)),
			zap.Uint32("degraded", inv.Degraded),
			zap.Stringer("fingerprint", inv.Fingerprint),
		)
	}
}

func (s *RemoteSource) handle(ctx context.Context, conn *wire.Conn, frame *wire.Frame) error {
	switch frame.Type {
	case wire.MsgNewProofOfSpace:
		var msg wire.NewProofOfSpace
		if err := codec.Decode(frame.Data, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		s.mu.Lock()
		ch := s.challenges[challengeKey{spHash: msg.SPHash, index: msg.Index}]
		s.mu.Unlock()
		if ch == nil {
			s.logger.Debug("proof for a closed challenge",
				zap.Uint8("index", msg.Index),
				zap.Stringer("plot_id", msg.PlotID),
			)
			return nil
		}
		ch.emit(&msg)
	case wire.MsgFarmingInfo:
		var msg wire.FarmingInfo
		if err := codec.Decode(frame.Data, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		key := challengeKey{spHash: msg.SPHash, index: msg.Index}
		s.mu.Lock()
		ch := s.challenges[key]
		delete(s.challenges, key)
		s.mu.Unlock()
		if ch != nil {
			ch.done <- &msg
		}
	case wire.MsgPlotInventory:
		var msg wire.PlotInventory
		if err := codec.Decode(frame.Data, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		s.setInventory(&msg)
	default:
		if frame.ID != 0 {
			return conn.ReplyError(ctx, frame, wire.CodeInvalidRequest, frame.Type.String())
		}
		return fmt.Errorf("%w: unexpected %s from harvester", types.ErrProtocolViolation, frame.Type)
	}
	return nil
}

// remoteLink adapts a remote source to the supervisor.
type remoteLink RemoteSource

func (l *remoteLink) Connect(ctx context.Context) error {
	p, err := wire.Connect(ctx, l.logger, l.address, l.tls, l.local, l.cfg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.pending = p
	l.mu.Unlock()
	return nil
}

func (l *remoteLink) Handshake(ctx context.Context) error {
	l.mu.Lock()
	p := l.pending
	l.pending = nil
	l.mu.Unlock()
	conn, err := p.Handshake(ctx)
	if err != nil {
		return err
	}
	if remote := conn.Remote(); remote.NodeType != wire.NodeHarvester {
		conn.Close()
		return fmt.Errorf("%w: peer is a %s", wire.ErrIncompatible, remote.NodeType)
	}
	l.mu.Lock()
	l.conn = conn
	l.id = conn.Remote().PeerID
	l.mu.Unlock()
	return nil
}

func (l *remoteLink) Serve(ctx context.Context) error {
	s := (*RemoteSource)(l)
	conn := s.current()
	s.logger.Info("harvester connected",
		zap.Stringer("peer_id", conn.Remote().PeerID),
		zap.String("version", conn.Remote().SoftwareVersion),
	)
	var inv wire.PlotInventory
	err := conn.Request(ctx, wire.MsgRequestPlotInventory, &wire.RequestPlotInventory{}, wire.MsgPlotInventory, &inv)
	if err != nil {
		return fmt.Errorf("request plot inventory: %w", err)
	}
	s.setInventory(&inv)
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-conn.Inbound():
			if !ok {
				return conn.Err()
			}
			if err := s.handle(ctx, conn, frame); err != nil {
				s.logger.Warn("dropping harvester connection", zap.Error(err))
				return err
			}
		}
	}
}

func (l *remoteLink) Close() error {
	l.mu.Lock()
	p, conn := l.pending, l.conn
	l.pending, l.conn = nil, nil
	l.mu.Unlock()
	if p != nil {
		p.Close()
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}
