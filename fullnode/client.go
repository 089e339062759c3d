// Package fullnode keeps the farmer connected to its full node: it turns announced
// signage points and peaks into events and carries proof declarations back.
package fullnode

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

// ErrNotConnected is returned by requests while the link is down.
var ErrNotConnected = fmt.Errorf("%w: full node not connected", types.ErrTransientNetwork)

// Handler consumes full node events. Calls are made from the connection goroutine in
// the order the full node sent them.
type Handler interface {
	// NewSignagePoint is called for every announced signage point. Reset is set when
	// the previous signage points of the sub-slot were not seen contiguously: after a
	// reconnect, on a new sub-slot and on index gaps.
	NewSignagePoint(ctx context.Context, sp *types.SignagePoint, reset bool)
	NewPeak(ctx context.Context, peak *types.Peak)
	// SignedValues answers a request for block signatures of a declared proof.
	SignedValues(ctx context.Context, req *wire.RequestSignedValues) (*wire.SignedValues, error)
}

// Config of the full node link.
type Config struct {
	// Address is the websocket url of the full node.
	Address string `mapstructure:"address"`
	// RPC is the base url of the full node rpc server. Empty disables it.
	RPC        string            `mapstructure:"rpc"`
	Wire       wire.Config       `mapstructure:"wire"`
	Supervisor supervisor.Config `mapstructure:"supervisor"`
}

func (cfg *Config) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("address", cfg.Address)
	encoder.AddString("rpc", cfg.RPC)
	return encoder.AddObject("supervisor", &cfg.Supervisor)
}

func DefaultConfig() Config {
	return Config{
		Address:    "wss://127.0.0.1:8444/ws",
		RPC:        "https://127.0.0.1:8555",
		Wire:       wire.DefaultConfig(),
		Supervisor: supervisor.DefaultConfig(),
	}
}

type Opt func(*Client)

func WithLogger(logger *zap.Logger) Opt {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithTLS(cfg *tls.Config) Opt {
	return func(c *Client) {
		c.tls = cfg
	}
}

// WithRPC queries the blockchain state on every new session.
func WithRPC(rpc *RPCClient) Opt {
	return func(c *Client) {
		c.rpc = rpc
	}
}

// WithOnStateChange observes link state transitions.
func WithOnStateChange(fn func(old, new supervisor.State)) Opt {
	return func(c *Client) {
		c.supOpts = append(c.supOpts, supervisor.WithOnChange(fn))
	}
}

// Client is the farmer side of the full node connection.
type Client struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	cfg     Config
	local   wire.Handshake
	handler Handler
	tls     *tls.Config
	rpc     *RPCClient
	supOpts []supervisor.Opt
	sup     *supervisor.Supervisor

	mu      sync.Mutex
	pending *wire.Pending
	conn    *wire.Conn

	// owned by the session goroutine
	tracker spTracker
}

// NewClient creates a client that identifies itself with local.
func NewClient(cfg Config, local wire.Handshake, handler Handler, opts ...Opt) *Client {
	c := &Client{
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		cfg:     cfg,
		local:   local,
		handler: handler,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sup = supervisor.New("full_node", cfg.Supervisor,
		append([]supervisor.Opt{
			supervisor.WithLogger(c.logger),
			supervisor.WithClock(c.clock),
		}, c.supOpts...)...,
	)
	return c
}

// State of the link.
func (c *Client) State() supervisor.State {
	return c.sup.State()
}

// Run keeps the full node connected until ctx is canceled. While disconnected no
// signage points are delivered.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("starting full node client", zap.Inline(&c.cfg))
	err := c.sup.Run(ctx, (*link)(c))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) current() *wire.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// DeclareProofOfSpace submits a full proof.
func (c *Client) DeclareProofOfSpace(ctx context.Context, decl *wire.DeclareProofOfSpace) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Send(ctx, wire.MsgDeclareProofOfSpace, decl); err != nil {
		c.sup.ReportFailure(err)
		return fmt.Errorf("declare proof of space: %w", err)
	}
	c.sup.ReportSuccess()
	declaredProofs.Inc()
	return nil
}

// link adapts the client to the supervisor.
type link Client

func (l *link) Connect(ctx context.Context) error {
	p, err := wire.Connect(ctx, l.logger, l.cfg.Address, l.tls, l.local, l.cfg.Wire)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.pending = p
	l.mu.Unlock()
	return nil
}

func (l *link) Handshake(ctx context.Context) error {
	l.mu.Lock()
	p := l.pending
	l.pending = nil
	l.mu.Unlock()
	conn, err := p.Handshake(ctx)
	if err != nil {
		return err
	}
	if remote := conn.Remote(); remote.NodeType != wire.NodeFullNode {
		conn.Close()
		return fmt.Errorf("%w: peer is a %s", wire.ErrIncompatible, remote.NodeType)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	return nil
}

func (l *link) Serve(ctx context.Context) error {
	c := (*Client)(l)
	conn := c.current()
	c.logger.Info("connected to full node",
		zap.Stringer("peer_id", conn.Remote().PeerID),
		zap.String("version", conn.Remote().SoftwareVersion),
	)
	if c.rpc != nil {
		go c.logBlockchainState(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-conn.Inbound():
			if !ok {
				return conn.Err()
			}
			if err := c.handle(ctx, conn, frame); err != nil {
				c.logger.Warn("dropping full node connection", zap.Error(err))
				return err
			}
		}
	}
}

func (l *link) Close() error {
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

func (c *Client) logBlockchainState(ctx context.Context) {
	state, err := c.rpc.BlockchainState(ctx)
	if err != nil {
		c.logger.Warn("failed to query blockchain state", zap.Error(err))
		return
	}
	c.logger.Info("full node blockchain state",
		zap.Bool("synced", state.Sync.Synced),
		zap.Bool("sync_mode", state.Sync.SyncMode),
		zap.Uint32("peak_height", state.Peak.Height),
		zap.Uint64("difficulty", state.Difficulty),
		zap.Uint64("sub_slot_iters", state.SubSlotIters),
	)
}

func (c *Client) handle(ctx context.Context, conn *wire.Conn, frame *wire.Frame) error {
	switch frame.Type {
	case wire.MsgNewSignagePoint:
		var msg wire.NewSignagePoint
		if err := codec.Decode(frame.Data, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		sp := &types.SignagePoint{
			Index:            msg.Index,
			ChallengeHash:    msg.ChallengeHash,
			ChallengeChainSP: msg.ChallengeChainSP,
			RewardChainSP:    msg.RewardChainSP,
			Difficulty:       msg.Difficulty,
			SubSlotIters:     msg.SubSlotIters,
			PeakHeight:       msg.PeakHeight,
			Received:         c.clock.Now(),
		}
		reset, gap := c.tracker.observe(sp)
		if gap {
			signagePointGaps.Inc()
			c.logger.Info("signage point gap", zap.Inline(sp))
		}
		c.handler.NewSignagePoint(ctx, sp, reset)
	case wire.MsgNewPeak:
		var msg wire.NewPeak
		if err := codec.Decode(frame.Data, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		c.handler.NewPeak(ctx, &types.Peak{Height: msg.Height, Weight: msg.Weight, HeaderHash: msg.HeaderHash})
	case wire.MsgRequestSignedValues:
		var msg wire.RequestSignedValues
		if err := codec.Decode(frame.Data, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, frame.Type, err)
		}
		// signing needs a harvester round trip and must not stall signage points
		go c.signValues(ctx, conn, frame, &msg)
	default:
		if frame.ID != 0 {
			return conn.ReplyError(ctx, frame, wire.CodeInvalidRequest, frame.Type.String())
		}
		return fmt.Errorf("%w: unexpected %s from full node", types.ErrProtocolViolation, frame.Type)
	}
	return nil
}

func (c *Client) signValues(ctx context.Context, conn *wire.Conn, frame *wire.Frame, req *wire.RequestSignedValues) {
	resp, err := c.handler.SignedValues(ctx, req)
	if err != nil {
		c.logger.Warn("failed to sign values",
			zap.Stringer("quality", req.QualityString),
			zap.Error(err),
		)
		code := wire.CodeInternal
		if errors.Is(err, types.ErrStaleWork) {
			code = wire.CodeNotFound
		}
		if err := conn.ReplyError(ctx, frame, code, err.Error()); err != nil {
			c.sup.ReportFailure(err)
		}
		return
	}
	if frame.ID == 0 {
		err = conn.Send(ctx, wire.MsgSignedValues, resp)
	} else {
		err = conn.Reply(ctx, frame, wire.MsgSignedValues, resp)
	}
	if err != nil {
		c.sup.ReportFailure(err)
		return
	}
	c.sup.ReportSuccess()
}

// spTracker follows signage point indices within a sub-slot. It outlives connections:
// a full node replays its latest signage points to a reconnecting farmer.
type spTracker struct {
	started   bool
	challenge types.Bytes32
	index     uint8
}

// observe returns whether the scheduler must reset before sp and whether sp skipped
// over signage points of the current sub-slot.
func (t *spTracker) observe(sp *types.SignagePoint) (reset, gap bool) {
	switch {
	case !t.started:
		reset = true
	case sp.ChallengeHash != t.challenge:
		// a new sub-slot starts at index 0 or, after a missed start, later
		reset, gap = true, sp.Index > 0
	case sp.Index <= t.index:
		// replayed or duplicate, the scheduler drops it
		return false, false
	case sp.Index > t.index+1:
		reset, gap = true, true
	}
	t.started = true
	t.challenge = sp.ChallengeHash
	t.index = sp.Index
	return reset, gap
}
