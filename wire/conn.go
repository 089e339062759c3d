package wire

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
)

const maxMessageSize = 64 << 20

var (
	// ErrIncompatible is returned when the handshake fails.
	ErrIncompatible = fmt.Errorf("%w: incompatible peer", types.ErrProtocolViolation)
	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = fmt.Errorf("%w: connection closed", types.ErrTransientNetwork)
	// ErrUnexpectedMessage is returned when a reply has the wrong type.
	ErrUnexpectedMessage = fmt.Errorf("%w: unexpected message", types.ErrProtocolViolation)
)

// PeerError is returned by Request when the peer replied with an Error message.
type PeerError struct {
	Code    uint16
	Message string
}

func (*PeerError) Is(target error) bool {
	_, ok := target.(*PeerError)
	return ok
}

func (err *PeerError) Error() string {
	return fmt.Sprintf("peer error %d: %s", err.Code, err.Message)
}

// Config of a connection.
type Config struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`
	WriteTimeout     time.Duration `mapstructure:"write-timeout"`
	PingInterval     time.Duration `mapstructure:"ping-interval"`
	// PongTimeout is how long after a missed ping the link is declared dead.
	PongTimeout  time.Duration `mapstructure:"pong-timeout"`
	InboundQueue int           `mapstructure:"inbound-queue"`
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     15 * time.Second,
		PongTimeout:      10 * time.Second,
		InboundQueue:     256,
	}
}

// Conn is a websocket connection that carries frames after a successful handshake.
// Replies are matched to requests by frame id; every other frame is delivered on
// Inbound, in order.
type Conn struct {
	logger *zap.Logger
	ws     *websocket.Conn
	cfg    Config
	local  Handshake
	remote Handshake

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint16
	pending map[uint16]chan *Frame

	inbound   chan *Frame
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to a websocket url and performs the handshake as the initiator.
func Dial(
	ctx context.Context,
	logger *zap.Logger,
	url string,
	tlsConfig *tls.Config,
	local Handshake,
	cfg Config,
) (*Conn, error) {
	p, err := Connect(ctx, logger, url, tlsConfig, local, cfg)
	if err != nil {
		return nil, err
	}
	return p.Handshake(ctx)
}

// Pending is a websocket transport that has not completed the handshake yet.
type Pending struct {
	conn *Conn
}

// Connect opens the websocket transport without exchanging handshakes.
func Connect(
	ctx context.Context,
	logger *zap.Logger,
	url string,
	tlsConfig *tls.Config,
	local Handshake,
	cfg Config,
) (*Pending, error) {
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", types.ErrTransientNetwork, url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &Pending{conn: newConn(logger, ws, local, cfg)}, nil
}

// Handshake exchanges handshakes as the initiator. The transport is closed on failure.
func (p *Pending) Handshake(ctx context.Context) (*Conn, error) {
	if err := p.conn.handshake(ctx, true); err != nil {
		p.conn.ws.Close()
		return nil, err
	}
	p.conn.start()
	return p.conn, nil
}

// Close drops the transport.
func (p *Pending) Close() error {
	return p.conn.ws.Close()
}

// Upgrader accepts websocket connections on an http server.
type Upgrader struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	local    Handshake
	cfg      Config
}

// NewUpgrader creates an upgrader that answers handshakes with local.
func NewUpgrader(logger *zap.Logger, local Handshake, cfg Config) *Upgrader {
	return &Upgrader{
		logger: logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		local: local,
		cfg:   cfg,
	}
}

// Upgrade upgrades an http request and performs the handshake as the responder.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	c := newConn(u.logger, ws, u.local, u.cfg)
	if err := c.handshake(r.Context(), false); err != nil {
		ws.Close()
		return nil, err
	}
	c.start()
	return c, nil
}

func newConn(logger *zap.Logger, ws *websocket.Conn, local Handshake, cfg Config) *Conn {
	ws.SetReadLimit(maxMessageSize)
	return &Conn{
		logger:  logger,
		ws:      ws,
		cfg:     cfg,
		local:   local,
		pending: make(map[uint16]chan *Frame),
		inbound: make(chan *Frame, max(cfg.InboundQueue, 1)),
		done:    make(chan struct{}),
	}
}

func (c *Conn) handshake(ctx context.Context, initiator bool) error {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	if initiator {
		if err := c.writeFrame(ctx, &Frame{Type: MsgHandshake, Data: codec.MustEncode(&c.local)}); err != nil {
			return err
		}
	}
	frame, err := c.readFrame()
	if err != nil {
		return fmt.Errorf("%w: read handshake: %w", types.ErrTransientNetwork, err)
	}
	switch frame.Type {
	case MsgHandshake:
	case MsgError:
		var perr Error
		if err := codec.Decode(frame.Data, &perr); err != nil {
			return fmt.Errorf("%w: %w", ErrIncompatible, err)
		}
		return fmt.Errorf("%w: %s", ErrIncompatible, perr.Message)
	default:
		return fmt.Errorf("%w: expected handshake, got %s", ErrIncompatible, frame.Type)
	}
	if err := codec.Decode(frame.Data, &c.remote); err != nil {
		return fmt.Errorf("%w: decode handshake: %w", ErrIncompatible, err)
	}
	if err := c.checkRemote(); err != nil {
		reject := &Error{Code: CodeIncompatible, Message: err.Error()}
		_ = c.writeFrame(ctx, &Frame{Type: MsgError, Data: codec.MustEncode(reject)})
		return err
	}
	if !initiator {
		if err := c.writeFrame(ctx, &Frame{Type: MsgHandshake, Data: codec.MustEncode(&c.local)}); err != nil {
			return err
		}
	}
	c.logger = c.logger.With(
		zap.Stringer("peer_type", c.remote.NodeType),
		zap.Stringer("peer_id", c.remote.PeerID),
		zap.String("remote", c.ws.RemoteAddr().String()),
	)
	return nil
}

func (c *Conn) checkRemote() error {
	switch {
	case c.remote.Network != c.local.Network:
		return fmt.Errorf("%w: network %q, expected %q", ErrIncompatible, c.remote.Network, c.local.Network)
	case c.remote.ProtocolVersion != c.local.ProtocolVersion:
		return fmt.Errorf("%w: protocol version %d, expected %d",
			ErrIncompatible, c.remote.ProtocolVersion, c.local.ProtocolVersion)
	case c.remote.NodeType == c.local.NodeType:
		return fmt.Errorf("%w: peer has the same node type %s", ErrIncompatible, c.remote.NodeType)
	}
	return nil
}

func (c *Conn) start() {
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PingInterval + c.cfg.PongTimeout))
	})
	go c.readLoop()
	go c.pingLoop()
}

// Remote is the handshake sent by the peer.
func (c *Conn) Remote() Handshake {
	return c.remote
}

// Inbound delivers requests and unsolicited messages. It is closed when the
// connection is closed.
func (c *Conn) Inbound() <-chan *Frame {
	return c.inbound
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection was closed.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.closeWithError(ErrClosed)
	return nil
}

func (c *Conn) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	defer close(c.inbound)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PingInterval + c.cfg.PongTimeout))
	for {
		frame, err := c.readFrame()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug("connection lost", zap.Error(err))
			}
			c.closeWithError(fmt.Errorf("%w: %w", types.ErrTransientNetwork, err))
			return
		}
		receivedMessages.WithLabelValues(frame.Type.String()).Inc()
		if frame.Reply {
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if !ok {
				c.logger.Debug("dropping reply without request",
					zap.Stringer("type", frame.Type),
					zap.Uint16("id", frame.ID),
				)
				continue
			}
			ch <- frame
			continue
		}
		select {
		case c.inbound <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			if err != nil {
				c.closeWithError(fmt.Errorf("%w: ping: %w", types.ErrTransientNetwork, err))
				return
			}
		}
	}
}

func (c *Conn) readFrame() (*Frame, error) {
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: websocket message kind %d", types.ErrProtocolViolation, kind)
	}
	var frame Frame
	if err := codec.Decode(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrProtocolViolation, err)
	}
	return &frame, nil
}

func (c *Conn) writeFrame(ctx context.Context, frame *Frame) error {
	buf, err := codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrTransientNetwork, frame.Type, err)
	}
	sentMessages.WithLabelValues(frame.Type.String()).Inc()
	return nil
}

func (c *Conn) send(ctx context.Context, frame *Frame) error {
	select {
	case <-c.done:
		return c.err
	default:
	}
	return c.writeFrame(ctx, frame)
}

// Send writes an unsolicited message.
func (c *Conn) Send(ctx context.Context, typ MessageType, msg codec.Encodable) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	return c.send(ctx, &Frame{Type: typ, Data: data})
}

// Request sends msg and decodes the reply of type respType into resp. It returns a
// *PeerError if the peer replied with an error.
func (c *Conn) Request(
	ctx context.Context,
	typ MessageType,
	msg codec.Encodable,
	respType MessageType,
	resp codec.Decodable,
) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	ch := make(chan *Frame, 1)
	c.mu.Lock()
	c.nextID++
	if c.nextID == 0 {
		c.nextID = 1
	}
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	start := time.Now()
	if err := c.send(ctx, &Frame{Type: typ, ID: id, Data: data}); err != nil {
		return err
	}
	var reply *Frame
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.err
	case reply = <-ch:
	}
	requestLatency.WithLabelValues(typ.String()).Observe(time.Since(start).Seconds())

	switch reply.Type {
	case respType:
		if err := codec.Decode(reply.Data, resp); err != nil {
			return fmt.Errorf("%w: decode %s: %w", types.ErrProtocolViolation, respType, err)
		}
		return nil
	case MsgError:
		var perr Error
		if err := codec.Decode(reply.Data, &perr); err != nil {
			return fmt.Errorf("%w: decode error reply: %w", types.ErrProtocolViolation, err)
		}
		return &PeerError{Code: perr.Code, Message: perr.Message}
	}
	return fmt.Errorf("%w: %s in reply to %s", ErrUnexpectedMessage, reply.Type, typ)
}

// Reply answers request req with msg.
func (c *Conn) Reply(ctx context.Context, req *Frame, typ MessageType, msg codec.Encodable) error {
	if req.ID == 0 {
		return errors.New("reply to unsolicited message")
	}
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	return c.send(ctx, &Frame{Type: typ, ID: req.ID, Reply: true, Data: data})
}

// ReplyError answers request req with an Error message.
func (c *Conn) ReplyError(ctx context.Context, req *Frame, code uint16, msg string) error {
	return c.Reply(ctx, req, MsgError, &Error{Code: code, Message: msg})
}
