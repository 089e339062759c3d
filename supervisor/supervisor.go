// Package supervisor keeps long-lived links alive with an explicit connection state
// machine and exponential backoff between attempts.
package supervisor

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plotfarm/go-farmer/common/types"
)

// State of a supervised link.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Ready
	// Degraded is a ready link whose recent requests failed.
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	}
	return "unknown"
}

// Usable is true when the link can carry requests.
func (s State) Usable() bool {
	return s == Ready || s == Degraded
}

// Config of the reconnect policy.
type Config struct {
	InitialBackoff time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff     time.Duration `mapstructure:"max-backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	// Jitter is the fraction of the backoff that is randomized, in [0, 1].
	Jitter float64 `mapstructure:"jitter"`
	// DegradedAfter consecutive request failures move a ready link to Degraded.
	DegradedAfter int `mapstructure:"degraded-after"`
	// DisconnectAfter consecutive request failures drop the session and reconnect.
	// Zero disables it.
	DisconnectAfter int `mapstructure:"disconnect-after"`
}

func (c *Config) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddDuration("initial backoff", c.InitialBackoff)
	encoder.AddDuration("max backoff", c.MaxBackoff)
	encoder.AddFloat64("multiplier", c.Multiplier)
	encoder.AddFloat64("jitter", c.Jitter)
	encoder.AddInt("degraded after", c.DegradedAfter)
	encoder.AddInt("disconnect after", c.DisconnectAfter)
	return nil
}

func DefaultConfig() Config {
	return Config{
		InitialBackoff:  time.Second,
		MaxBackoff:      time.Minute,
		Multiplier:      2,
		Jitter:          0.2,
		DegradedAfter:   2,
		DisconnectAfter: 6,
	}
}

// Link is one reconnectable connection. The supervisor calls Connect, Handshake and Serve
// in order for every attempt and Close after each attempt, successful or not.
type Link interface {
	// Connect establishes the transport.
	Connect(ctx context.Context) error
	// Handshake negotiates the protocol on the established transport.
	Handshake(ctx context.Context) error
	// Serve blocks while the session is alive. The context is canceled when the
	// supervisor decides to drop the session.
	Serve(ctx context.Context) error
	// Close releases the transport of the current attempt.
	Close() error
}

type Opt func(*Supervisor)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(s *Supervisor) {
		s.clock = clock
	}
}

// WithOnChange registers a callback invoked on every state transition. It runs on the
// supervisor goroutine and must not block.
func WithOnChange(fn func(old, new State)) Opt {
	return func(s *Supervisor) {
		s.onChange = append(s.onChange, fn)
	}
}

// WithRandom overrides the jitter source. The function returns a value in [0, 1).
func WithRandom(fn func() float64) Opt {
	return func(s *Supervisor) {
		s.random = fn
	}
}

// Supervisor owns the connection state of a single link.
type Supervisor struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	cfg      Config
	name     string
	random   func() float64
	onChange []func(old, new State)

	mu       sync.Mutex
	state    State
	failures int // consecutive request failures of the current session
	attempts int // consecutive failed connection attempts
	drop     context.CancelFunc
}

// New creates a supervisor for the named link.
func New(name string, cfg Config, opts ...Opt) *Supervisor {
	s := &Supervisor{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		cfg:    cfg,
		name:   name,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("link", name))
	linkState.WithLabelValues(name).Set(float64(Disconnected))
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run keeps the link connected until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context, link Link) error {
	defer s.transition(Disconnected)
	for {
		err := s.attempt(ctx, link)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.transition(Disconnected)

		s.mu.Lock()
		if err != nil {
			s.attempts++
		}
		attempts := s.attempts
		s.mu.Unlock()

		delay := s.Backoff(attempts)
		s.logger.Info("link down, reconnecting",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		reconnects.WithLabelValues(s.name).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}
	}
}

// attempt runs one connection attempt. A nil error means the session was established and
// later ended without a link error.
func (s *Supervisor) attempt(ctx context.Context, link Link) error {
	defer link.Close()

	s.transition(Connecting)
	if err := link.Connect(ctx); err != nil {
		return err
	}
	s.transition(Handshaking)
	if err := link.Handshake(ctx); err != nil {
		if errors.Is(err, types.ErrProtocolViolation) {
			s.logger.Warn("handshake rejected", zap.Error(err))
		}
		return err
	}

	sctx, drop := context.WithCancel(ctx)
	defer drop()
	s.mu.Lock()
	s.attempts = 0
	s.failures = 0
	s.drop = drop
	s.mu.Unlock()
	s.transition(Ready)

	err := link.Serve(sctx)

	s.mu.Lock()
	s.drop = nil
	s.mu.Unlock()
	return err
}

// ReportSuccess records a successful request on the current session.
func (s *Supervisor) ReportSuccess() {
	s.mu.Lock()
	s.failures = 0
	recovered := s.state == Degraded
	s.mu.Unlock()
	if recovered {
		s.transition(Ready)
	}
}

// ReportFailure records a failed request on the current session. Enough consecutive
// failures degrade the link and eventually drop the session.
func (s *Supervisor) ReportFailure(err error) {
	s.mu.Lock()
	if !s.state.Usable() {
		s.mu.Unlock()
		return
	}
	s.failures++
	failures := s.failures
	var drop context.CancelFunc
	if s.cfg.DisconnectAfter > 0 && failures >= s.cfg.DisconnectAfter {
		drop = s.drop
	}
	degrade := s.state == Ready && failures >= s.cfg.DegradedAfter
	s.mu.Unlock()

	if degrade {
		s.logger.Warn("link degraded", zap.Int("failures", failures), zap.Error(err))
		s.transition(Degraded)
	}
	if drop != nil {
		s.logger.Warn("dropping unhealthy session", zap.Int("failures", failures), zap.Error(err))
		drop()
	}
}

// Backoff is the delay before the given consecutive attempt. Zero attempts (a session
// that ended cleanly) wait the initial backoff.
func (s *Supervisor) Backoff(attempts int) time.Duration {
	delay := float64(s.cfg.InitialBackoff)
	for i := 1; i < attempts; i++ {
		delay *= max(s.cfg.Multiplier, 1)
		if delay >= float64(s.cfg.MaxBackoff) {
			delay = float64(s.cfg.MaxBackoff)
			break
		}
	}
	if s.cfg.MaxBackoff > 0 {
		delay = min(delay, float64(s.cfg.MaxBackoff))
	}
	if jitter := min(max(s.cfg.Jitter, 0), 1); jitter > 0 {
		delay += delay * jitter * (2*s.random() - 1)
	}
	return time.Duration(delay)
}

func (s *Supervisor) transition(state State) {
	s.mu.Lock()
	old := s.state
	s.state = state
	s.mu.Unlock()
	if old == state {
		return
	}
	linkState.WithLabelValues(s.name).Set(float64(state))
	s.logger.Debug("link state changed",
		zap.Stringer("from", old),
		zap.Stringer("to", state),
	)
	for _, fn := range s.onChange {
		fn(old, state)
	}
}
