// Package pool talks to farming pools: it owns the farmer's view of each pool, keeps the
// farmer registered and submits partials.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/signing"
)

// API is the pool protocol as spoken by HTTPClient.
type API interface {
	Address() string
	Info(ctx context.Context) (*Info, error)
	Farmer(ctx context.Context, launcherID types.Bytes32, token uint64, signature types.Bytes96) (*FarmerInfo, error)
	PostFarmer(ctx context.Context, req *PostFarmerRequest) (*PostFarmerResponse, error)
	Partial(ctx context.Context, partial *types.Partial) (*PartialResponse, error)
}

// Config of one pool the farmer is a member of.
type Config struct {
	LauncherID            types.Bytes32 `mapstructure:"launcher-id"`
	URL                   string        `mapstructure:"url"`
	OwnerPublicKey        types.Bytes48 `mapstructure:"owner-public-key"`
	PayoutInstructions    types.Bytes32 `mapstructure:"payout-instructions"`
	P2SingletonPuzzleHash types.Bytes32 `mapstructure:"p2-singleton-puzzle-hash"`
	// Difficulty is suggested to the pool on registration.
	Difficulty uint64 `mapstructure:"difficulty"`
}

func (cfg *Config) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("launcher id", cfg.LauncherID.String())
	encoder.AddString("url", cfg.URL)
	encoder.AddString("p2 singleton", cfg.P2SingletonPuzzleHash.String())
	encoder.AddUint64("difficulty", cfg.Difficulty)
	return nil
}

// ClientConfig tunes refresh and throttling of all pool clients.
type ClientConfig struct {
	HTTP HTTPConfig `mapstructure:",squash"`
	// InfoInterval is the period of GET /pool_info.
	InfoInterval time.Duration `mapstructure:"info-interval"`
	// FarmerInterval is the period of GET /farmer.
	FarmerInterval time.Duration `mapstructure:"farmer-interval"`
	// FailureRetry is the delay before a failed refresh is retried.
	FailureRetry time.Duration `mapstructure:"failure-retry"`
	// MinRequestInterval throttles partials unless the pool advertises its own interval.
	// RequestBurst applies to this interval only; an advertised interval is never burst.
	MinRequestInterval time.Duration `mapstructure:"min-request-interval"`
	RequestBurst       int           `mapstructure:"request-burst"`
}

func (cfg *ClientConfig) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if err := cfg.HTTP.MarshalLogObject(encoder); err != nil {
		return err
	}
	encoder.AddDuration("info interval", cfg.InfoInterval)
	encoder.AddDuration("farmer interval", cfg.FarmerInterval)
	encoder.AddDuration("failure retry", cfg.FailureRetry)
	encoder.AddDuration("min request interval", cfg.MinRequestInterval)
	encoder.AddInt("request burst", cfg.RequestBurst)
	return nil
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HTTP:               DefaultHTTPConfig(),
		InfoInterval:       time.Hour,
		FarmerInterval:     5 * time.Minute,
		FailureRetry:       2 * time.Minute,
		MinRequestInterval: 100 * time.Millisecond,
		RequestBurst:       10,
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

// WithStateStore persists difficulty changes and seeds the starting difficulty.
func WithStateStore(store *StateStore) Opt {
	return func(c *Client) {
		c.store = store
	}
}

type message struct {
	// newDifficulty is applied when not zero.
	newDifficulty uint64
	// refresh forces GET /farmer on the next iteration.
	refresh bool
}

// Client owns the PoolState of one pool. The state is only mutated by the Run loop;
// other goroutines read published copies and send messages to the loop.
type Client struct {
	logger *zap.Logger
	clock  clockwork.Clock
	api    API
	cfg    Config
	ccfg   ClientConfig
	owner  *signing.PrivateKey
	auth   *signing.PrivateKey
	store  *StateStore

	limiter *rate.Limiter
	stats   *Stats
	inbox   chan message
	state   atomic.Pointer[types.PoolState]

	// loop-owned schedule
	nextInfo   time.Time
	nextFarmer time.Time
}

// NewClient creates a client for a pool. The owner key signs registrations and the
// authentication key signs partials and farmer queries.
func NewClient(
	api API,
	cfg Config,
	ccfg ClientConfig,
	owner, auth *signing.PrivateKey,
	opts ...Opt,
) *Client {
	c := &Client{
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		api:     api,
		cfg:     cfg,
		ccfg:    ccfg,
		owner:   owner,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(ccfg.MinRequestInterval), max(ccfg.RequestBurst, 1)),
		inbox:   make(chan message, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("pool", api.Address()), zap.Stringer("launcher_id", cfg.LauncherID))
	c.stats = newStats(c.logger, api.Address())

	initial := &types.PoolState{
		LauncherID:        cfg.LauncherID,
		PoolURL:           api.Address(),
		CurrentDifficulty: cfg.Difficulty,
	}
	if c.store != nil {
		if d := c.store.Difficulty(cfg.LauncherID); d != 0 {
			initial.CurrentDifficulty = d
		}
	}
	c.state.Store(initial)
	return c
}

// LauncherID identifies the pool membership.
func (c *Client) LauncherID() types.Bytes32 {
	return c.cfg.LauncherID
}

// ContractPuzzleHash is the puzzle hash plots of this pool are bound to.
func (c *Client) ContractPuzzleHash() types.Bytes32 {
	return c.cfg.P2SingletonPuzzleHash
}

// State returns a copy of the current pool state.
func (c *Client) State() types.PoolState {
	return *c.state.Load()
}

// Stats returns the partial accounting of this pool.
func (c *Client) Stats() types.PoolStats {
	return c.stats.Snapshot()
}

// AuthenticationToken is the token to put in partials submitted now.
func (c *Client) AuthenticationToken() uint64 {
	return AuthenticationToken(c.clock.Now(), c.state.Load().AuthenticationTokenTimeout)
}

// AuthKey signs partial payloads together with the plot signature.
func (c *Client) AuthKey() *signing.PrivateKey {
	return c.auth
}

// Ready reports whether pool info was fetched and partials can be built.
func (c *Client) Ready() bool {
	s := c.state.Load()
	return !s.LastInfoRefresh.IsZero() && c.auth != nil
}

func (c *Client) update(fn func(*types.PoolState)) types.PoolState {
	next := *c.state.Load()
	fn(&next)
	c.state.Store(&next)
	difficulty.WithLabelValues(c.api.Address()).Set(float64(next.CurrentDifficulty))
	return next
}

func (c *Client) send(msg message) {
	select {
	case c.inbox <- msg:
	default:
		c.logger.Debug("pool client inbox full", zap.Uint64("difficulty", msg.newDifficulty))
	}
}

// Run refreshes the pool state until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("starting pool client", zap.Inline(&c.cfg))
	go c.stats.Run(ctx)
	now := c.clock.Now()
	c.nextInfo, c.nextFarmer = now, now
	for {
		c.refresh(ctx)
		wait := max(min(c.nextInfo.Sub(c.clock.Now()), c.nextFarmer.Sub(c.clock.Now())), 0)
		timer := c.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		case msg := <-c.inbox:
			timer.Stop()
			c.apply(msg)
		}
	}
}

func (c *Client) apply(msg message) {
	if msg.newDifficulty != 0 && msg.newDifficulty != c.state.Load().CurrentDifficulty {
		next := c.update(func(s *types.PoolState) { s.CurrentDifficulty = msg.newDifficulty })
		c.logger.Info("pool difficulty changed", zap.Uint64("difficulty", next.CurrentDifficulty))
		c.persist(next.CurrentDifficulty)
	}
	if msg.refresh {
		c.nextFarmer = c.clock.Now()
	}
}

func (c *Client) persist(difficulty uint64) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveDifficulty(c.cfg.LauncherID, difficulty); err != nil {
		c.logger.Warn("failed to persist pool difficulty", zap.Error(err))
	}
}

// refresh runs the refreshes that are due.
func (c *Client) refresh(ctx context.Context) {
	now := c.clock.Now()
	if !now.Before(c.nextInfo) {
		if err := c.refreshInfo(ctx); err != nil {
			c.logger.Warn("failed to fetch pool info", zap.Error(err))
			c.nextInfo = now.Add(c.ccfg.FailureRetry)
		} else {
			c.nextInfo = now.Add(c.ccfg.InfoInterval)
		}
	}
	if c.state.Load().LastInfoRefresh.IsZero() {
		c.nextFarmer = c.nextInfo
		return
	}
	if !now.Before(c.nextFarmer) {
		if err := c.refreshFarmer(ctx); err != nil {
			c.logger.Warn("failed to refresh farmer", zap.Error(err))
			c.nextFarmer = now.Add(c.ccfg.FailureRetry)
		} else {
			// the farmer is refreshed again no later than the token expiry
			c.nextFarmer = now.Add(c.ccfg.FarmerInterval)
			if expiry := c.state.Load().AuthTokenExpiry; expiry.Before(c.nextFarmer) {
				c.nextFarmer = expiry
			}
		}
	}
}

func (c *Client) refreshInfo(ctx context.Context) error {
	info, err := c.api.Info(ctx)
	if err != nil {
		return err
	}
	now := c.clock.Now()
	if info.MinimumRequestInterval > 0 {
		c.limiter.SetLimitAt(now, rate.Every(time.Duration(info.MinimumRequestInterval)*time.Second))
		c.limiter.SetBurstAt(now, 1)
	}
	next := c.update(func(s *types.PoolState) {
		s.MinimumDifficulty = info.MinimumDifficulty
		s.TargetPuzzleHash = info.TargetPuzzleHash
		s.AuthenticationTokenTimeout = info.AuthenticationTokenTimeout
		s.AuthTokenExpiry = TokenExpiry(now, info.AuthenticationTokenTimeout)
		s.LastInfoRefresh = now
		if s.CurrentDifficulty == 0 {
			s.CurrentDifficulty = info.MinimumDifficulty
		}
	})
	c.logger.Info("pool info refreshed",
		zap.String("name", info.Name),
		zap.Inline(&next),
		zap.Uint8("token_timeout", info.AuthenticationTokenTimeout),
	)
	return nil
}

func (c *Client) refreshFarmer(ctx context.Context) error {
	if c.auth == nil || c.owner == nil {
		return fmt.Errorf("%w: no owner or authentication key for launcher %s",
			types.ErrConfiguration, c.cfg.LauncherID.ShortString())
	}
	state := c.State()
	now := c.clock.Now()
	token := AuthenticationToken(now, state.AuthenticationTokenTimeout)
	payload := &AuthenticationPayload{
		MethodName:          "get_farmer",
		LauncherID:          c.cfg.LauncherID,
		TargetPuzzleHash:    state.TargetPuzzleHash,
		AuthenticationToken: token,
	}
	sig := c.auth.Sign(SigningMessage(payload))
	info, err := c.api.Farmer(ctx, c.cfg.LauncherID, token, sig)
	var perr *Error
	if errors.As(err, &perr) && perr.Code == FarmerNotKnown {
		c.logger.Info("farmer not known to pool, registering")
		if err := c.register(ctx, token); err != nil {
			return err
		}
		sig = c.auth.Sign(SigningMessage(payload))
		info, err = c.api.Farmer(ctx, c.cfg.LauncherID, token, sig)
	}
	if err != nil {
		return err
	}
	if info.AuthenticationPublicKey != c.auth.PublicKey() {
		c.logger.Warn("pool has a different authentication key",
			zap.Stringer("pool", info.AuthenticationPublicKey),
			zap.Stringer("local", c.auth.PublicKey()),
		)
	}
	next := c.update(func(s *types.PoolState) {
		s.Registered = true
		s.LastFarmerRefresh = now
		s.AuthTokenExpiry = TokenExpiry(now, s.AuthenticationTokenTimeout)
		if info.CurrentDifficulty != 0 {
			s.CurrentDifficulty = info.CurrentDifficulty
		}
	})
	c.persist(next.CurrentDifficulty)
	c.logger.Debug("farmer info refreshed",
		zap.Uint64("points", info.CurrentPoints),
		zap.Uint64("difficulty", next.CurrentDifficulty),
	)
	return nil
}

func (c *Client) register(ctx context.Context, token uint64) error {
	payload := FarmerPayload{
		LauncherID:              c.cfg.LauncherID,
		AuthenticationToken:     token,
		AuthenticationPublicKey: c.auth.PublicKey(),
		PayoutInstructions:      c.cfg.PayoutInstructions,
		SuggestedDifficulty:     c.cfg.Difficulty,
	}
	req := &PostFarmerRequest{Payload: payload, Signature: c.owner.Sign(SigningMessage(&payload))}
	resp, err := c.api.PostFarmer(ctx, req)
	if err != nil {
		return fmt.Errorf("register farmer: %w", err)
	}
	c.logger.Info("registered with pool", zap.String("welcome", resp.WelcomeMessage))
	return nil
}

// SubmitPartial sends a partial after waiting for the request throttle. Pool rejections
// are returned as *Error and never retried; transient failures are retried by the http
// client before SubmitPartial gives up.
func (c *Client) SubmitPartial(ctx context.Context, partial *types.Partial) (Outcome, error) {
	diff := c.state.Load().CurrentDifficulty
	if err := c.throttle(ctx); err != nil {
		return Failed, err
	}
	resp, err := c.api.Partial(ctx, partial)
	var perr *Error
	switch {
	case err == nil:
		c.stats.record(Accepted, diff)
		if resp.NewDifficulty != 0 {
			c.send(message{newDifficulty: resp.NewDifficulty})
		}
		return Accepted, nil
	case errors.As(err, &perr):
		c.stats.record(Rejected, diff)
		if errors.Is(err, ErrUnauthorized) {
			c.send(message{refresh: true})
		}
		return Rejected, err
	}
	c.stats.record(Failed, diff)
	return Failed, err
}

// throttle waits on the client clock until the limiter grants a request.
func (c *Client) throttle(ctx context.Context) error {
	now := c.clock.Now()
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return errors.New("request exceeds limiter burst")
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	timer := c.clock.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.CancelAt(c.clock.Now())
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
