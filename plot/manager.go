package plot

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/hash"
)

// Config of the plot manager.
type Config struct {
	Directories    []string      `mapstructure:"plot-directories"`
	RescanInterval time.Duration `mapstructure:"rescan-interval"`
	// DegradedThreshold is the number of consecutive lookup failures after which a plot
	// is excluded until the next rescan.
	DegradedThreshold int `mapstructure:"degraded-threshold"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (cfg *Config) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("directories", strings.Join(cfg.Directories, ","))
	encoder.AddDuration("rescan interval", cfg.RescanInterval)
	encoder.AddInt("degraded threshold", cfg.DegradedThreshold)
	return nil
}

// DefaultConfig returns the default plot manager configuration.
func DefaultConfig() Config {
	return Config{
		RescanInterval:    2 * time.Minute,
		DegradedThreshold: 3,
	}
}

// Snapshot is an immutable view of the farmed plots. Membership changes publish a new
// snapshot so readers never observe a partial update.
type Snapshot struct {
	plots       []*Plot
	byID        map[types.Bytes32]*Plot
	fingerprint types.Bytes32
}

func newSnapshot(plots []*Plot) *Snapshot {
	slices.SortFunc(plots, func(a, b *Plot) int {
		return bytes.Compare(a.info.PlotID[:], b.info.PlotID[:])
	})
	s := &Snapshot{
		plots: plots,
		byID:  make(map[types.Bytes32]*Plot, len(plots)),
	}
	ids := make([]types.Bytes32, 0, len(plots))
	for _, p := range plots {
		s.byID[p.info.PlotID] = p
		ids = append(ids, p.info.PlotID)
	}
	s.fingerprint = hash.Fingerprint(ids)
	return s
}

// Plots in plot id order. The slice must not be modified.
func (s *Snapshot) Plots() []*Plot { return s.plots }

// Len is the number of plots.
func (s *Snapshot) Len() int { return len(s.plots) }

// Get returns the plot with id.
func (s *Snapshot) Get(id types.Bytes32) (*Plot, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Fingerprint identifies the plot set.
func (s *Snapshot) Fingerprint() types.Bytes32 { return s.fingerprint }

// Summaries lists the inventory view of every plot.
func (s *Snapshot) Summaries() []types.PlotSummary {
	out := make([]types.PlotSummary, 0, len(s.plots))
	for _, p := range s.plots {
		out = append(out, p.Summary())
	}
	return out
}

// Opt modifies Manager.
type Opt func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the clock driving rescans.
func WithClock(clock clockwork.Clock) Opt {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithFarmerKeys restricts farming to plots created for one of keys.
func WithFarmerKeys(keys []types.Bytes48) Opt {
	return func(m *Manager) {
		m.farmerKeys = make(map[types.Bytes48]struct{}, len(keys))
		for _, k := range keys {
			m.farmerKeys[k] = struct{}{}
		}
	}
}

// WithOnChange registers a callback invoked with every snapshot whose plot set differs
// from the previous one.
func WithOnChange(fn func(*Snapshot)) Opt {
	return func(m *Manager) {
		m.onChange = append(m.onChange, fn)
	}
}

// Manager owns the set of plots of a harvester: it scans plot directories, publishes
// snapshots and excludes plots that keep failing.
type Manager struct {
	logger     *zap.Logger
	fs         afero.Fs
	cfg        Config
	clock      clockwork.Clock
	farmerKeys map[types.Bytes48]struct{}
	onChange   []func(*Snapshot)

	snapshot atomic.Pointer[Snapshot]
	trigger  chan struct{}

	// scan serializes rescans and snapshot publication.
	scan sync.Mutex

	mu       sync.Mutex
	failures map[types.Bytes32]int
	degraded map[types.Bytes32]string
}

// NewManager creates a manager with an empty snapshot. Call Rescan or Run to load plots.
func NewManager(fs afero.Fs, cfg Config, opts ...Opt) *Manager {
	m := &Manager{
		logger:   zap.NewNop(),
		fs:       fs,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		trigger:  make(chan struct{}, 1),
		failures: make(map[types.Bytes32]int),
		degraded: make(map[types.Bytes32]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.snapshot.Store(newSnapshot(nil))
	return m
}

// Snapshot returns the current plot set.
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Trigger requests a rescan without waiting for it.
func (m *Manager) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Subscribe registers fn like WithOnChange on a running manager.
func (m *Manager) Subscribe(fn func(*Snapshot)) {
	m.scan.Lock()
	defer m.scan.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Run rescans on start, on every interval and on Trigger until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("starting plot manager", zap.Inline(&m.cfg))
	if err := m.Rescan(ctx); err != nil {
		return err
	}
	ticker := m.clock.NewTicker(m.cfg.RescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		case <-m.trigger:
		}
		if err := m.Rescan(ctx); err != nil {
			return err
		}
	}
}

// Rescan walks the plot directories, loads new plots, drops vanished ones and retries
// degraded ones. Errors of single plots are logged and never abort the scan.
func (m *Manager) Rescan(ctx context.Context) error {
	m.scan.Lock()
	defer m.scan.Unlock()

	current := m.snapshot.Load()
	byPath := make(map[string]*Plot, current.Len())
	for _, p := range current.plots {
		byPath[p.info.Path] = p
	}

	var (
		plots []*Plot
		seen  = make(map[types.Bytes32]string)
		noKey int
	)
	for _, dir := range m.cfg.Directories {
		err := afero.Walk(m.fs, dir, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				m.logger.Warn("failed to read plot directory", zap.String("path", path), zap.Error(err))
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if info.IsDir() || filepath.Ext(path) != Extension {
				return nil
			}
			p, ok := byPath[path]
			if !ok || p.info.Size != info.Size() {
				if p, err = Open(m.fs, path); err != nil {
					openErrors.Inc()
					m.logger.Warn("failed to open plot", zap.String("path", path), zap.Error(err))
					return nil
				}
			}
			if m.farmerKeys != nil {
				if _, ok := m.farmerKeys[p.info.FarmerPublicKey]; !ok {
					noKey++
					m.logger.Debug("plot farmer key not loaded", zap.Object("plot", p.Info()))
					return nil
				}
			}
			if other, ok := seen[p.info.PlotID]; ok {
				m.logger.Warn("duplicate plot",
					zap.String("path", path),
					zap.String("other", other),
				)
				return nil
			}
			seen[p.info.PlotID] = path
			plots = append(plots, p)
			return nil
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	m.mu.Lock()
	clear(m.failures)
	clear(m.degraded)
	m.mu.Unlock()

	plotsNoKey.Set(float64(noKey))
	plotsDegraded.Set(0)
	m.publish(newSnapshot(plots))
	return nil
}

// publish must be called with scan held.
func (m *Manager) publish(next *Snapshot) {
	prev := m.snapshot.Swap(next)
	plotsActive.Set(float64(next.Len()))
	if prev.fingerprint == next.fingerprint {
		return
	}
	m.logger.Info("plot set changed",
		zap.Int("plots", next.Len()),
		zap.Int("previous", prev.Len()),
		zap.Stringer("fingerprint", next.fingerprint),
	)
	for _, fn := range m.onChange {
		fn(next)
	}
}

// ReportSuccess resets the failure count of a plot.
func (m *Manager) ReportSuccess(id types.Bytes32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, id)
}

// ReportFailure records a lookup failure. A plot reaching the degraded threshold is
// removed from the snapshot until the next rescan. It reports whether the plot was
// degraded by this call.
func (m *Manager) ReportFailure(id types.Bytes32, err error) bool {
	lookupErrors.Inc()
	m.mu.Lock()
	m.failures[id]++
	count := m.failures[id]
	_, already := m.degraded[id]
	degrade := !already && count >= max(m.cfg.DegradedThreshold, 1)
	if degrade {
		m.degraded[id] = err.Error()
	}
	m.mu.Unlock()
	if !degrade {
		return false
	}

	m.scan.Lock()
	defer m.scan.Unlock()
	current := m.snapshot.Load()
	p, ok := current.Get(id)
	if !ok {
		return false
	}
	m.logger.Warn("plot degraded",
		zap.Object("plot", p.Info()),
		zap.Int("failures", count),
		zap.Error(err),
	)
	plots := make([]*Plot, 0, current.Len()-1)
	for _, other := range current.plots {
		if other.info.PlotID != id {
			plots = append(plots, other)
		}
	}
	plotsDegraded.Inc()
	m.publish(newSnapshot(plots))
	return true
}

// Degraded lists plots excluded since the last rescan with the error that excluded them.
func (m *Manager) Degraded() []types.PlotError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PlotError, 0, len(m.degraded))
	for id, reason := range m.degraded {
		out = append(out, types.PlotError{PlotID: id, Err: reason})
	}
	return out
}
