// Package log builds the process zap logger and keeps per-component levels
// that can be changed at runtime.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoder selects the log line format.
type Encoder = string

const (
	// ConsoleEncoder writes human readable lines.
	ConsoleEncoder Encoder = "console"
	// JSONEncoder writes one json object per line.
	JSONEncoder Encoder = "json"
)

const defaultLevel = zapcore.InfoLevel

// Config controls the encoder and the level of every named component.
type Config struct {
	Encoder Encoder `mapstructure:"log-encoder"`
	// Level applies to components without an entry in Components.
	Level      string            `mapstructure:"level"`
	Components map[string]string `mapstructure:"components"`
}

// DefaultConfig logs everything at info with the console encoder.
func DefaultConfig() Config {
	return Config{
		Encoder:    ConsoleEncoder,
		Level:      defaultLevel.String(),
		Components: map[string]string{},
	}
}

// Validate checks that every configured level parses.
func (c Config) Validate() error {
	switch c.Encoder {
	case ConsoleEncoder, JSONEncoder, "":
	default:
		return fmt.Errorf("unknown log encoder %q", c.Encoder)
	}
	if _, err := zapcore.ParseLevel(c.level()); err != nil {
		return fmt.Errorf("default level: %w", err)
	}
	for name, lvl := range c.Components {
		if _, err := zapcore.ParseLevel(lvl); err != nil {
			return fmt.Errorf("level for %s: %w", name, err)
		}
	}
	return nil
}

func (c Config) level() string {
	if c.Level == "" {
		return defaultLevel.String()
	}
	return c.Level
}

// Registry owns the root logger and the atomic level of each component
// handed out by Named.
type Registry struct {
	root *zap.Logger
	cfg  Config

	mu     sync.Mutex
	levels map[string]*zap.AtomicLevel
}

// New builds a registry that writes to stdout.
func New(cfg Config, hooks ...func(zapcore.Entry) error) (*Registry, error) {
	return NewWithWriter(cfg, os.Stdout, hooks...)
}

// NewWithWriter builds a registry that writes to w.
func NewWithWriter(cfg Config, w io.Writer, hooks ...func(zapcore.Entry) error) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var encoder zapcore.Encoder
	switch cfg.Encoder {
	case JSONEncoder:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	// the root core accepts everything, components filter with their own level
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.DebugLevel)
	return &Registry{
		root:   zap.New(zapcore.RegisterHooks(core, hooks...)),
		cfg:    cfg,
		levels: map[string]*zap.AtomicLevel{},
	}, nil
}

// Named returns a logger for the component with the level configured for it.
func (r *Registry) Named(name string) *zap.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	lvl, ok := r.levels[name]
	if !ok {
		text, exists := r.cfg.Components[name]
		if !exists {
			text = r.cfg.level()
		}
		parsed := zap.NewAtomicLevel()
		if err := parsed.UnmarshalText([]byte(text)); err != nil {
			parsed.SetLevel(defaultLevel)
		}
		lvl = &parsed
		r.levels[name] = lvl
	}
	return r.root.WithOptions(withLevel(lvl)).Named(name)
}

// SetLevel updates the level of a component previously returned by Named.
func (r *Registry) SetLevel(name, level string) error {
	r.mu.Lock()
	lvl, ok := r.levels[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("cannot find logger %v", name)
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("unmarshal text: %w", err)
	}
	return nil
}

// Levels reports the current level of every component in name order.
func (r *Registry) Levels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rst := make([]string, 0, len(r.levels))
	for name, lvl := range r.levels {
		rst = append(rst, name+"="+lvl.Level().String())
	}
	sort.Strings(rst)
	return rst
}

// Sync flushes buffered entries.
func (r *Registry) Sync() error {
	return r.root.Sync()
}

func withLevel(level *zap.AtomicLevel) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &coreWithLevel{Core: core, lvl: level}
	})
}

type coreWithLevel struct {
	zapcore.Core
	lvl *zap.AtomicLevel
}

func (c *coreWithLevel) Enabled(level zapcore.Level) bool {
	return c.lvl.Enabled(level)
}

func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{Core: c.Core.With(fields), lvl: c.lvl}
}

func (c *coreWithLevel) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.lvl.Enabled(e.Level) {
		return ce
	}
	// the wrapped core registers itself, and hooks run before the write
	return c.Core.Check(e, ce)
}
