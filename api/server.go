// Package api serves a read only JSON view of the farmer.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpmetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
	"go.uber.org/zap"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/farmer"
	"github.com/plotfarm/go-farmer/log"
	"github.com/plotfarm/go-farmer/metrics"
)

const requestIDHeader = "X-Request-Id"

// Farmer is the state the server exposes.
type Farmer interface {
	Status() *farmer.Status
}

// Config of the JSON server.
type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	Listen            string        `mapstructure:"listen"`
	ReadHeaderTimeout time.Duration `mapstructure:"read-header-timeout"`
	WriteTimeout      time.Duration `mapstructure:"write-timeout"`
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

func DefaultConfig() Config {
	return Config{
		Listen:            "127.0.0.1:9292",
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// JSONHTTPServer serves farmer status over http.
type JSONHTTPServer struct {
	logger *zap.Logger
	cfg    Config
	farmer Farmer
	router *mux.Router
}

// NewJSONHTTPServer creates a server. It does not listen until Start.
func NewJSONHTTPServer(logger *zap.Logger, cfg Config, f Farmer) *JSONHTTPServer {
	s := &JSONHTTPServer{
		logger: logger,
		cfg:    cfg,
		farmer: f,
		router: mux.NewRouter(),
	}
	// routes stay on the root router: a subrouter reports a method mismatch as not found
	s.router.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/window", s.handleWindow).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/harvesters", s.handleHarvesters).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/pools", s.handlePools).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/pools/{launcher}", s.handlePool).Methods(http.MethodGet)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method)
	})
	s.router.Use(s.requestID, instrument)
	return s
}

// Handler returns the http handler with middleware applied.
func (s *JSONHTTPServer) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.cfg.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
		}).Handler(h)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
}

// Start listens on the configured address and serves until ctx is canceled.
func (s *JSONHTTPServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *JSONHTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown json server", zap.Error(err))
		}
	}()
	s.logger.Info("serving json api", zap.Stringer("address", ln.Addr()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var httpMetrics = middleware.New(middleware.Config{
	Recorder: httpmetrics.NewRecorder(httpmetrics.Config{Prefix: metrics.Namespace}),
})

// instrument records request metrics labeled by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				id = tpl
			}
		}
		std.Handler(id, httpMetrics, next).ServeHTTP(w, r)
	})
}

func (s *JSONHTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(requestIDHeader); id != "" {
			ctx = log.WithRequestID(ctx, id, zap.String("path", r.URL.Path))
		} else {
			ctx = log.WithNewRequestID(ctx, zap.String("path", r.URL.Path))
		}
		id, _ := log.ExtractRequestID(ctx)
		w.Header().Set(requestIDHeader, id)
		s.logger.Debug("request", log.ZContext(ctx), zap.String("method", r.Method))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *JSONHTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.farmer.Status())
}

func (s *JSONHTTPServer) handleWindow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.farmer.Status().Window)
}

func (s *JSONHTTPServer) handleHarvesters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.farmer.Status().Harvesters)
}

func (s *JSONHTTPServer) handlePools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.farmer.Status().Pools)
}

func (s *JSONHTTPServer) handlePool(w http.ResponseWriter, r *http.Request) {
	var launcher types.Bytes32
	if err := launcher.UnmarshalText([]byte(mux.Vars(r)["launcher"])); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_launcher_id", err.Error())
		return
	}
	for _, p := range s.farmer.Status().Pools {
		if p.LauncherID == launcher {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown_pool", launcher.String())
}
