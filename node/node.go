// Package node contains the main executables of the farmer and the standalone harvester.
package node

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plotfarm/go-farmer/api"
	"github.com/plotfarm/go-farmer/cmd"
	"github.com/plotfarm/go-farmer/config"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/farmer"
	"github.com/plotfarm/go-farmer/fullnode"
	"github.com/plotfarm/go-farmer/harvester"
	"github.com/plotfarm/go-farmer/log"
	"github.com/plotfarm/go-farmer/metrics"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/wire"
)

// Logger names.
const (
	AppLogger       = "app"
	FarmerLogger    = "farmer"
	FullNodeLogger  = "fullnode"
	HarvesterLogger = "harvester"
	PlotsLogger     = "plots"
	PoolLogger      = "pool"
	APILogger       = "api"
	MetricsLogger   = "metrics"
)

// Option to modify an App instance.
type Option func(app *App)

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// WithLog sets the registry the component loggers are created from. By default the
// registry is built from the logging section of the config in Initialize.
func WithLog(registry *log.Registry) Option {
	return func(app *App) {
		app.loggers = registry
	}
}

// WithClock replaces the real clock, used in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(app *App) {
		app.clock = clock
	}
}

// WithFs sets the filesystem plots are read from.
func WithFs(fs afero.Fs) Option {
	return func(app *App) {
		app.fs = fs
	}
}

// New creates an instance of the farmer app.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config:  &defaultConfig,
		log:     zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		fs:      afero.NewOsFs(),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// App is the cli app singleton.
type App struct {
	Config *config.Config

	loggers  *log.Registry
	log      *zap.Logger
	clock    clockwork.Clock
	fs       afero.Fs
	fileLock *flock.Flock
	started  chan struct{}

	constants *consensus.Constants
	keychain  *signing.Keychain

	plots         *plot.Manager
	harvester     *harvester.Harvester
	farmer        *farmer.Farmer
	node          *fullnode.Client
	jsonAPI       *api.JSONHTTPServer
	metrics       *metrics.Server
	harvesterSrv  *harvester.Server
	harvesterAddr net.Addr

	pprofService    *http.Server
	profilerService *pyroscope.Profiler
}

// Started is closed once every service is running.
func (app *App) Started() <-chan struct{} {
	return app.started
}

// Lock locks the app for exclusive use. It returns an error if the app is already locked.
func (app *App) Lock() error {
	path := app.Config.LockFile()
	lockDir := filepath.Dir(path)
	if _, err := os.Stat(lockDir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(lockDir, 0o700); err != nil {
			return fmt.Errorf("creating dir %s for lock %s: %w", lockDir, path, err)
		}
	}
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", path, err)
	} else if !locked {
		return fmt.Errorf("only one farmer instance should be running: %w",
			log.ErrDataDirLocked(app.Config.DataDir(), fl.Path()))
	}
	app.fileLock = fl
	return nil
}

// Unlock unlocks the app. It is a no-op if the app is not locked.
func (app *App) Unlock() {
	if app.fileLock == nil {
		return
	}
	if err := app.fileLock.Unlock(); err != nil {
		app.log.Error("failed to unlock file",
			zap.String("path", app.fileLock.Path()),
			zap.Error(err),
		)
	}
}

// Initialize validates the farmer configuration and sets up logging, the data
// directory and the keys.
func (app *App) Initialize() error {
	if err := app.Config.Validate(); err != nil {
		return log.ErrInvalidConfig(err)
	}
	if err := app.initialize(); err != nil {
		return err
	}
	keychain, err := app.Config.Keychain()
	if err != nil {
		return log.ErrLoadKeys(err)
	}
	app.keychain = keychain
	return nil
}

// InitializeHarvester is Initialize for the standalone harvester, which holds no keys.
func (app *App) InitializeHarvester() error {
	if err := app.Config.ValidateHarvester(); err != nil {
		return log.ErrInvalidConfig(err)
	}
	return app.initialize()
}

func (app *App) initialize() error {
	if app.loggers == nil {
		registry, err := log.New(app.Config.Logging)
		if err != nil {
			return log.ErrInvalidConfig(err)
		}
		app.loggers = registry
	}
	app.log = app.addLogger(AppLogger)
	if err := os.MkdirAll(app.Config.DataDir(), 0o700); err != nil {
		return log.ErrEnsureDataDir(app.Config.DataDir(), err)
	}
	constants, err := app.Config.Constants()
	if err != nil {
		return log.ErrInvalidConfig(err)
	}
	app.constants = constants
	return nil
}

func (app *App) addLogger(name string) *zap.Logger {
	return app.loggers.Named(name)
}

// SetLogLevel updates the log level of an existing logger.
func (app *App) SetLogLevel(name, loglevel string) error {
	return app.loggers.SetLevel(name, loglevel)
}

// Rescan schedules a rescan of the local plot directories.
func (app *App) Rescan() {
	if app.plots != nil {
		app.log.Info("plot rescan requested")
		app.plots.Trigger()
	}
}

// Farmer is available after Start.
func (app *App) Farmer() *farmer.Farmer {
	return app.farmer
}

func (app *App) handshake(node wire.NodeType, id uuid.UUID) wire.Handshake {
	return wire.Handshake{
		Network:         app.constants.Name,
		ProtocolVersion: wire.ProtocolVersion,
		SoftwareVersion: cmd.Version,
		NodeType:        node,
		PeerID:          id,
	}
}

func (app *App) initPlots() {
	var opts []plot.Opt
	opts = append(opts, plot.WithLogger(app.addLogger(PlotsLogger)), plot.WithClock(app.clock))
	if app.keychain != nil {
		opts = append(opts, plot.WithFarmerKeys(app.keychain.FarmerKeys()))
	}
	app.plots = plot.NewManager(app.fs, app.Config.Harvester.Plots, opts...)
}

func (app *App) initServices() error {
	cfg := app.Config
	tlsConfig, err := cfg.TLS.ClientConfig()
	if err != nil {
		return err
	}
	local := app.handshake(wire.NodeFarmer, uuid.New())

	var sources []farmer.ProofSource
	if len(cfg.Harvester.Plots.Directories) > 0 {
		app.initPlots()
		app.harvester = harvester.New(app.plots, app.constants, cfg.Harvester,
			harvester.WithLogger(app.addLogger(HarvesterLogger)),
			harvester.WithClock(app.clock),
		)
		sources = append(sources, farmer.NewLocalSource(app.harvester))
	}
	for _, address := range cfg.RemoteHarvesters.Addresses {
		sources = append(sources, farmer.NewRemoteSource(
			app.addLogger(HarvesterLogger),
			app.clock,
			address,
			tlsConfig,
			local,
			cfg.RemoteHarvesters.Wire,
			cmp.Or(cfg.RemoteHarvesters.ChallengeTimeout, app.constants.SPInterval()),
			cfg.RemoteHarvesters.Supervisor,
		))
	}

	pools, err := app.initPools()
	if err != nil {
		return err
	}

	farmCfg := cfg.Farmer
	farmCfg.Router.FarmerTarget, farmCfg.Router.PoolTarget, err = cfg.Targets(app.constants)
	if err != nil {
		return err
	}
	app.farmer = farmer.New(farmCfg, app.constants, app.keychain, sources, pools,
		farmer.WithLogger(app.addLogger(FarmerLogger)),
		farmer.WithClock(app.clock),
	)

	nodeLogger := app.addLogger(FullNodeLogger)
	opts := []fullnode.Opt{
		fullnode.WithLogger(nodeLogger),
		fullnode.WithClock(app.clock),
		fullnode.WithTLS(tlsConfig),
	}
	if cfg.FullNode.RPC != "" {
		rpc, err := fullnode.NewRPCClient(nodeLogger, cfg.FullNode.RPC, tlsConfig)
		if err != nil {
			return err
		}
		opts = append(opts, fullnode.WithRPC(rpc))
	}
	app.node = fullnode.NewClient(cfg.FullNode, local, app.farmer, opts...)

	if cfg.API.Enabled {
		app.jsonAPI = api.NewJSONHTTPServer(app.addLogger(APILogger), cfg.API, app.farmer)
	}
	return nil
}

func (app *App) initPools() ([]farmer.PoolMember, error) {
	if len(app.Config.Pools) == 0 {
		return nil, nil
	}
	store, err := pool.OpenStateStore(app.Config.DataDir())
	if err != nil {
		return nil, err
	}
	logger := app.addLogger(PoolLogger)
	members := make([]farmer.PoolMember, 0, len(app.Config.Pools))
	for _, pc := range app.Config.Pools {
		owner, err := app.keychain.Owner(pc.OwnerPublicKey)
		if err != nil {
			return nil, log.ErrLoadKeys(fmt.Errorf("pool %s: %w", pc.URL, err))
		}
		auth, err := app.keychain.Auth(pc.OwnerPublicKey)
		if err != nil {
			return nil, log.ErrLoadKeys(fmt.Errorf("pool %s: %w", pc.URL, err))
		}
		client, err := pool.NewHTTPClient(pc.URL, app.Config.PoolClient.HTTP, pool.WithHTTPLogger(logger))
		if err != nil {
			return nil, err
		}
		members = append(members, pool.NewClient(client, pc, app.Config.PoolClient, owner, auth,
			pool.WithLogger(logger),
			pool.WithClock(app.clock),
			pool.WithStateStore(store),
		))
	}
	return members, nil
}

func (app *App) startProfiling() error {
	if app.Config.PprofHTTPServer {
		logger := app.log
		app.pprofService = &http.Server{
			Addr:              app.Config.PprofHTTPServerListener,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := app.pprofService.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("cannot start pprof http server", zap.Error(err))
			}
		}()
	}
	if app.Config.ProfilerURL != "" {
		var err error
		app.profilerService, err = pyroscope.Start(pyroscope.Config{
			ApplicationName: app.Config.ProfilerName,
			// app.Config.ProfilerURL should be the pyroscope server address
			ServerAddress: app.Config.ProfilerURL,
			Tags:          map[string]string{"network": app.constants.Name, "version": cmd.Version},
		})
		if err != nil {
			return fmt.Errorf("cannot start profiling client: %w", err)
		}
	}
	return nil
}

func (app *App) startMetrics(ctx context.Context) error {
	metrics.ReportVersion(cmd.Version)
	if err := app.startProfiling(); err != nil {
		return err
	}
	cfg := app.Config.Metrics
	if !cfg.Enabled {
		return nil
	}
	logger := app.addLogger(MetricsLogger)
	srv, err := metrics.StartMetricsServer(logger, cfg.Address)
	if err != nil {
		return err
	}
	app.metrics = srv
	if cfg.PushURL != "" {
		instance, err := os.Hostname()
		if err != nil {
			instance = "unknown"
		}
		metrics.StartPushingMetrics(ctx, logger, cfg.PushURL, cfg.PushPeriod, instance, app.constants.Name)
	}
	return nil
}

// Start farms until ctx is canceled or a service fails.
func (app *App) Start(ctx context.Context) error {
	if err := app.initServices(); err != nil {
		app.log.Error("failed to initialize services", zap.Error(err))
		return err
	}
	if err := app.startMetrics(ctx); err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return app.farmer.Run(ctx, app.node)
	})
	if app.jsonAPI != nil {
		eg.Go(func() error {
			return app.jsonAPI.Start(ctx)
		})
	}
	app.log.Info("farmer started",
		zap.String("version", cmd.Version),
		zap.String("network", app.constants.Name),
		zap.String("data_dir", app.Config.DataDir()),
		zap.Strings("log_levels", app.loggers.Levels()),
	)
	close(app.started)
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.log.Error("farmer stopped", zap.Error(err))
		return err
	}
	return nil
}

// StartHarvester serves the local plots to remote farmers until ctx is canceled.
func (app *App) StartHarvester(ctx context.Context) error {
	id, err := loadIdentity(app.Config.DataDir())
	if err != nil {
		return err
	}
	tlsConfig, err := app.Config.TLS.ServerConfig()
	if err != nil {
		return err
	}
	app.initPlots()
	app.harvester = harvester.New(app.plots, app.constants, app.Config.Harvester,
		harvester.WithLogger(app.addLogger(HarvesterLogger)),
		harvester.WithClock(app.clock),
		harvester.WithID(id),
	)
	app.harvesterSrv = harvester.NewServer(app.addLogger(HarvesterLogger), app.harvester,
		app.constants.Name, cmd.Version, app.Config.RemoteHarvesters.Wire)
	if err := app.startMetrics(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", app.Config.Harvester.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", app.Config.Harvester.Listen, err)
	}
	app.harvesterAddr = ln.Addr()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return app.plots.Run(ctx)
	})
	eg.Go(func() error {
		return app.harvesterSrv.Serve(ctx, ln, tlsConfig)
	})
	app.log.Info("harvester started",
		zap.Stringer("id", id),
		zap.Stringer("address", ln.Addr()),
		zap.Bool("tls", tlsConfig != nil),
		zap.Inline(&app.Config.Harvester),
	)
	close(app.started)
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.log.Error("harvester stopped", zap.Error(err))
		return err
	}
	return nil
}

// HarvesterAddr is the address the harvester server listens on, once started.
func (app *App) HarvesterAddr() net.Addr {
	return app.harvesterAddr
}

func (app *App) stopServices(ctx context.Context) {
	if app.pprofService != nil {
		if err := app.pprofService.Shutdown(ctx); err != nil {
			app.log.Error("error stopping pprof server", zap.Error(err))
		}
	}
	if app.profilerService != nil {
		if err := app.profilerService.Stop(); err != nil {
			app.log.Error("error stopping profiler", zap.Error(err))
		}
	}
	if app.metrics != nil {
		if err := app.metrics.Shutdown(ctx); err != nil {
			app.log.Error("error stopping metrics server", zap.Error(err))
		}
	}
}

// Cleanup stops all app services.
func (app *App) Cleanup(ctx context.Context) {
	app.log.Info("app cleanup starting...")
	app.stopServices(ctx)
	if app.loggers != nil {
		_ = app.loggers.Sync()
	}
	app.log.Info("app cleanup completed")
}
