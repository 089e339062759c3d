// Package config contains the farmer and harvester configuration definitions.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/plotfarm/go-farmer/api"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/farmer"
	"github.com/plotfarm/go-farmer/filesystem"
	"github.com/plotfarm/go-farmer/fullnode"
	"github.com/plotfarm/go-farmer/harvester"
	"github.com/plotfarm/go-farmer/log"
	"github.com/plotfarm/go-farmer/metrics"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

const (
	defaultDataDirName = ".farmer"
	lockFileName       = "LOCK"
)

var defaultDataDir = filepath.Join(filesystem.GetUserHomeDirectory(), defaultDataDirName)

// Config is the configuration of a farmer, and of a standalone harvester which only
// reads the sections it needs.
type Config struct {
	// Preset selects the network preset the file is applied on top of.
	Preset     string `mapstructure:"preset"`
	BaseConfig `mapstructure:"main"`

	FullNode         fullnode.Config        `mapstructure:"full-node"`
	Keys             []KeyConfig            `mapstructure:"farmer-keys"`
	Pools            []pool.Config          `mapstructure:"pools"`
	PoolClient       pool.ClientConfig      `mapstructure:"pool-client"`
	Harvester        harvester.Config       `mapstructure:"harvester"`
	RemoteHarvesters RemoteHarvestersConfig `mapstructure:"remote-harvesters"`
	Farmer           farmer.Config          `mapstructure:",squash"`
	API              api.Config             `mapstructure:"api"`
	Metrics          metrics.Config         `mapstructure:"metrics"`
	Logging          log.Config             `mapstructure:"logging"`
}

// BaseConfig holds the settings shared by every component.
type BaseConfig struct {
	DataDirParent string `mapstructure:"data-folder"`
	// FileLock defaults to a file in the data directory.
	FileLock string `mapstructure:"filelock"`
	Network  string `mapstructure:"network"`
	// PayoutAddress receives the farmer share of block rewards.
	PayoutAddress string `mapstructure:"payout-address"`
	// PoolPayoutAddress receives the pool share of blocks won by plots bound to a pool
	// public key. Defaults to PayoutAddress.
	PoolPayoutAddress string         `mapstructure:"pool-payout-address"`
	TLS               wire.TLSConfig `mapstructure:"tls"`

	PprofHTTPServer         bool   `mapstructure:"pprof-server"`
	PprofHTTPServerListener string `mapstructure:"pprof-listener"`
	// ProfilerURL is the address of a pyroscope server. Continuous profiling is off
	// when empty.
	ProfilerURL  string `mapstructure:"profiler-url"`
	ProfilerName string `mapstructure:"profiler-name"`
}

// KeyConfig is the key material of one farmer identity. Secret keys are hex encoded.
type KeyConfig struct {
	FarmerSecretKey string        `mapstructure:"farmer-secret-key"`
	PoolSecretKey   string        `mapstructure:"pool-secret-key"`
	OwnerSecretKey  string        `mapstructure:"owner-secret-key"`
	AuthSecretKey   string        `mapstructure:"auth-secret-key"`
	LauncherID      types.Bytes32 `mapstructure:"launcher-id"`
}

// RemoteHarvestersConfig lists harvesters the farmer connects to.
type RemoteHarvestersConfig struct {
	Addresses []string `mapstructure:"addresses"`
	// ChallengeTimeout bounds the wait for a harvester's report on a signage point.
	// Zero uses the signage point interval of the network.
	ChallengeTimeout time.Duration     `mapstructure:"challenge-timeout"`
	Wire             wire.Config       `mapstructure:"wire"`
	Supervisor       supervisor.Config `mapstructure:"supervisor"`
}

// DefaultConfig returns the mainnet configuration without keys, pools or plots.
func DefaultConfig() Config {
	return Config{
		BaseConfig: BaseConfig{
			DataDirParent:           defaultDataDir,
			Network:                 consensus.Mainnet().Name,
			PprofHTTPServerListener: "localhost:6060",
			ProfilerName:            "go-farmer",
		},
		FullNode:   fullnode.DefaultConfig(),
		PoolClient: pool.DefaultClientConfig(),
		Harvester:  harvester.DefaultConfig(),
		RemoteHarvesters: RemoteHarvestersConfig{
			Wire:       wire.DefaultConfig(),
			Supervisor: supervisor.DefaultConfig(),
		},
		Farmer:  farmer.DefaultConfig(),
		API:     api.DefaultConfig(),
		Metrics: metrics.DefaultConfig(),
		Logging: log.DefaultConfig(),
	}
}

// DataDir is the data directory of the selected network.
func (cfg *Config) DataDir() string {
	return filepath.Join(filesystem.GetCanonicalPath(cfg.DataDirParent), cfg.Network)
}

// LockFile is the file locked while a process uses the data directory.
func (cfg *Config) LockFile() string {
	if cfg.FileLock != "" {
		return filesystem.GetCanonicalPath(cfg.FileLock)
	}
	return filepath.Join(cfg.DataDir(), lockFileName)
}

// Constants returns the consensus constants of the selected network.
func (cfg *Config) Constants() (*consensus.Constants, error) {
	c, err := consensus.Get(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	return c, nil
}

// Keychain parses the configured secret keys.
func (cfg *Config) Keychain() (*signing.Keychain, error) {
	sets := make([]signing.KeySet, 0, len(cfg.Keys))
	for i, kc := range cfg.Keys {
		set, err := kc.keySet()
		if err != nil {
			return nil, fmt.Errorf("%w: farmer-keys[%d]: %w", types.ErrConfiguration, i, err)
		}
		sets = append(sets, set)
	}
	keychain, err := signing.NewKeychain(sets...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	return keychain, nil
}

func (kc KeyConfig) keySet() (signing.KeySet, error) {
	var (
		set signing.KeySet
		err error
	)
	parse := func(name, hex string, dst **signing.PrivateKey) {
		if err != nil || hex == "" {
			return
		}
		if *dst, err = signing.ParsePrivateKey(hex); err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
	}
	if kc.FarmerSecretKey == "" {
		return set, errors.New("farmer-secret-key is required")
	}
	parse("farmer-secret-key", kc.FarmerSecretKey, &set.Farmer)
	parse("pool-secret-key", kc.PoolSecretKey, &set.Pool)
	parse("owner-secret-key", kc.OwnerSecretKey, &set.Owner)
	parse("auth-secret-key", kc.AuthSecretKey, &set.Auth)
	if err != nil {
		return set, err
	}
	if !kc.LauncherID.IsEmpty() {
		launcher := kc.LauncherID
		set.LauncherID = &launcher
	}
	return set, nil
}

// Targets decodes the payout addresses into puzzle hashes.
func (cfg *Config) Targets(constants *consensus.Constants) (farmerTarget, poolTarget types.Bytes32, err error) {
	farmerTarget, err = types.AddressToPuzzleHash(cfg.PayoutAddress, constants.AddressPrefix)
	if err != nil {
		return farmerTarget, poolTarget, fmt.Errorf("%w: payout-address: %w", types.ErrConfiguration, err)
	}
	if cfg.PoolPayoutAddress == "" {
		return farmerTarget, farmerTarget, nil
	}
	poolTarget, err = types.AddressToPuzzleHash(cfg.PoolPayoutAddress, constants.AddressPrefix)
	if err != nil {
		return farmerTarget, poolTarget, fmt.Errorf("%w: pool-payout-address: %w", types.ErrConfiguration, err)
	}
	return farmerTarget, poolTarget, nil
}

// Validate checks that the farmer can start with cfg. Every problem found is reported.
func (cfg *Config) Validate() error {
	var errs []error
	constants, err := cfg.Constants()
	if err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("full-node.address", cfg.FullNode.Address, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	if cfg.FullNode.RPC != "" {
		if err := checkURL("full-node.rpc", cfg.FullNode.RPC, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if len(cfg.Keys) == 0 {
		errs = append(errs, errors.New("at least one farmer key is required"))
	} else if _, err := cfg.Keychain(); err != nil {
		errs = append(errs, err)
	}
	if constants != nil {
		if _, _, err := cfg.Targets(constants); err != nil {
			errs = append(errs, err)
		}
	}
	launchers := make(map[types.Bytes32]struct{}, len(cfg.Keys))
	for _, kc := range cfg.Keys {
		if !kc.LauncherID.IsEmpty() {
			launchers[kc.LauncherID] = struct{}{}
		}
	}
	for i, pc := range cfg.Pools {
		if _, ok := launchers[pc.LauncherID]; !ok {
			errs = append(errs, fmt.Errorf("pools[%d]: no farmer key for launcher id %s", i, pc.LauncherID))
		}
		if err := checkURL(fmt.Sprintf("pools[%d].url", i), pc.URL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if len(cfg.Harvester.Plots.Directories) == 0 && len(cfg.RemoteHarvesters.Addresses) == 0 {
		errs = append(errs, errors.New("no plot directories and no remote harvesters configured"))
	}
	for i, addr := range cfg.RemoteHarvesters.Addresses {
		if err := checkURL(fmt.Sprintf("remote-harvesters.addresses[%d]", i), addr, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cfg.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ValidateHarvester checks the sections a standalone harvester uses.
func (cfg *Config) ValidateHarvester() error {
	var errs []error
	if _, err := cfg.Constants(); err != nil {
		errs = append(errs, err)
	}
	if len(cfg.Harvester.Plots.Directories) == 0 {
		errs = append(errs, errors.New("harvester.plot-directories is empty"))
	}
	if cfg.Harvester.Listen == "" {
		errs = append(errs, errors.New("harvester.listen is empty"))
	}
	if err := cfg.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", field, raw)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme %q is not one of %v", field, u.Scheme, schemes)
}
