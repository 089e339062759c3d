package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/plotfarm/go-farmer/config"
	"github.com/plotfarm/go-farmer/config/presets"
)

// AddFlags adds the command line flags to flagSet and binds them to cfg. The returned
// pointer receives the path of the config file.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file")
	flagSet.StringVarP(&cfg.Preset, "preset", "p", cfg.Preset,
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))

	/** ======================== Base Flags ========================== **/
	flagSet.StringVarP(&cfg.DataDirParent, "data-folder", "d",
		cfg.DataDirParent, "specify the data directory")
	flagSet.StringVar(&cfg.FileLock, "filelock",
		cfg.FileLock, "filesystem lock to prevent running more than one instance")
	flagSet.StringVar(&cfg.Network, "network",
		cfg.Network, "network whose consensus constants are used")
	flagSet.StringVar(&cfg.PayoutAddress, "payout-address",
		cfg.PayoutAddress, "address receiving the farmer share of rewards")
	flagSet.StringVar(&cfg.PoolPayoutAddress, "pool-payout-address",
		cfg.PoolPayoutAddress, "address receiving the pool share of rewards of solo plots")

	flagSet.BoolVar(&cfg.PprofHTTPServer, "pprof-server",
		cfg.PprofHTTPServer, "enable http pprof server")
	flagSet.StringVar(&cfg.ProfilerURL, "profiler-url",
		cfg.ProfilerURL, "send profiler data to certain url, if no url no profiling will be sent, format: http://<IP>:<PORT>")
	flagSet.StringVar(&cfg.ProfilerName, "profiler-name",
		cfg.ProfilerName, "the name to use when sending profiles")

	/** ======================== TLS Flags ========================== **/
	flagSet.StringVar(&cfg.TLS.Root, "ssl-root",
		cfg.TLS.Root, "directory the tls files are resolved against")
	flagSet.StringVar(&cfg.TLS.CA, "tls-ca",
		cfg.TLS.CA, "certificate authority of the peers")
	flagSet.StringVar(&cfg.TLS.Cert, "tls-cert",
		cfg.TLS.Cert, "certificate presented to peers")
	flagSet.StringVar(&cfg.TLS.Key, "tls-key",
		cfg.TLS.Key, "key of the certificate presented to peers")

	/** ======================== Full Node Flags ========================== **/
	flagSet.StringVar(&cfg.FullNode.Address, "full-node",
		cfg.FullNode.Address, "websocket address of the full node")
	flagSet.StringVar(&cfg.FullNode.RPC, "full-node-rpc",
		cfg.FullNode.RPC, "http rpc address of the full node")

	/** ======================== Harvester Flags ========================== **/
	flagSet.StringSliceVar(&cfg.Harvester.Plots.Directories, "plot-dir",
		cfg.Harvester.Plots.Directories, "directory scanned for plots. can be passed multiple times")
	flagSet.IntVar(&cfg.Harvester.Concurrency, "lookup-concurrency",
		cfg.Harvester.Concurrency, "number of plot lookups running at once")
	flagSet.StringVar(&cfg.Harvester.Listen, "listen",
		cfg.Harvester.Listen, "address the harvester server listens on")
	flagSet.StringSliceVar(&cfg.RemoteHarvesters.Addresses, "remote-harvester",
		cfg.RemoteHarvesters.Addresses, "websocket address of a remote harvester. can be passed multiple times")

	/** ======================== Logging Flags ========================== **/
	flagSet.StringVar(&cfg.Logging.Encoder, "log-encoder",
		cfg.Logging.Encoder, "log encoder, one of console or json")
	flagSet.StringVar(&cfg.Logging.Level, "log-level",
		cfg.Logging.Level, "default level of every component logger")

	/** ======================== Metrics Flags ========================== **/
	flagSet.BoolVar(&cfg.Metrics.Enabled, "metrics",
		cfg.Metrics.Enabled, "serve prometheus metrics")
	flagSet.StringVar(&cfg.Metrics.Address, "metrics-address",
		cfg.Metrics.Address, "address the metrics server listens on")
	flagSet.StringVar(&cfg.Metrics.PushURL, "metrics-push",
		cfg.Metrics.PushURL, "push metrics to url")
	flagSet.DurationVar(&cfg.Metrics.PushPeriod, "metrics-push-period",
		cfg.Metrics.PushPeriod, "push period")

	/** ======================== API Flags ========================== **/
	flagSet.BoolVar(&cfg.API.Enabled, "api",
		cfg.API.Enabled, "serve the json status api")
	flagSet.StringVar(&cfg.API.Listen, "api-listen",
		cfg.API.Listen, "address the json api listens on")

	return configPath
}
