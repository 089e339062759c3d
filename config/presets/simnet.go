package presets

import (
	"os"
	"path/filepath"
	"time"

	"github.com/plotfarm/go-farmer/config"
	"github.com/plotfarm/go-farmer/consensus"
)

func init() {
	register(consensus.Simnet().Name, simnet())
}

// simnet runs against a local development node without TLS.
func simnet() config.Config {
	conf := config.DefaultConfig()
	conf.Network = consensus.Simnet().Name
	conf.DataDirParent = filepath.Join(os.TempDir(), "farmer")
	conf.FullNode.Address = "ws://127.0.0.1:18444/ws"
	conf.FullNode.RPC = "http://127.0.0.1:18555"
	conf.FullNode.Supervisor.InitialBackoff = 100 * time.Millisecond
	conf.FullNode.Supervisor.MaxBackoff = 5 * time.Second
	conf.RemoteHarvesters.Supervisor = conf.FullNode.Supervisor

	conf.Harvester.Plots.RescanInterval = 10 * time.Second
	conf.Harvester.Listen = "127.0.0.1:18448"

	conf.PoolClient.InfoInterval = time.Minute
	conf.PoolClient.FarmerInterval = 30 * time.Second
	conf.PoolClient.FailureRetry = 10 * time.Second

	conf.Logging.Level = "debug"
	return conf
}
