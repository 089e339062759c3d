package presets

import (
	"github.com/plotfarm/go-farmer/config"
	"github.com/plotfarm/go-farmer/consensus"
)

func init() {
	register(consensus.Testnet11().Name, testnet())
}

func testnet() config.Config {
	conf := config.DefaultConfig()
	conf.Network = consensus.Testnet11().Name
	conf.FullNode.Address = "wss://127.0.0.1:58444/ws"
	conf.FullNode.RPC = "https://127.0.0.1:58555"
	return conf
}
