package presets

import (
	"github.com/plotfarm/go-farmer/config"
	"github.com/plotfarm/go-farmer/consensus"
)

func init() {
	register(consensus.Mainnet().Name, config.DefaultConfig())
}
