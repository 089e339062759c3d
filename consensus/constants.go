// Package consensus holds the consensus parameters of the supported networks and the
// proof-of-space arithmetic that depends on them.
//
// The mainnet and testnet11 presets carry the consensus parameters of the networks of
// the same name. Only those parameters are shared: the plot file format and the
// websocket protocol between farmer, harvester and full node are specific to this
// project, so neither the plots nor the peers of those networks interoperate with it.
package consensus

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/plotfarm/go-farmer/common/types"
)

// ErrUnknownNetwork is returned for a network name without registered constants.
var ErrUnknownNetwork = errors.New("unknown network")

// Constants are the consensus parameters the farmer depends on. Values must match the
// network exactly: a wrong constant silently produces wrong eligibility decisions.
type Constants struct {
	Name string
	// AddressPrefix is the bech32m human readable part of payout addresses.
	AddressPrefix string

	GenesisChallenge types.Bytes32

	// DifficultyConstantFactor scales difficulty into iterations.
	DifficultyConstantFactor *big.Int
	// NumSPsSubSlot is the number of signage points per sub-slot.
	NumSPsSubSlot uint8
	// NumSPIntervalsExtra is the number of signage point intervals a proof may lag.
	NumSPIntervalsExtra uint8
	// NumberZeroBitsPlotFilter is the plot filter prefix length before any reduction.
	NumberZeroBitsPlotFilter uint8
	SubSlotTimeTarget        time.Duration

	MinPlotSize uint8
	MaxPlotSize uint8

	// PoolSubSlotIters is the sub-slot iterations used for partial thresholds.
	PoolSubSlotIters uint64

	HardForkHeight      uint32
	PlotFilter128Height uint32
	PlotFilter64Height  uint32
	PlotFilter32Height  uint32
}

// SPIntervalIters is the full proof threshold: sub_slot_iters / NumSPsSubSlot.
func (c *Constants) SPIntervalIters(subSlotIters uint64) uint64 {
	return subSlotIters / uint64(c.NumSPsSubSlot)
}

// PoolSPIntervalIters is the partial threshold.
func (c *Constants) PoolSPIntervalIters() uint64 {
	return c.SPIntervalIters(c.PoolSubSlotIters)
}

// SPInterval is the expected wall time between two signage points.
func (c *Constants) SPInterval() time.Duration {
	return c.SubSlotTimeTarget / time.Duration(c.NumSPsSubSlot)
}

// PrefixBits returns the plot filter size at the given peak height. The filter is
// halved at each scheduled reduction height.
func (c *Constants) PrefixBits(height uint32) uint8 {
	bits := int(c.NumberZeroBitsPlotFilter)
	switch {
	case height >= c.PlotFilter32Height:
		bits -= 4
	case height >= c.PlotFilter64Height:
		bits -= 3
	case height >= c.PlotFilter128Height:
		bits -= 2
	case height >= c.HardForkHeight:
		bits--
	}
	return uint8(max(bits, 0))
}

var networks = map[string]*Constants{}

func register(c *Constants) {
	networks[c.Name] = c
}

// Get returns the constants of a named network.
func Get(name string) (*Constants, error) {
	c, ok := networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (options %v)", ErrUnknownNetwork, name, Options())
	}
	return c, nil
}

// Options lists registered network names.
func Options() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mustHex(s string) types.Bytes32 {
	h, err := types.HexToBytes32(s)
	if err != nil {
		panic(err)
	}
	return h
}

func init() {
	register(Mainnet())
	register(Testnet11())
	register(Simnet())
}

// Mainnet returns the main network constants. Plots and peers must use this project's
// own plot format and wire protocol.
func Mainnet() *Constants {
	return &Constants{
		Name:                     "mainnet",
		AddressPrefix:            "xch",
		GenesisChallenge:         mustHex("ccd5bb71183532bff220ba46c268991a3ff07eb358e8255a65c30a2dce0e5fbb"),
		DifficultyConstantFactor: new(big.Int).Lsh(big.NewInt(1), 67),
		NumSPsSubSlot:            64,
		NumSPIntervalsExtra:      3,
		NumberZeroBitsPlotFilter: 9,
		SubSlotTimeTarget:        600 * time.Second,
		MinPlotSize:              32,
		MaxPlotSize:              50,
		PoolSubSlotIters:         37_600_000_000,
		HardForkHeight:           5_496_000,
		PlotFilter128Height:      10_542_000,
		PlotFilter64Height:       15_592_000,
		PlotFilter32Height:       20_643_000,
	}
}

// Testnet11 returns the constants of testnet11, with the same caveat as Mainnet.
func Testnet11() *Constants {
	c := Mainnet()
	c.Name = "testnet11"
	c.AddressPrefix = "txch"
	c.GenesisChallenge = mustHex("37a90eb5185a9c4439a91ddc98bbadce7b4feba060d50116a067de66bf236615")
	c.DifficultyConstantFactor = big.NewInt(10_052_721_566_054)
	c.MinPlotSize = 18
	c.HardForkHeight = 0
	c.PlotFilter128Height = 6_029_568
	c.PlotFilter64Height = 11_075_328
	c.PlotFilter32Height = 16_121_088
	return c
}

// Simnet is a local network for development and tests: small plots, a 1-bit filter and
// a fast sub-slot.
func Simnet() *Constants {
	c := Mainnet()
	c.Name = "simnet"
	c.AddressPrefix = "txch"
	c.GenesisChallenge = types.Bytes32{}
	c.DifficultyConstantFactor = new(big.Int).Lsh(big.NewInt(1), 24)
	c.NumberZeroBitsPlotFilter = 1
	c.SubSlotTimeTarget = 64 * time.Second
	c.MinPlotSize = 8
	c.HardForkHeight = 1 << 31
	c.PlotFilter128Height = 1 << 31
	c.PlotFilter64Height = 1 << 31
	c.PlotFilter32Height = 1 << 31
	return c
}
