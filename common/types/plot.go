package types

import (
	"go.uber.org/zap/zapcore"
)

//go:generate scalegen

// FarmingMode decides where proofs of a plot are submitted.
type FarmingMode uint8

const (
	// FarmingSolo plots only produce full proofs for the network.
	FarmingSolo FarmingMode = iota
	// FarmingPool plots produce partials for a pool and full proofs when they qualify.
	FarmingPool
)

func (m FarmingMode) String() string {
	if m == FarmingPool {
		return "pool"
	}
	return "solo"
}

// PlotInfo describes a plot file known to a harvester. It is immutable once loaded.
type PlotInfo struct {
	PlotID Bytes32
	K      uint8
	Path   string
	Size   int64
	// exactly one of PoolPublicKey and PoolContractPuzzleHash is set.
	PoolPublicKey          *Bytes48
	PoolContractPuzzleHash *Bytes32
	PlotPublicKey          Bytes48
	FarmerPublicKey        Bytes48
	LocalPublicKey         Bytes48
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (p *PlotInfo) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("plot_id", p.PlotID.ShortString())
	encoder.AddUint8("k", p.K)
	encoder.AddString("path", p.Path)
	if p.PoolContractPuzzleHash != nil {
		encoder.AddString("pool_contract", p.PoolContractPuzzleHash.ShortString())
	}
	return nil
}

// PlotSummary is the part of PlotInfo reported by harvesters in their inventory.
type PlotSummary struct {
	PlotID                 Bytes32
	K                      uint8
	PoolPublicKey          *Bytes48
	PoolContractPuzzleHash *Bytes32
	PlotPublicKey          Bytes48
}
