package types

import (
	"time"

	"go.uber.org/zap/zapcore"
)

//go:generate scalegen

// Partial is a proof submitted to a pool for credit. At most one partial is accepted per
// (plot id, signage point) pair.
type Partial struct {
	Payload            PartialPayload
	AggregateSignature Bytes96
}

// PartialPayload is the signed content of a partial.
type PartialPayload struct {
	LauncherID          Bytes32
	AuthenticationToken uint64
	ProofOfSpace        ProofOfSpace
	SPHash              Bytes32
	EndOfSubSlot        bool
	HarvesterID         Bytes32
}

// PoolState is the farmer's view of one pool. It has a single owner in the pool package;
// everybody else works on copies.
type PoolState struct {
	LauncherID                 Bytes32
	PoolURL                    string
	CurrentDifficulty          uint64
	MinimumDifficulty          uint64
	TargetPuzzleHash           Bytes32
	AuthenticationTokenTimeout uint8
	AuthTokenExpiry            time.Time
	Registered                 bool
	LastInfoRefresh            time.Time
	LastFarmerRefresh          time.Time
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *PoolState) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("launcher_id", s.LauncherID.ShortString())
	encoder.AddString("url", s.PoolURL)
	encoder.AddUint64("difficulty", s.CurrentDifficulty)
	encoder.AddUint64("min_difficulty", s.MinimumDifficulty)
	encoder.AddBool("registered", s.Registered)
	return nil
}

// PoolStats are point accounting counters for one pool.
type PoolStats struct {
	PartialsSubmitted  uint64
	PartialsAccepted   uint64
	PartialsRejected   uint64
	PartialsFailed     uint64
	PointsFound        uint64
	PointsAcknowledged uint64
}
