package types

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// SignagePoint is a farming challenge announced by the full node. A sub-slot carries
// NumSPsSubSlot signage points indexed from 0.
type SignagePoint struct {
	Index            uint8
	ChallengeHash    Bytes32
	ChallengeChainSP Bytes32
	RewardChainSP    Bytes32
	Difficulty       uint64
	SubSlotIters     uint64
	PeakHeight       uint32

	// Received is set by the farmer when the signage point arrives.
	Received time.Time
	// Deadline is set by the scheduler when a proof window is opened.
	Deadline time.Time
}

// SPHash is the hash proofs are bound to. For index 0 this equals the challenge hash.
func (sp *SignagePoint) SPHash() Bytes32 {
	if sp.Index == 0 {
		return sp.ChallengeHash
	}
	return sp.ChallengeChainSP
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (sp *SignagePoint) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint8("index", sp.Index)
	encoder.AddString("challenge", sp.ChallengeHash.ShortString())
	encoder.AddString("sp_hash", sp.SPHash().ShortString())
	encoder.AddUint64("difficulty", sp.Difficulty)
	encoder.AddUint64("sub_slot_iters", sp.SubSlotIters)
	encoder.AddUint32("peak_height", sp.PeakHeight)
	return nil
}

// WindowState is the state of the proof collection window opened for a signage point.
type WindowState uint8

const (
	// WindowIdle means no signage point has been accepted yet.
	WindowIdle WindowState = iota
	// WindowAwaitingProofs means the challenge was broadcast and reports are being collected.
	WindowAwaitingProofs
	// WindowSubmitted means every source reported before the deadline.
	WindowSubmitted
	// WindowExpired means the deadline fired or the window was superseded.
	WindowExpired
)

func (s WindowState) String() string {
	switch s {
	case WindowIdle:
		return "idle"
	case WindowAwaitingProofs:
		return "awaiting_proofs"
	case WindowSubmitted:
		return "submitted"
	case WindowExpired:
		return "expired"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s WindowState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Peak is the newest block known to the full node.
type Peak struct {
	Height     uint32
	Weight     uint64
	HeaderHash Bytes32
}
