package types

import (
	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

//go:generate scalegen

// ProofOfSpace is a proof found in a plot for a signage point.
type ProofOfSpace struct {
	Challenge              Bytes32
	PoolPublicKey          *Bytes48
	PoolContractPuzzleHash *Bytes32
	PlotPublicKey          Bytes48
	Size                   uint8
	Proof                  []byte
}

// ProofCandidate is a proof reported for one plot at one signage point. It is consumed by
// at most one submission per destination.
type ProofCandidate struct {
	PlotID            Bytes32
	SignagePointIndex uint8
	SPHash            Bytes32
	ChallengeHash     Bytes32
	QualityString     Bytes32
	RequiredIters     uint64
	Proof             ProofOfSpace

	// HarvesterID identifies the source that holds the plot's local key share.
	HarvesterID uuid.UUID
}

// Key is the deduplication key of the candidate.
func (c *ProofCandidate) Key() CandidateKey {
	return CandidateKey{PlotID: c.PlotID, SPHash: c.SPHash, Index: c.SignagePointIndex}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c *ProofCandidate) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("plot_id", c.PlotID.ShortString())
	encoder.AddUint8("sp_index", c.SignagePointIndex)
	encoder.AddString("sp_hash", c.SPHash.ShortString())
	encoder.AddString("quality", c.QualityString.ShortString())
	encoder.AddUint64("required_iters", c.RequiredIters)
	encoder.AddString("harvester", c.HarvesterID.String())
	return nil
}

// CandidateKey identifies a (plot, signage point) pair. The sp hash disambiguates equal
// indices in different sub-slots.
type CandidateKey struct {
	PlotID Bytes32
	SPHash Bytes32
	Index  uint8
}

// PlotError is a per-plot failure reported during a scan.
type PlotError struct {
	PlotID Bytes32
	Path   string
	Err    string
}

// PoolTarget binds block rewards to a pool puzzle hash.
type PoolTarget struct {
	PuzzleHash Bytes32
	MaxHeight  uint32
}

// Bytes is the serialization signed by the pool key.
func (t PoolTarget) Bytes() []byte {
	b := make([]byte, 0, Bytes32Length+4)
	b = append(b, t.PuzzleHash[:]...)
	return append(b, byte(t.MaxHeight>>24), byte(t.MaxHeight>>16), byte(t.MaxHeight>>8), byte(t.MaxHeight))
}
