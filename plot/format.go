// Package plot implements the plot file format, proof lookups and the set of plots a
// harvester farms.
//
// A plot file starts with a scale encoded header followed by a table of buckets. Each
// bucket holds up to SlotsPerBucket 8-byte x-values whose F value maps into the bucket. A
// challenge selects one bucket and every x-value in it is a proof.
package plot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/hash"
	"github.com/plotfarm/go-farmer/signing"
)

const (
	// Magic starts every plot file.
	Magic = "PLOT"
	// Version of the file format.
	Version = 1
	// Extension of plot files.
	Extension = ".plot"

	// SlotsPerBucket bounds the number of proofs a plot yields for one challenge.
	SlotsPerBucket = 4
	// EntrySize is the size of one x-value.
	EntrySize = 8

	MinK = 8
	MaxK = 50
)

var (
	// ErrNotPlot is returned for files without the plot magic.
	ErrNotPlot = errors.New("not a plot file")
	// ErrCorrupted is returned when plot contents are inconsistent.
	ErrCorrupted = errors.New("plot corrupted")
	// ErrInvalidProof is returned when a proof does not verify.
	ErrInvalidProof = errors.New("invalid proof of space")
)

// BucketBits is the number of challenge bits selecting a bucket in a k plot.
func BucketBits(k uint8) uint8 {
	return k / 2
}

// NumBuckets is the number of buckets in a k plot.
func NumBuckets(k uint8) uint64 {
	return 1 << BucketBits(k)
}

// TableSize is the size of the bucket table of a k plot.
func TableSize(k uint8) int64 {
	return int64(NumBuckets(k)) * SlotsPerBucket * EntrySize
}

// Header is the plot file header.
type Header struct {
	K uint8
	// exactly one of PoolPublicKey and PoolContractPuzzleHash is set.
	PoolPublicKey          *types.Bytes48
	PoolContractPuzzleHash *types.Bytes32
	FarmerPublicKey        types.Bytes48
	LocalSecretKey         types.Bytes32
}

// EncodeScale implements scale.Encodable. Magic and version are written first.
func (h *Header) EncodeScale(enc *scale.Encoder) (total int, err error) {
	n, err := scale.EncodeByteArray(enc, []byte(Magic))
	if err != nil {
		return total, err
	}
	total += n
	if n, err = scale.EncodeCompact16(enc, Version); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.EncodeCompact8(enc, h.K); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.EncodeOption(enc, h.PoolPublicKey); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.EncodeOption(enc, h.PoolContractPuzzleHash); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.EncodeByteArray(enc, h.FarmerPublicKey[:]); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.EncodeByteArray(enc, h.LocalSecretKey[:]); err != nil {
		return total, err
	}
	total += n
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (h *Header) DecodeScale(dec *scale.Decoder) (total int, err error) {
	magic := make([]byte, len(Magic))
	n, err := scale.DecodeByteArray(dec, magic)
	if err != nil {
		return total, err
	}
	total += n
	if string(magic) != Magic {
		return total, ErrNotPlot
	}
	version, n, err := scale.DecodeCompact16(dec)
	if err != nil {
		return total, err
	}
	total += n
	if version != Version {
		return total, fmt.Errorf("%w: unsupported version %d", ErrCorrupted, version)
	}
	if h.K, n, err = scale.DecodeCompact8(dec); err != nil {
		return total, err
	}
	total += n
	if h.PoolPublicKey, n, err = scale.DecodeOption[types.Bytes48](dec); err != nil {
		return total, err
	}
	total += n
	if h.PoolContractPuzzleHash, n, err = scale.DecodeOption[types.Bytes32](dec); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.DecodeByteArray(dec, h.FarmerPublicKey[:]); err != nil {
		return total, err
	}
	total += n
	if n, err = scale.DecodeByteArray(dec, h.LocalSecretKey[:]); err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func (h *Header) validate() error {
	if h.K < MinK || h.K > MaxK {
		return fmt.Errorf("%w: k %d out of range [%d, %d]", ErrCorrupted, h.K, MinK, MaxK)
	}
	if (h.PoolPublicKey == nil) == (h.PoolContractPuzzleHash == nil) {
		return fmt.Errorf("%w: exactly one of pool key and pool contract must be set", ErrCorrupted)
	}
	return nil
}

// Identity derives the local key, plot public key and plot id from the header.
func (h *Header) Identity() (*signing.PrivateKey, types.Bytes48, types.Bytes32, error) {
	local, err := signing.NewPrivateKey(h.LocalSecretKey[:])
	if err != nil {
		return nil, types.Bytes48{}, types.Bytes32{}, fmt.Errorf("%w: local key: %w", ErrCorrupted, err)
	}
	plotPK, err := signing.PlotPublicKey(local.PublicKey(), h.FarmerPublicKey, h.PoolContractPuzzleHash != nil)
	if err != nil {
		return nil, types.Bytes48{}, types.Bytes32{}, fmt.Errorf("%w: plot key: %w", ErrCorrupted, err)
	}
	var id types.Bytes32
	if h.PoolContractPuzzleHash != nil {
		id = consensus.PlotIDFromPuzzleHash(*h.PoolContractPuzzleHash, plotPK)
	} else {
		id = consensus.PlotIDFromPoolKey(*h.PoolPublicKey, plotPK)
	}
	return local, plotPK, id, nil
}

func fValue(plotID types.Bytes32, x uint64) uint64 {
	var buf [EntrySize]byte
	binary.BigEndian.PutUint64(buf[:], x)
	h := hash.StdHash(plotID[:], buf[:])
	return binary.BigEndian.Uint64(h[:8])
}

func bucketOf(v uint64, k uint8) uint64 {
	return v & (NumBuckets(k) - 1)
}

func challengeBucket(challenge types.Bytes32, k uint8) uint64 {
	return bucketOf(binary.BigEndian.Uint64(challenge[:8]), k)
}

// QualityString of a proof for a challenge.
func QualityString(challenge types.Bytes32, proof []byte) types.Bytes32 {
	return hash.StdHash(challenge[:], proof)
}

// VerifyProof checks that proof is an x-value of plotID for challenge and returns its
// quality string.
func VerifyProof(plotID types.Bytes32, k uint8, challenge types.Bytes32, proof []byte) (types.Bytes32, error) {
	if k < MinK || k > MaxK {
		return types.Bytes32{}, fmt.Errorf("%w: k %d out of range", ErrInvalidProof, k)
	}
	if len(proof) != EntrySize {
		return types.Bytes32{}, fmt.Errorf("%w: proof size %d", ErrInvalidProof, len(proof))
	}
	x := binary.BigEndian.Uint64(proof)
	if x == 0 || bucketOf(fValue(plotID, x), k) != challengeBucket(challenge, k) {
		return types.Bytes32{}, ErrInvalidProof
	}
	return QualityString(challenge, proof), nil
}

// ProofPlotID derives the plot id a proof of space claims to belong to.
func ProofPlotID(pos *types.ProofOfSpace) (types.Bytes32, error) {
	switch {
	case pos.PoolPublicKey != nil && pos.PoolContractPuzzleHash == nil:
		return consensus.PlotIDFromPoolKey(*pos.PoolPublicKey, pos.PlotPublicKey), nil
	case pos.PoolContractPuzzleHash != nil && pos.PoolPublicKey == nil:
		return consensus.PlotIDFromPuzzleHash(*pos.PoolContractPuzzleHash, pos.PlotPublicKey), nil
	}
	return types.Bytes32{}, fmt.Errorf("%w: exactly one of pool key and pool contract must be set", ErrInvalidProof)
}

// VerifyProofOfSpace checks a complete proof of space against the signage point it was
// found for and returns the plot id and quality string.
func VerifyProofOfSpace(pos *types.ProofOfSpace, challengeHash, spHash types.Bytes32) (types.Bytes32, types.Bytes32, error) {
	plotID, err := ProofPlotID(pos)
	if err != nil {
		return types.Bytes32{}, types.Bytes32{}, err
	}
	if pos.Challenge != consensus.PosChallenge(plotID, challengeHash, spHash) {
		return plotID, types.Bytes32{}, fmt.Errorf("%w: challenge mismatch", ErrInvalidProof)
	}
	quality, err := VerifyProof(plotID, pos.Size, pos.Challenge, pos.Proof)
	if err != nil {
		return plotID, types.Bytes32{}, err
	}
	return plotID, quality, nil
}
