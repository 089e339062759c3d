package consensus

import (
	"math"
	"math/big"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/hash"
)

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// PlotFilterInput is sha256(plot_id ‖ challenge_hash ‖ sp_hash).
func PlotFilterInput(plotID, challengeHash, spHash types.Bytes32) types.Bytes32 {
	return hash.StdHash(plotID[:], challengeHash[:], spHash[:])
}

// PassesPlotFilter reports whether the first prefixBits bits of the filter input are zero.
// It is a pure function of its arguments.
func PassesPlotFilter(prefixBits uint8, plotID, challengeHash, spHash types.Bytes32) bool {
	if prefixBits == 0 {
		return true
	}
	input := PlotFilterInput(plotID, challengeHash, spHash)
	return leadingZeroBits(input[:], prefixBits)
}

func leadingZeroBits(b []byte, n uint8) bool {
	full := int(n / 8)
	if full > len(b) {
		return false
	}
	for i := 0; i < full; i++ {
		if b[i] != 0 {
			return false
		}
	}
	rem := n % 8
	if rem == 0 {
		return true
	}
	if full >= len(b) {
		return false
	}
	return b[full]>>(8-rem) == 0
}

// PosChallenge is the challenge a plot is looked up with: sha256 of the filter input.
func PosChallenge(plotID, challengeHash, spHash types.Bytes32) types.Bytes32 {
	input := PlotFilterInput(plotID, challengeHash, spHash)
	return hash.StdHash(input[:])
}

// PlotIDFromPoolKey derives the plot id of a plot bound to a pool public key.
func PlotIDFromPoolKey(poolPK, plotPK types.Bytes48) types.Bytes32 {
	return hash.StdHash(poolPK[:], plotPK[:])
}

// PlotIDFromPuzzleHash derives the plot id of a plot bound to a pool contract.
func PlotIDFromPuzzleHash(puzzleHash types.Bytes32, plotPK types.Bytes48) types.Bytes32 {
	return hash.StdHash(puzzleHash[:], plotPK[:])
}

// ExpectedPlotSize is (2k+1)·2^(k-1), the expected number of entries of a k plot.
func ExpectedPlotSize(k uint8) *big.Int {
	size := new(big.Int).Lsh(big.NewInt(1), uint(k)-1)
	return size.Mul(size, big.NewInt(2*int64(k)+1))
}

// RequiredIters converts a quality string into the number of VDF iterations the proof
// needs. Lower is better. The result is monotonic in the sp quality and at least 1.
func RequiredIters(
	c *Constants,
	quality types.Bytes32,
	k uint8,
	difficulty uint64,
	spHash types.Bytes32,
) uint64 {
	spQuality := hash.StdHash(quality[:], spHash[:])
	iters := new(big.Int).SetUint64(difficulty)
	iters.Mul(iters, c.DifficultyConstantFactor)
	iters.Mul(iters, new(big.Int).SetBytes(spQuality[:]))
	denominator := new(big.Int).Mul(two256, ExpectedPlotSize(k))
	iters.Quo(iters, denominator)
	switch {
	case !iters.IsUint64():
		return math.MaxUint64
	case iters.Sign() == 0:
		return 1
	}
	return iters.Uint64()
}

// QualifiesForBlock reports whether iterations are below the full proof threshold.
func QualifiesForBlock(c *Constants, requiredIters, subSlotIters uint64) bool {
	return requiredIters < c.SPIntervalIters(subSlotIters)
}

// QualifiesForPool reports whether iterations computed with the pool difficulty are below
// the partial threshold.
func QualifiesForPool(c *Constants, requiredIters uint64) bool {
	return requiredIters < c.PoolSPIntervalIters()
}
