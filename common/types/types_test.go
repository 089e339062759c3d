package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
)

func TestBytes32Text(t *testing.T) {
	h := types.Bytes32{0xab, 0xcd}
	require.Equal(t, "abcd0", h.ShortString())

	text, err := h.MarshalText()
	require.NoError(t, err)

	var got types.Bytes32
	require.NoError(t, got.UnmarshalText(text))
	require.Equal(t, h, got)

	parsed, err := types.HexToBytes32(h.String()[2:])
	require.NoError(t, err)
	require.Equal(t, h, parsed)

	_, err = types.HexToBytes32("0x1234")
	require.Error(t, err)
	_, err = types.HexToBytes48("zz")
	require.Error(t, err)
}

func TestBytesToBytes32(t *testing.T) {
	require.Equal(t, types.Bytes32{31: 1}, types.BytesToBytes32([]byte{1}))
	long := make([]byte, 40)
	long[39] = 7
	require.Equal(t, types.Bytes32{31: 7}, types.BytesToBytes32(long))
}

func TestSPHash(t *testing.T) {
	sp := types.SignagePoint{ChallengeHash: types.Bytes32{1}, ChallengeChainSP: types.Bytes32{2}}
	require.Equal(t, sp.ChallengeHash, sp.SPHash())
	sp.Index = 3
	require.Equal(t, sp.ChallengeChainSP, sp.SPHash())
}

func TestAddressToPuzzleHash(t *testing.T) {
	var want types.Bytes32
	for i := range want {
		want[i] = byte(i)
	}
	const addr = "xch1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnzs23v9ccrydpk8qarc0srg6dkm"

	ph, err := types.AddressToPuzzleHash(addr, "xch")
	require.NoError(t, err)
	require.Equal(t, want, ph)

	ph, err = types.AddressToPuzzleHash(addr, "")
	require.NoError(t, err)
	require.Equal(t, want, ph)

	ph, err = types.AddressToPuzzleHash(want.String(), "xch")
	require.NoError(t, err)
	require.Equal(t, want, ph)

	_, err = types.AddressToPuzzleHash(addr, "txch")
	require.ErrorIs(t, err, types.ErrUnsupportedNetwork)

	_, err = types.AddressToPuzzleHash(addr[:len(addr)-1]+"q", "xch")
	require.ErrorIs(t, err, types.ErrDecodeBech32)

	_, err = types.AddressToPuzzleHash("xch1qqqq", "xch")
	require.ErrorIs(t, err, types.ErrDecodeBech32)
}

func TestProofOfSpaceCodec(t *testing.T) {
	pk := types.Bytes48{4}
	pos := types.ProofOfSpace{
		Challenge:     types.Bytes32{1},
		PoolPublicKey: &pk,
		PlotPublicKey: types.Bytes48{2},
		Size:          32,
		Proof:         []byte{1, 2, 3},
	}
	buf, err := codec.Encode(&pos)
	require.NoError(t, err)

	var decoded types.ProofOfSpace
	require.NoError(t, codec.Decode(buf, &decoded))
	require.Equal(t, pos, decoded)
	require.Nil(t, decoded.PoolContractPuzzleHash)
}

func TestPoolTargetBytes(t *testing.T) {
	target := types.PoolTarget{PuzzleHash: types.Bytes32{9}, MaxHeight: 0x01020304}
	b := target.Bytes()
	require.Len(t, b, 36)
	require.Equal(t, []byte{1, 2, 3, 4}, b[32:])
}

func TestWindowStateString(t *testing.T) {
	require.Equal(t, "awaiting_proofs", types.WindowAwaitingProofs.String())
	require.Equal(t, "pool", types.FarmingPool.String())
}
