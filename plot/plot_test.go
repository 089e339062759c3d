package plot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/signing"
)

func testKey(tb testing.TB, b byte) *signing.PrivateKey {
	tb.Helper()
	key, err := signing.KeyFromSeed(bytes.Repeat([]byte{b}, signing.MinSeedSize))
	require.NoError(tb, err)
	return key
}

type header struct {
	k        uint8
	contract *types.Bytes32
	farmer   *signing.PrivateKey
	seed     byte
}

func (h header) build(tb testing.TB) Header {
	tb.Helper()
	farmer := h.farmer
	if farmer == nil {
		farmer = testKey(tb, 100)
	}
	local := testKey(tb, h.seed)
	hdr := Header{
		K:               h.k,
		FarmerPublicKey: farmer.PublicKey(),
		LocalSecretKey:  types.Bytes32(local.Bytes()),
	}
	if h.contract != nil {
		hdr.PoolContractPuzzleHash = h.contract
	} else {
		pool := testKey(tb, 101).PublicKey()
		hdr.PoolPublicKey = &pool
	}
	return hdr
}

func createPlot(tb testing.TB, fs afero.Fs, path string, h header) *Plot {
	tb.Helper()
	if h.k == 0 {
		h.k = MinK
	}
	p, err := Create(fs, path, h.build(tb))
	require.NoError(tb, err)
	return p
}

func TestCreateOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	contract := types.Bytes32{0xcc}
	for _, tc := range []struct {
		desc string
		h    header
	}{
		{"pool key", header{k: 10, seed: 1}},
		{"pool contract", header{k: 12, seed: 2, contract: &contract}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			path := fmt.Sprintf("/plots/%d.plot", tc.h.seed)
			created := createPlot(t, fs, path, tc.h)

			opened, err := Open(fs, path)
			require.NoError(t, err)
			require.Equal(t, created.Info(), opened.Info())
			require.Equal(t, tc.h.k, opened.Info().K)

			exists, err := afero.Exists(fs, path+".tmp")
			require.NoError(t, err)
			require.False(t, exists)

			local := testKey(t, tc.h.seed)
			plotPK, err := signing.PlotPublicKey(local.PublicKey(), testKey(t, 100).PublicKey(), tc.h.contract != nil)
			require.NoError(t, err)
			require.Equal(t, plotPK, opened.Info().PlotPublicKey)
			require.Equal(t, local.PublicKey(), opened.LocalKey().PublicKey())

			if tc.h.contract != nil {
				require.Equal(t, consensus.PlotIDFromPuzzleHash(contract, plotPK), opened.ID())
			} else {
				require.Equal(t, consensus.PlotIDFromPoolKey(*opened.Info().PoolPublicKey, plotPK), opened.ID())
			}
		})
	}
}

func TestOpenRejects(t *testing.T) {
	fs := afero.NewMemMapFs()

	t.Run("not a plot", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/junk.plot", []byte("JUNKJUNKJUNK"), 0o600))
		_, err := Open(fs, "/junk.plot")
		require.ErrorIs(t, err, ErrNotPlot)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := Open(fs, "/missing.plot")
		require.ErrorIs(t, err, types.ErrDiskIO)
	})
	t.Run("truncated", func(t *testing.T) {
		createPlot(t, fs, "/trunc.plot", header{seed: 3})
		data, err := afero.ReadFile(fs, "/trunc.plot")
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fs, "/trunc.plot", data[:len(data)-1], 0o600))
		_, err = Open(fs, "/trunc.plot")
		require.ErrorIs(t, err, ErrCorrupted)
	})
	t.Run("invalid header", func(t *testing.T) {
		hdr := header{seed: 4}.build(t)
		hdr.PoolContractPuzzleHash = &types.Bytes32{}
		_, err := Create(fs, "/both.plot", hdr)
		require.ErrorIs(t, err, ErrCorrupted)

		hdr = header{k: MinK - 1, seed: 4}.build(t)
		_, err = Create(fs, "/small.plot", hdr)
		require.ErrorIs(t, err, ErrCorrupted)
	})
}

func TestLookupAndVerify(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := createPlot(t, fs, "/a.plot", header{k: 10, seed: 1})

	var found int
	for i := 0; i < 64; i++ {
		challenge := consensus.PosChallenge(p.ID(), types.Bytes32{byte(i)}, types.Bytes32{byte(i)})
		proofs, err := p.Lookup(challenge)
		require.NoError(t, err)
		require.LessOrEqual(t, len(proofs), SlotsPerBucket)
		for _, proof := range proofs {
			quality, err := VerifyProof(p.ID(), p.Info().K, challenge, proof.Proof)
			require.NoError(t, err)
			require.Equal(t, proof.Quality, quality)

			_, err = VerifyProof(p.ID(), p.Info().K, types.Bytes32{0xff, 0xff, byte(i)}, proof.Proof)
			if challengeBucket(types.Bytes32{0xff, 0xff, byte(i)}, p.Info().K) != challengeBucket(challenge, p.Info().K) {
				require.ErrorIs(t, err, ErrInvalidProof)
			}
		}
		found += len(proofs)
	}
	require.NotZero(t, found)
}

func TestVerifyProofOfSpace(t *testing.T) {
	fs := afero.NewMemMapFs()
	contract := types.Bytes32{0xcc}
	p := createPlot(t, fs, "/a.plot", header{k: 10, seed: 1, contract: &contract})

	challengeHash, spHash := types.Bytes32{1}, types.Bytes32{2}
	var pos types.ProofOfSpace
	var want types.Bytes32
	for i := byte(0); ; i++ {
		challengeHash[1] = i
		challenge := consensus.PosChallenge(p.ID(), challengeHash, spHash)
		proofs, err := p.Lookup(challenge)
		require.NoError(t, err)
		if len(proofs) > 0 {
			pos = p.ProofOfSpace(challenge, proofs[0].Proof)
			want = proofs[0].Quality
			break
		}
	}

	plotID, quality, err := VerifyProofOfSpace(&pos, challengeHash, spHash)
	require.NoError(t, err)
	require.Equal(t, p.ID(), plotID)
	require.Equal(t, want, quality)

	_, _, err = VerifyProofOfSpace(&pos, challengeHash, types.Bytes32{3})
	require.ErrorIs(t, err, ErrInvalidProof)

	forged := pos
	forged.PlotPublicKey = types.Bytes48{1}
	_, _, err = VerifyProofOfSpace(&forged, challengeHash, spHash)
	require.ErrorIs(t, err, ErrInvalidProof)

	bad := pos
	bad.Proof = make([]byte, EntrySize)
	binary.BigEndian.PutUint64(bad.Proof, 0)
	_, _, err = VerifyProofOfSpace(&bad, challengeHash, spHash)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestLookupCorrupted(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := createPlot(t, fs, "/a.plot", header{k: MinK, seed: 1})

	data, err := afero.ReadFile(fs, "/a.plot")
	require.NoError(t, err)
	table := data[p.tableOffset:]
	for i := 0; i < len(table); i += EntrySize {
		if binary.BigEndian.Uint64(table[i:]) != 0 {
			binary.BigEndian.PutUint64(table[i:], binary.BigEndian.Uint64(table[i:])+1_000_000)
		}
	}
	require.NoError(t, afero.WriteFile(fs, "/a.plot", data, 0o600))

	var corrupted bool
	for i := 0; i < int(NumBuckets(MinK))*4 && !corrupted; i++ {
		_, err := p.Lookup(types.Bytes32{6: byte(i >> 8), 7: byte(i)})
		corrupted = err != nil
		if corrupted {
			require.ErrorIs(t, err, ErrCorrupted)
		}
	}
	require.True(t, corrupted)
}
