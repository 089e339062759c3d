// Package plottest writes small plot fixtures for tests of the packages farming them.
package plottest

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/signing"
)

// Key derives a deterministic key from a single byte.
func Key(tb testing.TB, b byte) *signing.PrivateKey {
	tb.Helper()
	key, err := signing.KeyFromSeed(bytes.Repeat([]byte{b}, signing.MinSeedSize))
	require.NoError(tb, err)
	return key
}

// Options of a plot fixture. Zero values select k 8, the farmer key of Key(100) and the
// pool key of Key(101).
type Options struct {
	K        uint8
	Seed     byte
	Farmer   *signing.PrivateKey
	Pool     *signing.PrivateKey
	Contract *types.Bytes32
}

// Create writes a plot to path.
func Create(tb testing.TB, fs afero.Fs, path string, opts Options) *plot.Plot {
	tb.Helper()
	if opts.K == 0 {
		opts.K = plot.MinK
	}
	if opts.Farmer == nil {
		opts.Farmer = Key(tb, 100)
	}
	hdr := plot.Header{
		K:               opts.K,
		FarmerPublicKey: opts.Farmer.PublicKey(),
		LocalSecretKey:  types.Bytes32(Key(tb, opts.Seed).Bytes()),
	}
	if opts.Contract != nil {
		hdr.PoolContractPuzzleHash = opts.Contract
	} else {
		pool := opts.Pool
		if pool == nil {
			pool = Key(tb, 101)
		}
		pk := pool.PublicKey()
		hdr.PoolPublicKey = &pk
	}
	p, err := plot.Create(fs, path, hdr)
	require.NoError(tb, err)
	return p
}
