package hash

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
)

func TestStdHashMatchesSha256(t *testing.T) {
	a, b := []byte("plot"), []byte("challenge")
	expected := sha256.Sum256(append(append([]byte{}, a...), b...))
	require.Equal(t, types.Bytes32(expected), StdHash(a, b))
}

func TestFingerprint(t *testing.T) {
	ids := []types.Bytes32{{1}, {2}, {3}}
	require.Equal(t, Fingerprint(ids), Fingerprint(ids))
	require.NotEqual(t, Fingerprint(ids), Fingerprint(ids[:2]))
	require.NotEqual(t, Fingerprint(ids), Fingerprint([]types.Bytes32{{3}, {2}, {1}}))
}
