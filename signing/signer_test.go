package signing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plotfarm/go-farmer/common/types"
)

func testKey(tb testing.TB, b byte) *PrivateKey {
	tb.Helper()
	key, err := KeyFromSeed(bytes.Repeat([]byte{b}, MinSeedSize))
	require.NoError(tb, err)
	return key
}

func TestPrivateKey(t *testing.T) {
	t.Run("seed too small", func(t *testing.T) {
		_, err := KeyFromSeed([]byte{1, 2, 3})
		require.ErrorIs(t, err, ErrInvalidKey)
	})
	t.Run("wrong size", func(t *testing.T) {
		_, err := NewPrivateKey(make([]byte, 31))
		require.ErrorIs(t, err, ErrInvalidKey)
	})
	t.Run("roundtrip", func(t *testing.T) {
		key := testKey(t, 1)
		parsed, err := NewPrivateKey(key.Bytes())
		require.NoError(t, err)
		require.Equal(t, key.PublicKey(), parsed.PublicKey())

		parsed, err = ParsePrivateKey(types.Bytes32(key.Bytes()).String())
		require.NoError(t, err)
		require.Equal(t, key.PublicKey(), parsed.PublicKey())
	})
	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, testKey(t, 7).PublicKey(), testKey(t, 7).PublicKey())
		require.NotEqual(t, testKey(t, 7).PublicKey(), testKey(t, 8).PublicKey())
	})
}

func TestSignVerify(t *testing.T) {
	key := testKey(t, 1)
	msg := []byte("message")
	sig := key.Sign(msg)
	require.True(t, Verify(key.PublicKey(), msg, sig))
	require.False(t, Verify(key.PublicKey(), []byte("other"), sig))
	require.False(t, Verify(testKey(t, 2).PublicKey(), msg, sig))
	require.False(t, Verify(key.PublicKey(), msg, types.Bytes96{}))
}

func TestTwoPartySignature(t *testing.T) {
	local := testKey(t, 1)
	farmer := testKey(t, 2)
	msg := []byte("payload")

	for _, taproot := range []bool{false, true} {
		plotPK, err := PlotPublicKey(local.PublicKey(), farmer.PublicKey(), taproot)
		require.NoError(t, err)

		shares := []types.Bytes96{
			local.SignPrepend(msg, plotPK),
			farmer.SignPrepend(msg, plotPK),
		}
		if taproot {
			tk, err := TaprootKey(local.PublicKey(), farmer.PublicKey())
			require.NoError(t, err)
			shares = append(shares, tk.SignPrepend(msg, plotPK))
		}
		agg, err := Aggregate(shares...)
		require.NoError(t, err)
		require.True(t, Verify(plotPK, msg, agg), "taproot=%v", taproot)

		partial, err := Aggregate(shares[:1]...)
		require.NoError(t, err)
		require.False(t, Verify(plotPK, msg, partial))
	}
}

func TestAggregateVerify(t *testing.T) {
	a, b := testKey(t, 1), testKey(t, 2)
	msg := []byte("payload")
	agg, err := Aggregate(a.Sign(msg), b.Sign(msg))
	require.NoError(t, err)

	pks := []types.Bytes48{a.PublicKey(), b.PublicKey()}
	require.True(t, AggregateVerify(pks, [][]byte{msg, msg}, agg))
	require.False(t, AggregateVerify(pks, [][]byte{msg, []byte("x")}, agg))
	require.False(t, AggregateVerify(pks[:1], [][]byte{msg}, agg))
	require.False(t, AggregateVerify(pks, [][]byte{msg}, agg))

	_, err = Aggregate()
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestKeychain(t *testing.T) {
	farmer, pool, owner, auth := testKey(t, 1), testKey(t, 2), testKey(t, 3), testKey(t, 4)
	launcher := types.Bytes32{0xaa}

	kc, err := NewKeychain(KeySet{Farmer: farmer, Pool: pool, Owner: owner, Auth: auth, LauncherID: &launcher})
	require.NoError(t, err)
	require.Equal(t, []types.Bytes48{farmer.PublicKey()}, kc.FarmerKeys())
	require.Equal(t, []types.Bytes48{pool.PublicKey()}, kc.PoolKeys())

	got, err := kc.Auth(owner.PublicKey())
	require.NoError(t, err)
	require.Equal(t, auth.PublicKey(), got.PublicKey())

	ownerPK, ok := kc.OwnerForLauncher(launcher)
	require.True(t, ok)
	require.Equal(t, owner.PublicKey(), ownerPK)

	_, err = kc.Farmer(pool.PublicKey())
	require.ErrorIs(t, err, ErrKeyNotFound)

	_, err = NewKeychain(KeySet{})
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewKeychain(KeySet{Farmer: farmer, Auth: auth})
	require.ErrorIs(t, err, ErrInvalidKey)
}
