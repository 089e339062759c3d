// Package signing implements BLS12-381 keys and the augmented signature scheme used by
// farmers, harvesters and pools.
package signing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/plotfarm/go-farmer/common/types"
)

// AugSchemeDST is the domain separation tag of the augmented scheme.
const AugSchemeDST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_AUG_"

const (
	// SecretKeySize is the serialized size of a secret key.
	SecretKeySize = 32
	// MinSeedSize is the minimum input keying material for key generation.
	MinSeedSize = 32
)

var (
	// ErrInvalidKey is returned for malformed key material.
	ErrInvalidKey = errors.New("invalid bls key")
	// ErrInvalidSignature is returned for malformed or non-verifying signatures.
	ErrInvalidSignature = errors.New("invalid bls signature")
)

var dst = []byte(AugSchemeDST)

// PrivateKey is a BLS secret key together with its public key.
type PrivateKey struct {
	sk *blst.SecretKey
	pk types.Bytes48
}

func fromSecret(sk *blst.SecretKey) *PrivateKey {
	var pk types.Bytes48
	copy(pk[:], new(blst.P1Affine).From(sk).Compress())
	return &PrivateKey{sk: sk, pk: pk}
}

// NewPrivateKey parses a serialized secret key.
func NewPrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != SecretKeySize {
		return nil, fmt.Errorf("%w: size %d/%d", ErrInvalidKey, len(b), SecretKeySize)
	}
	sk := new(blst.SecretKey).Deserialize(b)
	if sk == nil {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKey)
	}
	return fromSecret(sk), nil
}

// ParsePrivateKey parses a hex encoded secret key with an optional 0x prefix.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return NewPrivateKey(b)
}

// KeyFromSeed deterministically derives a key from input keying material.
func KeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) < MinSeedSize {
		return nil, fmt.Errorf("%w: seed too small (%d < %d)", ErrInvalidKey, len(seed), MinSeedSize)
	}
	sk := blst.KeyGen(seed)
	if sk == nil {
		return nil, fmt.Errorf("%w: key generation failed", ErrInvalidKey)
	}
	return fromSecret(sk), nil
}

// PublicKey returns the compressed public key.
func (k *PrivateKey) PublicKey() types.Bytes48 {
	return k.pk
}

// Bytes returns the serialized secret key.
func (k *PrivateKey) Bytes() []byte {
	return k.sk.Serialize()
}

// Sign signs msg with the augmented scheme under the key's own public key.
func (k *PrivateKey) Sign(msg []byte) types.Bytes96 {
	return k.SignPrepend(msg, k.pk)
}

// SignPrepend signs msg with the augmented scheme prefixed by prependPK instead of the
// key's own public key. Shares produced this way aggregate into a signature that verifies
// under prependPK when prependPK is the sum of the signers' public keys.
func (k *PrivateKey) SignPrepend(msg []byte, prependPK types.Bytes48) types.Bytes96 {
	sig := new(blst.P2Affine).Sign(k.sk, augment(prependPK, msg), dst)
	var out types.Bytes96
	copy(out[:], sig.Compress())
	return out
}

func augment(pk types.Bytes48, msg []byte) []byte {
	buf := make([]byte, 0, len(pk)+len(msg))
	buf = append(buf, pk[:]...)
	return append(buf, msg...)
}

func uncompressPK(pk types.Bytes48) (*blst.P1Affine, error) {
	p := new(blst.P1Affine).Uncompress(pk[:])
	if p == nil || !p.KeyValidate() {
		return nil, fmt.Errorf("%w: public key %s", ErrInvalidKey, pk.ShortString())
	}
	return p, nil
}

func uncompressSig(sig types.Bytes96) (*blst.P2Affine, error) {
	s := new(blst.P2Affine).Uncompress(sig[:])
	if s == nil {
		return nil, fmt.Errorf("%w: decompression failed", ErrInvalidSignature)
	}
	return s, nil
}

// Verify checks an augmented scheme signature of msg under pk.
func Verify(pk types.Bytes48, msg []byte, sig types.Bytes96) bool {
	p, err := uncompressPK(pk)
	if err != nil {
		return false
	}
	s, err := uncompressSig(sig)
	if err != nil {
		return false
	}
	return s.Verify(true, p, false, augment(pk, msg), dst)
}

// AggregateVerify checks an aggregate of augmented signatures where msgs[i] was signed
// under pks[i].
func AggregateVerify(pks []types.Bytes48, msgs [][]byte, sig types.Bytes96) bool {
	if len(pks) == 0 || len(pks) != len(msgs) {
		return false
	}
	s, err := uncompressSig(sig)
	if err != nil {
		return false
	}
	points := make([]*blst.P1Affine, 0, len(pks))
	augmented := make([]blst.Message, 0, len(msgs))
	for i, pk := range pks {
		p, err := uncompressPK(pk)
		if err != nil {
			return false
		}
		points = append(points, p)
		augmented = append(augmented, augment(pk, msgs[i]))
	}
	return s.AggregateVerify(true, points, false, augmented, dst)
}

// Aggregate combines signatures into one.
func Aggregate(sigs ...types.Bytes96) (types.Bytes96, error) {
	var out types.Bytes96
	if len(sigs) == 0 {
		return out, fmt.Errorf("%w: nothing to aggregate", ErrInvalidSignature)
	}
	points := make([]*blst.P2Affine, 0, len(sigs))
	for _, sig := range sigs {
		s, err := uncompressSig(sig)
		if err != nil {
			return out, err
		}
		points = append(points, s)
	}
	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(points, true) {
		return out, fmt.Errorf("%w: aggregation failed", ErrInvalidSignature)
	}
	copy(out[:], agg.ToAffine().Compress())
	return out, nil
}

// AddPublicKeys returns the point sum of public keys.
func AddPublicKeys(pks ...types.Bytes48) (types.Bytes48, error) {
	var out types.Bytes48
	if len(pks) == 0 {
		return out, fmt.Errorf("%w: no public keys", ErrInvalidKey)
	}
	points := make([]*blst.P1Affine, 0, len(pks))
	for _, pk := range pks {
		p, err := uncompressPK(pk)
		if err != nil {
			return out, err
		}
		points = append(points, p)
	}
	agg := new(blst.P1Aggregate)
	if !agg.Aggregate(points, false) {
		return out, fmt.Errorf("%w: aggregation failed", ErrInvalidKey)
	}
	copy(out[:], agg.ToAffine().Compress())
	return out, nil
}
