package signing

import (
	"errors"
	"fmt"

	"github.com/plotfarm/go-farmer/common/types"
)

// ErrKeyNotFound is returned when no secret key is loaded for a public key.
var ErrKeyNotFound = errors.New("secret key not found")

// KeySet is the key material of one farmer identity as found in configuration.
type KeySet struct {
	Farmer     *PrivateKey
	Pool       *PrivateKey
	Owner      *PrivateKey
	Auth       *PrivateKey
	LauncherID *types.Bytes32
}

// Keychain indexes secret keys by their public key. It is immutable once built and safe
// for concurrent use.
type Keychain struct {
	farmer map[types.Bytes48]*PrivateKey
	pool   map[types.Bytes48]*PrivateKey
	owner  map[types.Bytes48]*PrivateKey
	// auth keys are indexed by owner public key.
	auth     map[types.Bytes48]*PrivateKey
	launcher map[types.Bytes32]types.Bytes48
	farmers  []types.Bytes48
	pools    []types.Bytes48
}

// NewKeychain builds a keychain. Every set needs a farmer key; an auth key requires an
// owner key.
func NewKeychain(sets ...KeySet) (*Keychain, error) {
	kc := &Keychain{
		farmer:   make(map[types.Bytes48]*PrivateKey),
		pool:     make(map[types.Bytes48]*PrivateKey),
		owner:    make(map[types.Bytes48]*PrivateKey),
		auth:     make(map[types.Bytes48]*PrivateKey),
		launcher: make(map[types.Bytes32]types.Bytes48),
	}
	for i, set := range sets {
		if set.Farmer == nil {
			return nil, fmt.Errorf("key set %d: %w: missing farmer key", i, ErrInvalidKey)
		}
		if _, ok := kc.farmer[set.Farmer.PublicKey()]; !ok {
			kc.farmers = append(kc.farmers, set.Farmer.PublicKey())
		}
		kc.farmer[set.Farmer.PublicKey()] = set.Farmer
		if set.Pool != nil {
			if _, ok := kc.pool[set.Pool.PublicKey()]; !ok {
				kc.pools = append(kc.pools, set.Pool.PublicKey())
			}
			kc.pool[set.Pool.PublicKey()] = set.Pool
		}
		if set.Auth != nil && set.Owner == nil {
			return nil, fmt.Errorf("key set %d: %w: auth key without owner key", i, ErrInvalidKey)
		}
		if set.Owner != nil {
			owner := set.Owner.PublicKey()
			kc.owner[owner] = set.Owner
			if set.Auth != nil {
				kc.auth[owner] = set.Auth
			}
			if set.LauncherID != nil {
				kc.launcher[*set.LauncherID] = owner
			}
		}
	}
	return kc, nil
}

// FarmerKeys returns the farmer public keys in load order.
func (kc *Keychain) FarmerKeys() []types.Bytes48 {
	return append([]types.Bytes48(nil), kc.farmers...)
}

// PoolKeys returns the pool public keys in load order.
func (kc *Keychain) PoolKeys() []types.Bytes48 {
	return append([]types.Bytes48(nil), kc.pools...)
}

// Farmer returns the farmer secret key for pk.
func (kc *Keychain) Farmer(pk types.Bytes48) (*PrivateKey, error) {
	return lookup(kc.farmer, pk, "farmer")
}

// Pool returns the pool secret key for pk.
func (kc *Keychain) Pool(pk types.Bytes48) (*PrivateKey, error) {
	return lookup(kc.pool, pk, "pool")
}

// Owner returns the singleton owner secret key for pk.
func (kc *Keychain) Owner(pk types.Bytes48) (*PrivateKey, error) {
	return lookup(kc.owner, pk, "owner")
}

// Auth returns the pool authentication key registered for the owner public key.
func (kc *Keychain) Auth(owner types.Bytes48) (*PrivateKey, error) {
	return lookup(kc.auth, owner, "auth")
}

// OwnerForLauncher returns the owner public key configured for a pool launcher id.
func (kc *Keychain) OwnerForLauncher(launcherID types.Bytes32) (types.Bytes48, bool) {
	pk, ok := kc.launcher[launcherID]
	return pk, ok
}

func lookup(m map[types.Bytes48]*PrivateKey, pk types.Bytes48, kind string) (*PrivateKey, error) {
	sk, ok := m[pk]
	if !ok {
		return nil, fmt.Errorf("%w: %s key %s", ErrKeyNotFound, kind, pk.ShortString())
	}
	return sk, nil
}
