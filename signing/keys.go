package signing

import (
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/hash"
)

// TaprootKey derives the taproot key that pool-contract plots add to their plot key.
func TaprootKey(localPK, farmerPK types.Bytes48) (*PrivateKey, error) {
	sum, err := AddPublicKeys(localPK, farmerPK)
	if err != nil {
		return nil, err
	}
	seed := hash.StdHash(sum[:], localPK[:], farmerPK[:])
	return KeyFromSeed(seed[:])
}

// PlotPublicKey is local_pk + farmer_pk, plus the taproot key for pool-contract plots.
func PlotPublicKey(localPK, farmerPK types.Bytes48, includeTaproot bool) (types.Bytes48, error) {
	if !includeTaproot {
		return AddPublicKeys(localPK, farmerPK)
	}
	taproot, err := TaprootKey(localPK, farmerPK)
	if err != nil {
		return types.Bytes48{}, err
	}
	return AddPublicKeys(localPK, farmerPK, taproot.PublicKey())
}
