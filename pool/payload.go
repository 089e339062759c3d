package pool

import (
	"github.com/plotfarm/go-farmer/common/types"
)

//go:generate scalegen

// AuthenticationPayload is signed with the authentication key for GET requests.
type AuthenticationPayload struct {
	MethodName          string `scale:"max=32"`
	LauncherID          types.Bytes32
	TargetPuzzleHash    types.Bytes32
	AuthenticationToken uint64
}

// FarmerPayload registers a farmer with a pool. It is signed with the owner key.
type FarmerPayload struct {
	LauncherID              types.Bytes32
	AuthenticationToken     uint64
	AuthenticationPublicKey types.Bytes48
	PayoutInstructions      types.Bytes32
	// SuggestedDifficulty zero leaves the choice to the pool.
	SuggestedDifficulty uint64
}
