package farmer

import (
	"context"

	"github.com/google/uuid"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

//go:generate mockgen -typed -package=farmer -destination=./mocks.go -source=./interface.go

// ProofSource is a harvester the farmer challenges, either in process or remote.
type ProofSource interface {
	ID() uuid.UUID
	Name() string
	State() supervisor.State
	// Plots is the number of plots the source last reported.
	Plots() int
	// Challenge asks the source for proofs of a signage point. Proofs are passed to emit as
	// they are found. Challenge returns once the source closed its part of the window.
	Challenge(
		ctx context.Context,
		sp *wire.NewSignagePointHarvester,
		emit func(*wire.NewProofOfSpace),
	) (*wire.FarmingInfo, error)
	// SignatureShares returns the local key shares of a plot for the requested messages.
	SignatureShares(ctx context.Context, req *wire.RequestSignatures) (*wire.RespondSignatures, error)
}

// PoolMember is the farmer's membership in one pool.
type PoolMember interface {
	LauncherID() types.Bytes32
	ContractPuzzleHash() types.Bytes32
	Ready() bool
	State() types.PoolState
	Stats() types.PoolStats
	AuthenticationToken() uint64
	AuthKey() *signing.PrivateKey
	SubmitPartial(ctx context.Context, partial *types.Partial) (pool.Outcome, error)
	Run(ctx context.Context) error
}

// FullNode accepts full proofs.
type FullNode interface {
	DeclareProofOfSpace(ctx context.Context, decl *wire.DeclareProofOfSpace) error
	Run(ctx context.Context) error
}
