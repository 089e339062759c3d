// Package wire defines the messages exchanged between farmers, harvesters and full
// nodes and the websocket connection that carries them.
package wire

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/plotfarm/go-farmer/common/types"
)

//go:generate scalegen

// ProtocolVersion must be equal on both ends of a connection.
const ProtocolVersion = 1

// NodeType identifies the role of a peer.
type NodeType uint8

const (
	NodeFullNode NodeType = iota + 1
	NodeFarmer
	NodeHarvester
)

func (t NodeType) String() string {
	switch t {
	case NodeFullNode:
		return "full_node"
	case NodeFarmer:
		return "farmer"
	case NodeHarvester:
		return "harvester"
	}
	return fmt.Sprintf("node(%d)", uint8(t))
}

// MessageType tags the payload of a frame.
type MessageType uint8

const (
	MsgHandshake MessageType = iota + 1
	MsgError

	// farmer <-> harvester
	MsgNewSignagePointHarvester
	MsgNewProofOfSpace
	MsgRequestSignatures
	MsgRespondSignatures
	MsgRequestPlotInventory
	MsgPlotInventory
	MsgFarmingInfo

	// full node <-> farmer
	MsgNewSignagePoint
	MsgNewPeak
	MsgDeclareProofOfSpace
	MsgRequestSignedValues
	MsgSignedValues
)

var messageNames = map[MessageType]string{
	MsgHandshake:                "handshake",
	MsgError:                    "error",
	MsgNewSignagePointHarvester: "new_signage_point_harvester",
	MsgNewProofOfSpace:          "new_proof_of_space",
	MsgRequestSignatures:        "request_signatures",
	MsgRespondSignatures:        "respond_signatures",
	MsgRequestPlotInventory:     "request_plot_inventory",
	MsgPlotInventory:            "plot_inventory",
	MsgFarmingInfo:              "farming_info",
	MsgNewSignagePoint:          "new_signage_point",
	MsgNewPeak:                  "new_peak",
	MsgDeclareProofOfSpace:      "declare_proof_of_space",
	MsgRequestSignedValues:      "request_signed_values",
	MsgSignedValues:             "signed_values",
}

func (t MessageType) String() string {
	if name, ok := messageNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message(%d)", uint8(t))
}

// Frame is the unit sent over a connection. Requests carry a non-zero ID that the
// reply echoes with Reply set.
type Frame struct {
	Type  MessageType
	ID    uint16
	Reply bool
	Data  []byte `scale:"max=67108864"` // 64 MiB
}

// Handshake is the first message in both directions.
type Handshake struct {
	Network         string `scale:"max=32"`
	ProtocolVersion uint16
	SoftwareVersion string `scale:"max=64"`
	NodeType        NodeType
	PeerID          uuid.UUID
}

// Error is sent in reply to a request that failed, and before closing a connection
// after a failed handshake.
type Error struct {
	Code    uint16
	Message string `scale:"max=1024"`
}

// Error codes.
const (
	CodeIncompatible uint16 = iota + 1
	CodeInvalidRequest
	CodeNotFound
	CodeInternal
)

// PoolDifficulty is the difficulty a pool assigned to plots bound to its contract.
type PoolDifficulty struct {
	Difficulty             uint64
	SubSlotIters           uint64
	PoolContractPuzzleHash types.Bytes32
}

// NewSignagePointHarvester asks a harvester to look up proofs for a signage point.
type NewSignagePointHarvester struct {
	ChallengeHash    types.Bytes32
	SPHash           types.Bytes32
	Index            uint8
	Difficulty       uint64
	SubSlotIters     uint64
	FilterPrefixBits uint8
	PeakHeight       uint32
	PoolDifficulties []PoolDifficulty `scale:"max=64"`
}

// NewProofOfSpace reports a proof found by a harvester.
type NewProofOfSpace struct {
	ChallengeHash types.Bytes32
	SPHash        types.Bytes32
	Index         uint8
	PlotID        types.Bytes32
	Proof         types.ProofOfSpace
}

// SignMessage is one message a harvester is asked to sign.
type SignMessage struct {
	Data []byte `scale:"max=4096"`
}

// RequestSignatures asks the harvester holding a plot for its key share signatures.
type RequestSignatures struct {
	PlotID        types.Bytes32
	ChallengeHash types.Bytes32
	SPHash        types.Bytes32
	Messages      []SignMessage `scale:"max=16"`
}

// RespondSignatures carries the harvester share, one signature per requested message,
// each produced with the augmented scheme prefixed by the plot public key.
type RespondSignatures struct {
	PlotID        types.Bytes32
	ChallengeHash types.Bytes32
	SPHash        types.Bytes32
	LocalPK       types.Bytes48
	FarmerPK      types.Bytes48
	Signatures    []types.Bytes96 `scale:"max=16"`
}

// RequestPlotInventory asks a harvester for its plot inventory.
type RequestPlotInventory struct{}

// PlotInventory lists the plots a harvester farms.
type PlotInventory struct {
	Fingerprint types.Bytes32
	Plots       []types.PlotSummary `scale:"max=1048576"`
	Degraded    uint32
}

// FarmingInfo closes a harvester's part of a signage point window.
type FarmingInfo struct {
	ChallengeHash types.Bytes32
	SPHash        types.Bytes32
	Index         uint8
	TotalPlots    uint32
	PassedFilter  uint32
	Proofs        uint32
	Errors        uint32
	// LookupTime is in milliseconds.
	LookupTime uint64
}

// NewSignagePoint is announced by the full node.
type NewSignagePoint struct {
	ChallengeHash    types.Bytes32
	ChallengeChainSP types.Bytes32
	RewardChainSP    types.Bytes32
	Difficulty       uint64
	SubSlotIters     uint64
	Index            uint8
	PeakHeight       uint32
}

// NewPeak is announced by the full node when its peak changes.
type NewPeak struct {
	HeaderHash types.Bytes32
	Height     uint32
	Weight     uint64
}

// DeclareProofOfSpace submits a full proof to the full node.
type DeclareProofOfSpace struct {
	ChallengeHash             types.Bytes32
	ChallengeChainSP          types.Bytes32
	Index                     uint8
	RewardChainSP             types.Bytes32
	Proof                     types.ProofOfSpace
	ChallengeChainSPSignature types.Bytes96
	RewardChainSPSignature    types.Bytes96
	FarmerPuzzleHash          types.Bytes32
	PoolTarget                *types.PoolTarget
	PoolSignature             *types.Bytes96
}

// RequestSignedValues is sent by the full node when a declared proof was selected for a
// block.
type RequestSignedValues struct {
	QualityString               types.Bytes32
	FoliageBlockDataHash        types.Bytes32
	FoliageTransactionBlockHash types.Bytes32
}

// SignedValues replies to RequestSignedValues.
type SignedValues struct {
	QualityString                    types.Bytes32
	FoliageBlockDataSignature        types.Bytes96
	FoliageTransactionBlockSignature types.Bytes96
}
