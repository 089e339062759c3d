package pool

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plotfarm/go-farmer/codec"
	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/hash"
)

// ErrorCode is the error code returned by pools.
type ErrorCode uint16

const (
	RevertedSignagePoint ErrorCode = iota + 1
	TooLate
	NotFound
	InvalidProof
	ProofNotGoodEnough
	InvalidDifficulty
	InvalidSignature
	ServerException
	InvalidP2SingletonPuzzleHash
	FarmerNotKnown
	FarmerAlreadyKnown
	InvalidAuthenticationToken
	InvalidPayoutInstructions
	InvalidSingleton
	DelayTimeTooShort
	RequestFailed
)

var codeNames = map[ErrorCode]string{
	RevertedSignagePoint:         "reverted_signage_point",
	TooLate:                      "too_late",
	NotFound:                     "not_found",
	InvalidProof:                 "invalid_proof",
	ProofNotGoodEnough:           "proof_not_good_enough",
	InvalidDifficulty:            "invalid_difficulty",
	InvalidSignature:             "invalid_signature",
	ServerException:              "server_exception",
	InvalidP2SingletonPuzzleHash: "invalid_p2_singleton_puzzle_hash",
	FarmerNotKnown:               "farmer_not_known",
	FarmerAlreadyKnown:           "farmer_already_known",
	InvalidAuthenticationToken:   "invalid_authentication_token",
	InvalidPayoutInstructions:    "invalid_payout_instructions",
	InvalidSingleton:             "invalid_singleton",
	DelayTimeTooShort:            "delay_time_too_short",
	RequestFailed:                "request_failed",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// ErrUnauthorized is matched by errors caused by an expired or unknown authentication
// token.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a terminal pool response for a request.
type Error struct {
	Status  int
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("pool error %s (http %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("pool error %s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == 401 || e.Code == InvalidAuthenticationToken
	case types.ErrStaleWork:
		return e.Code == TooLate || e.Code == RevertedSignagePoint
	case types.ErrCryptoValidation:
		return e.Code == InvalidSignature || e.Code == InvalidProof
	}
	return false
}

// Hex is a byte slice encoded as a 0x-prefixed hex string in JSON.
type Hex []byte

func (h Hex) MarshalText() ([]byte, error) {
	return []byte("0x" + hex.EncodeToString(h)), nil
}

func (h *Hex) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	*h = b
	return nil
}

// Info is the response of GET /pool_info.
type Info struct {
	Name                       string        `json:"name"`
	LogoURL                    string        `json:"logo_url"`
	MinimumDifficulty          uint64        `json:"minimum_difficulty"`
	RelativeLockHeight         uint32        `json:"relative_lock_height"`
	ProtocolVersion            uint8         `json:"protocol_version"`
	Fee                        string        `json:"fee"`
	Description                string        `json:"description"`
	TargetPuzzleHash           types.Bytes32 `json:"target_puzzle_hash"`
	AuthenticationTokenTimeout uint8         `json:"authentication_token_timeout"`
	// MinimumRequestInterval is in seconds. Zero means the pool does not advertise one.
	MinimumRequestInterval uint32 `json:"minimum_request_interval,omitempty"`
}

// FarmerInfo is the response of GET /farmer.
type FarmerInfo struct {
	AuthenticationPublicKey types.Bytes48 `json:"authentication_public_key"`
	PayoutInstructions      string        `json:"payout_instructions"`
	CurrentDifficulty       uint64        `json:"current_difficulty"`
	CurrentPoints           uint64        `json:"current_points"`
}

type jsonFarmerPayload struct {
	LauncherID              types.Bytes32 `json:"launcher_id"`
	AuthenticationToken     uint64        `json:"authentication_token"`
	AuthenticationPublicKey types.Bytes48 `json:"authentication_public_key"`
	PayoutInstructions      types.Bytes32 `json:"payout_instructions"`
	SuggestedDifficulty     *uint64       `json:"suggested_difficulty"`
}

// PostFarmerRequest is the body of POST /farmer.
type PostFarmerRequest struct {
	Payload   FarmerPayload
	Signature types.Bytes96
}

type jsonPostFarmerRequest struct {
	Payload   jsonFarmerPayload `json:"payload"`
	Signature types.Bytes96     `json:"signature"`
}

func (r *PostFarmerRequest) toJSON() *jsonPostFarmerRequest {
	out := &jsonPostFarmerRequest{
		Payload: jsonFarmerPayload{
			LauncherID:              r.Payload.LauncherID,
			AuthenticationToken:     r.Payload.AuthenticationToken,
			AuthenticationPublicKey: r.Payload.AuthenticationPublicKey,
			PayoutInstructions:      r.Payload.PayoutInstructions,
		},
		Signature: r.Signature,
	}
	if r.Payload.SuggestedDifficulty != 0 {
		d := r.Payload.SuggestedDifficulty
		out.Payload.SuggestedDifficulty = &d
	}
	return out
}

// PostFarmerResponse is the response of POST /farmer.
type PostFarmerResponse struct {
	WelcomeMessage string `json:"welcome_message"`
}

type jsonProofOfSpace struct {
	Challenge              types.Bytes32  `json:"challenge"`
	PoolPublicKey          *types.Bytes48 `json:"pool_public_key"`
	PoolContractPuzzleHash *types.Bytes32 `json:"pool_contract_puzzle_hash"`
	PlotPublicKey          types.Bytes48  `json:"plot_public_key"`
	Size                   uint8          `json:"size"`
	Proof                  Hex            `json:"proof"`
}

type jsonPartialPayload struct {
	LauncherID          types.Bytes32    `json:"launcher_id"`
	AuthenticationToken uint64           `json:"authentication_token"`
	ProofOfSpace        jsonProofOfSpace `json:"proof_of_space"`
	SPHash              types.Bytes32    `json:"sp_hash"`
	EndOfSubSlot        bool             `json:"end_of_sub_slot"`
	HarvesterID         types.Bytes32    `json:"harvester_id"`
}

type jsonPartial struct {
	Payload            jsonPartialPayload `json:"payload"`
	AggregateSignature types.Bytes96      `json:"aggregate_signature"`
}

func partialToJSON(p *types.Partial) *jsonPartial {
	pos := &p.Payload.ProofOfSpace
	return &jsonPartial{
		Payload: jsonPartialPayload{
			LauncherID:          p.Payload.LauncherID,
			AuthenticationToken: p.Payload.AuthenticationToken,
			ProofOfSpace: jsonProofOfSpace{
				Challenge:              pos.Challenge,
				PoolPublicKey:          pos.PoolPublicKey,
				PoolContractPuzzleHash: pos.PoolContractPuzzleHash,
				PlotPublicKey:          pos.PlotPublicKey,
				Size:                   pos.Size,
				Proof:                  pos.Proof,
			},
			SPHash:       p.Payload.SPHash,
			EndOfSubSlot: p.Payload.EndOfSubSlot,
			HarvesterID:  p.Payload.HarvesterID,
		},
		AggregateSignature: p.AggregateSignature,
	}
}

// PartialResponse is the response of POST /partial.
type PartialResponse struct {
	NewDifficulty uint64 `json:"new_difficulty"`
}

type errorResponse struct {
	ErrorCode    ErrorCode `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// AuthenticationToken is the token valid at now for a pool with the given timeout in
// minutes.
func AuthenticationToken(now time.Time, timeout uint8) uint64 {
	return uint64(now.Unix()) / 60 / uint64(max(timeout, 1))
}

// TokenExpiry is the time the token valid at now stops being valid.
func TokenExpiry(now time.Time, timeout uint8) time.Time {
	window := uint64(max(timeout, 1)) * 60
	next := (AuthenticationToken(now, timeout) + 1) * window
	return time.Unix(int64(next), 0)
}

// SigningMessage is the hash a payload is signed over.
func SigningMessage(payload codec.Encodable) []byte {
	h := hash.StdHash(codec.MustEncode(payload))
	return h[:]
}
