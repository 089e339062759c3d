package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spacemeshos/go-scale"
)

const (
	// Bytes32Length is the size of hashes, plot ids and puzzle hashes.
	Bytes32Length = 32
	// Bytes48Length is the size of a compressed BLS G1 public key.
	Bytes48Length = 48
	// Bytes96Length is the size of a compressed BLS G2 signature.
	Bytes96Length = 96
)

var errInvalidHex = errors.New("invalid hex")

// Bytes32 is a 32 byte value: hashes, plot ids, challenges and puzzle hashes.
type Bytes32 [Bytes32Length]byte

// Bytes48 is a compressed BLS public key.
type Bytes48 [Bytes48Length]byte

// Bytes96 is a compressed BLS signature.
type Bytes96 [Bytes96Length]byte

// EmptyBytes32 is the zero value of Bytes32.
var EmptyBytes32 = Bytes32{}

// BytesToBytes32 copies b into a Bytes32, cropping from the left if b is longer.
func BytesToBytes32(b []byte) Bytes32 {
	var h Bytes32
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

func (h Bytes32) Bytes() []byte       { return h[:] }
func (h Bytes32) String() string      { return encodeHex(h[:]) }
func (h Bytes32) IsEmpty() bool       { return h == EmptyBytes32 }
func (h Bytes32) ShortString() string { return shortHex(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Bytes32) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. The 0x prefix is optional.
func (h *Bytes32) UnmarshalText(text []byte) error { return decodeFixedHex(text, h[:]) }

// EncodeScale implements scale.Encodable.
func (h *Bytes32) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

// DecodeScale implements scale.Decodable.
func (h *Bytes32) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}

func (k Bytes48) Bytes() []byte       { return k[:] }
func (k Bytes48) String() string      { return encodeHex(k[:]) }
func (k Bytes48) ShortString() string { return shortHex(k[:]) }

// MarshalText implements encoding.TextMarshaler.
func (k Bytes48) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Bytes48) UnmarshalText(text []byte) error { return decodeFixedHex(text, k[:]) }

// EncodeScale implements scale.Encodable.
func (k *Bytes48) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, k[:])
}

// DecodeScale implements scale.Decodable.
func (k *Bytes48) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, k[:])
}

func (s Bytes96) Bytes() []byte  { return s[:] }
func (s Bytes96) String() string { return encodeHex(s[:]) }

// MarshalText implements encoding.TextMarshaler.
func (s Bytes96) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Bytes96) UnmarshalText(text []byte) error { return decodeFixedHex(text, s[:]) }

// EncodeScale implements scale.Encodable.
func (s *Bytes96) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, s[:])
}

// DecodeScale implements scale.Decodable.
func (s *Bytes96) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, s[:])
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// shortHex returns the first 5 hex characters, for logging.
func shortHex(b []byte) string {
	s := hex.EncodeToString(b)
	return s[:min(5, len(s))]
}

func decodeFixedHex(text []byte, out []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	if len(s) != 2*len(out) {
		return fmt.Errorf("%w: expected %d bytes, got %d hex chars", errInvalidHex, len(out), len(s))
	}
	if _, err := hex.Decode(out, []byte(s)); err != nil {
		return fmt.Errorf("%w: %w", errInvalidHex, err)
	}
	return nil
}

// HexToBytes32 parses a 0x-prefixed (or bare) hex string.
func HexToBytes32(s string) (Bytes32, error) {
	var h Bytes32
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// HexToBytes48 parses a 0x-prefixed (or bare) hex string.
func HexToBytes48(s string) (Bytes48, error) {
	var k Bytes48
	err := k.UnmarshalText([]byte(s))
	return k, err
}
