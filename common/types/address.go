package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cosmos/btcutil/bech32"
)

const (
	bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	bech32mConst  = 0x2bc830a3
)

var (
	// ErrDecodeBech32 is returned when an address is not valid bech32m.
	ErrDecodeBech32 = errors.New("error decoding bech32m")
	// ErrUnsupportedNetwork is returned when the address prefix does not match the network.
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// AddressToPuzzleHash decodes a bech32m address like `xch1...` into the puzzle hash it
// encodes. A 0x prefixed hex puzzle hash is accepted as is. An empty hrp accepts any
// prefix.
func AddressToPuzzleHash(address, hrp string) (Bytes32, error) {
	if strings.HasPrefix(address, "0x") {
		return HexToBytes32(address)
	}
	var ph Bytes32
	prefix, data, err := decodeBech32m(address)
	if err != nil {
		return ph, fmt.Errorf("%w: %w", ErrDecodeBech32, err)
	}
	if hrp != "" && prefix != hrp {
		return ph, fmt.Errorf("wrong prefix: expected `%s`, got `%s`: %w", hrp, prefix, ErrUnsupportedNetwork)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ph, fmt.Errorf("error converting bech32 bits: %w", err)
	}
	if len(converted) != len(ph) {
		return ph, fmt.Errorf("%w: expected %d bytes, got %d", ErrDecodeBech32, len(ph), len(converted))
	}
	copy(ph[:], converted)
	return ph, nil
}

// decodeBech32m returns the human readable part and the 5-bit data without checksum.
func decodeBech32m(s string) (string, []byte, error) {
	if strings.ToLower(s) != s && strings.ToUpper(s) != s {
		return "", nil, errors.New("mixed case")
	}
	s = strings.ToLower(s)
	sep := strings.LastIndexByte(s, '1')
	if sep < 1 || sep+7 > len(s) {
		return "", nil, errors.New("invalid separator position")
	}
	hrp := s[:sep]
	data := make([]byte, 0, len(s)-sep-1)
	for _, c := range s[sep+1:] {
		v := strings.IndexRune(bech32Charset, c)
		if v < 0 {
			return "", nil, fmt.Errorf("invalid character %q", c)
		}
		data = append(data, byte(v))
	}
	if polymod(append(expandHRP(hrp), data...)) != bech32mConst {
		return "", nil, errors.New("invalid checksum")
	}
	return hrp, data[:len(data)-6], nil
}

func expandHRP(hrp string) []byte {
	out := make([]byte, 0, 2*len(hrp)+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>i)&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}
