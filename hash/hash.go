// Package hash provides the consensus hash (sha256) and the blake3 hasher pool used for
// local fingerprints.
package hash

import (
	"github.com/minio/sha256-simd"

	"github.com/plotfarm/go-farmer/common/types"
)

const (
	// Size is an alias to minio sha256.Size (32 bytes).
	Size = sha256.Size
)

var (
	// New is an alias to minio sha256.New.
	New = sha256.New
	// Sum is an alias to minio sha256.Sum256.
	Sum = sha256.Sum256
)

// StdHash is the network hash of the concatenation of chunks.
func StdHash(chunks ...[]byte) types.Bytes32 {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	var out types.Bytes32
	h.Sum(out[:0])
	return out
}
