// Package crypto provides the hash primitives used by the ledger.
package crypto

import (
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
)

// Hash computes the SHA-256 digest of data.
// Block hashes and proof-of-work digests both use it.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// HashConcat hashes the concatenation of a and b with no separator.
func HashConcat(a, b []byte) types.Hash {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	var out types.Hash
	h.Sum(out[:0])
	return out
}

// Checksum computes a BLAKE3-256 digest of data.
// Used to detect corruption of persisted records; never part of consensus.
func Checksum(data []byte) types.Hash {
	return blake3.Sum256(data)
}
