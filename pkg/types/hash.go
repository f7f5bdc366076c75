// Package types defines core primitive types for the ledger.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a digest in bytes.
const HashSize = 32

// Hash is a 256-bit digest. Its text form is 64 lowercase hex characters,
// which is also the form stored in a block's previous_hash field.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the lowercase hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// LeadingZeroNibbles counts the leading '0' characters of the hex form.
func (h Hash) LeadingZeroNibbles() int {
	n := 0
	for _, b := range h {
		if b>>4 != 0 {
			return n
		}
		n++
		if b&0x0F != 0 {
			return n
		}
		n++
	}
	return n
}

// HasZeroPrefix reports whether the hex form starts with n '0' characters.
func (h Hash) HasZeroPrefix(n int) bool {
	return h.LeadingZeroNibbles() >= n
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
