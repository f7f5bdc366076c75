package chain

import (
	"errors"
	"fmt"
)

// Chain errors.
var (
	ErrEmptyChain      = errors.New("chain has no blocks")
	ErrChainIntegrity  = errors.New("chain integrity check failed")
	ErrStaleProof      = errors.New("proof was found for a block that is no longer the tip")
	ErrInvalidProof    = errors.New("proof does not satisfy the proof-of-work puzzle")
	ErrBlockNotFound   = errors.New("block not found")
	ErrCorruptRecord   = errors.New("stored block record is corrupt")
	ErrGenesisMismatch = errors.New("stored genesis block does not match the genesis configuration")
)

// IntegrityError reports the first block that breaks the chain rules.
type IntegrityError struct {
	Index  uint64 // Index of the offending block.
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: block %d: %s", ErrChainIntegrity, e.Index, e.Reason)
}

// Unwrap lets errors.Is match ErrChainIntegrity.
func (e *IntegrityError) Unwrap() error {
	return ErrChainIntegrity
}
