package block

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Validation errors.
var (
	ErrBadIndex     = errors.New("block index must be >= 1")
	ErrBadTimestamp = errors.New("block timestamp must be a finite, non-negative number")
	ErrBadPrevHash  = errors.New("invalid previous hash")
	ErrBadTx        = errors.New("invalid transaction in block")
)

// Validate checks the block's own fields. It does not look at neighbouring
// blocks or the proof of work.
func (b Block) Validate() error {
	if b.Index == 0 {
		return ErrBadIndex
	}
	if math.IsNaN(b.Timestamp) || math.IsInf(b.Timestamp, 0) || b.Timestamp < 0 {
		return fmt.Errorf("%w: %v", ErrBadTimestamp, b.Timestamp)
	}
	if b.PreviousHash == "" {
		return fmt.Errorf("%w: empty", ErrBadPrevHash)
	}
	if !utf8.ValidString(b.PreviousHash) {
		return fmt.Errorf("%w: not valid UTF-8", ErrBadPrevHash)
	}
	// Only non-genesis blocks carry a real digest.
	if b.Index > 1 {
		if _, err := types.HexToHash(b.PreviousHash); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPrevHash, err)
		}
	}
	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: tx %d: %v", ErrBadTx, i, err)
		}
	}
	return nil
}
