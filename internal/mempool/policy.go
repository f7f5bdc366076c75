package mempool

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// DefaultMaxFieldLength is the longest sender or recipient accepted, in bytes.
const DefaultMaxFieldLength = 256

// DefaultMaxAmountDigits bounds the number of significant digits in an amount.
const DefaultMaxAmountDigits = 40

// ErrPolicy is wrapped by every policy rejection.
var ErrPolicy = errors.New("transaction rejected by pool policy")

// Policy defines node-local acceptance rules on top of transaction validation.
type Policy struct {
	MaxFieldLength  int // 0 = unlimited.
	MaxAmountDigits int // 0 = unlimited.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxFieldLength:  DefaultMaxFieldLength,
		MaxAmountDigits: DefaultMaxAmountDigits,
	}
}

// Check validates a transaction against policy rules.
func (p *Policy) Check(t tx.Transaction) error {
	if p.MaxFieldLength > 0 {
		if len(t.Sender) > p.MaxFieldLength {
			return fmt.Errorf("%w: sender too long: %d bytes, max %d", ErrPolicy, len(t.Sender), p.MaxFieldLength)
		}
		if len(t.Recipient) > p.MaxFieldLength {
			return fmt.Errorf("%w: recipient too long: %d bytes, max %d", ErrPolicy, len(t.Recipient), p.MaxFieldLength)
		}
	}
	if p.MaxAmountDigits > 0 {
		digits := len(t.Amount.Coefficient().String())
		if digits > p.MaxAmountDigits {
			return fmt.Errorf("%w: amount has %d digits, max %d", ErrPolicy, digits, p.MaxAmountDigits)
		}
	}
	return nil
}
