package tx

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxAmountExponent bounds the decimal exponent of an amount, which keeps
// its shortest decimal form (and so the block encoding) short.
const MaxAmountExponent = 64

// ErrValidation is the root of every transaction validation failure.
var ErrValidation = errors.New("invalid transaction")

// Validation errors.
var (
	ErrMissingSender    = errors.New("sender is required")
	ErrMissingRecipient = errors.New("recipient is required")
	ErrMissingAmount    = errors.New("amount is required")
	ErrBadAmount        = errors.New("amount must be numeric")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrAmountRange      = errors.New("amount exponent out of range")
	ErrBadEncoding      = errors.New("sender and recipient must be valid UTF-8")
)

// Validate checks that every field is present and well-formed.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Sender) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingSender)
	}
	if strings.TrimSpace(t.Recipient) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingRecipient)
	}
	if !utf8.ValidString(t.Sender) || !utf8.ValidString(t.Recipient) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrBadEncoding)
	}
	if exp := t.Amount.Exponent(); exp > MaxAmountExponent || exp < -MaxAmountExponent {
		return fmt.Errorf("%w: %w: %d", ErrValidation, ErrAmountRange, exp)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNegativeAmount)
	}
	return nil
}
