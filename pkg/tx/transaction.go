// Package tx defines the ledger transaction type.
package tx

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Transaction moves Amount from Sender to Recipient.
// It carries no identity beyond its fields; identical transactions may appear
// more than once in a block.
type Transaction struct {
	Sender    string
	Recipient string
	Amount    decimal.Decimal
}

// New builds a transaction and validates it.
// The returned error wraps ErrValidation.
func New(sender, recipient string, amount decimal.Decimal) (Transaction, error) {
	t := Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Equal reports whether two transactions have the same fields.
// Amounts compare numerically, so 5 and 5.0 are equal.
func (t Transaction) Equal(o Transaction) bool {
	return t.Sender == o.Sender && t.Recipient == o.Recipient && t.Amount.Equal(o.Amount)
}

// String returns a short human-readable description.
func (t Transaction) String() string {
	return fmt.Sprintf("%s -> %s: %s", t.Sender, t.Recipient, t.Amount)
}

// transactionJSON is the wire form. Pointer fields detect missing keys.
type transactionJSON struct {
	Sender    *string          `json:"sender"`
	Recipient *string          `json:"recipient"`
	Amount    *json.RawMessage `json:"amount"`
}

// MarshalJSON encodes the transaction with amount as a JSON number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	amount := json.RawMessage(t.Amount.String())
	return json.Marshal(transactionJSON{
		Sender:    &t.Sender,
		Recipient: &t.Recipient,
		Amount:    &amount,
	})
}

// UnmarshalJSON decodes and validates a transaction.
// Missing or malformed fields produce an error wrapping ErrValidation.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var j transactionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if j.Sender == nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingSender)
	}
	if j.Recipient == nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingRecipient)
	}
	if j.Amount == nil || string(*j.Amount) == "null" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingAmount)
	}

	amount, err := parseAmount(*j.Amount)
	if err != nil {
		return err
	}

	parsed, err := New(*j.Sender, *j.Recipient, amount)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// parseAmount accepts a JSON number or a quoted decimal string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w: %v", ErrValidation, ErrBadAmount, err)
	}
	return d, nil
}
