// Package mempool holds transactions waiting to be sealed into a block.
package mempool

import (
	"errors"
	"sync"

	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// DefaultMaxSize is the pool capacity used when New is given zero.
const DefaultMaxSize = 5000

// Mempool errors.
var (
	ErrPoolFull = errors.New("mempool is full")
)

// Pool is an ordered list of pending transactions. Transactions keep their
// submission order and duplicates are allowed. The pool only grows until
// it is drained into a block.
type Pool struct {
	mu      sync.RWMutex
	txs     []tx.Transaction
	maxSize int
	policy  *Policy
}

// New creates a new pool with the given capacity.
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		maxSize: maxSize,
		policy:  DefaultPolicy(),
	}
}

// SetPolicy replaces the acceptance policy. A nil policy disables it.
func (p *Pool) SetPolicy(policy *Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// Add validates t and appends it to the pool.
// Returns the number of pending transactions after the append.
func (p *Pool) Add(t tx.Transaction) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.policy != nil {
		if err := p.policy.Check(t); err != nil {
			return 0, err
		}
	}
	if len(p.txs) >= p.maxSize {
		return 0, ErrPoolFull
	}

	p.txs = append(p.txs, t)
	klog.Mempool.Debug().
		Str("sender", t.Sender).
		Str("recipient", t.Recipient).
		Str("amount", t.Amount.String()).
		Int("pending", len(p.txs)).
		Msg("Transaction added")
	return len(p.txs), nil
}

// Count returns the number of pending transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// MaxSize returns the pool capacity.
func (p *Pool) MaxSize() int {
	return p.maxSize
}

// Pending returns a copy of the pending transactions in submission order.
func (p *Pool) Pending() []tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]tx.Transaction, len(p.txs))
	copy(out, p.txs)
	return out
}

// RemoveFirst removes the n oldest transactions, which a sealed block has
// just captured from a Pending snapshot. Transactions added after the
// snapshot stay pending.
func (p *Pool) RemoveFirst(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n >= len(p.txs) {
		p.txs = nil
		return
	}
	if n <= 0 {
		return
	}
	rest := make([]tx.Transaction, len(p.txs)-n)
	copy(rest, p.txs[n:])
	p.txs = rest
}
