// Package chain implements the ledger: the block sequence and its pending
// transaction pool.
package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
	"github.com/shopspring/decimal"
)

// Chain is the ledger. It owns the sealed blocks and the pending pool;
// both change only under mu, so a sealed block always holds exactly the
// pool contents at the moment of sealing.
type Chain struct {
	mu      sync.RWMutex
	blocks  []block.Block
	pool    *mempool.Pool
	pow     *consensus.PoW
	store   *BlockStore // nil = memory only.
	genesis *config.Genesis
	now     func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithStore persists sealed blocks and restores them on New.
func WithStore(s *BlockStore) Option {
	return func(c *Chain) { c.store = s }
}

// WithPool replaces the default pending pool.
func WithPool(p *mempool.Pool) Option {
	return func(c *Chain) { c.pool = p }
}

// WithClock overrides the source of block timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// New creates a ledger. With a store that already holds blocks, the stored
// chain is loaded and verified; otherwise a genesis block is created.
// A nil pow is built from the genesis difficulty.
func New(gen *config.Genesis, pow *consensus.PoW, opts ...Option) (*Chain, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}
	if pow == nil {
		p, err := consensus.NewPoW(gen.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("consensus: %w", err)
		}
		pow = p
	}
	if pow.Difficulty != gen.Difficulty {
		return nil, fmt.Errorf("pow difficulty %d does not match genesis difficulty %d", pow.Difficulty, gen.Difficulty)
	}

	c := &Chain{
		pow:     pow,
		genesis: gen,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pool == nil {
		c.pool = mempool.New(0)
	}

	if c.store != nil {
		stored, err := c.store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load blocks: %w", err)
		}
		if len(stored) > 0 {
			if !matchesGenesis(stored[0], gen) {
				return nil, ErrGenesisMismatch
			}
			if err := ValidateBlocks(stored, pow); err != nil {
				return nil, err
			}
			c.blocks = stored
			last := stored[len(stored)-1]
			klog.Chain.Info().
				Int("blocks", len(stored)).
				Str("tip", last.Hash().String()).
				Msg("Chain loaded from storage")
			return c, nil
		}
	}

	genesis, err := CreateGenesisBlock(gen, c.timestamp())
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.PutBlock(genesis); err != nil {
			return nil, fmt.Errorf("store genesis: %w", err)
		}
	}
	c.blocks = []block.Block{genesis}
	klog.Chain.Info().
		Str("hash", genesis.Hash().String()).
		Uint64("proof", genesis.Proof).
		Msg("Genesis block created")
	return c, nil
}

func (c *Chain) timestamp() float64 {
	return float64(c.now().UnixMicro()) / 1e6
}

// SubmitTransaction validates t and appends it to the pending pool.
// Returns the index of the block that will hold it.
func (c *Chain) SubmitTransaction(t tx.Transaction) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.pool.Add(t); err != nil {
		return 0, err
	}
	return uint64(len(c.blocks)) + 1, nil
}

// NewTransaction builds a transaction and submits it.
func (c *Chain) NewTransaction(sender, recipient string, amount decimal.Decimal) (uint64, error) {
	t, err := tx.New(sender, recipient, amount)
	if err != nil {
		return 0, err
	}
	return c.SubmitTransaction(t)
}

// LastBlock returns the most recently sealed block.
func (c *Chain) LastBlock() (block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return block.Block{}, ErrEmptyChain
	}
	return c.blocks[len(c.blocks)-1].Clone(), nil
}

// SealBlock seals the pending pool into a new block with the given proof.
// The proof is trusted; use SubmitProof for proofs from untrusted callers.
func (c *Chain) SealBlock(proof uint64) (block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealLocked(proof, nil)
}

// SubmitProof seals a block after checking that prevProof is still the
// tip's proof and that proof solves the puzzle for it. A non-nil reward is
// appended after the pending transactions.
func (c *Chain) SubmitProof(prevProof, proof uint64, reward *tx.Transaction) (block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		return block.Block{}, ErrEmptyChain
	}
	last := c.blocks[len(c.blocks)-1]
	if last.Proof != prevProof {
		return block.Block{}, fmt.Errorf("%w: tip proof is %d, got %d", ErrStaleProof, last.Proof, prevProof)
	}
	if !c.pow.IsValid(prevProof, proof) {
		return block.Block{}, fmt.Errorf("%w: %d after %d", ErrInvalidProof, proof, prevProof)
	}

	var extra []tx.Transaction
	if reward != nil {
		if err := reward.Validate(); err != nil {
			return block.Block{}, fmt.Errorf("reward: %w", err)
		}
		extra = []tx.Transaction{*reward}
	}
	return c.sealLocked(proof, extra)
}

// sealLocked appends a block holding the pool contents followed by extra.
// Nothing changes if persisting the block fails. Caller holds mu.
func (c *Chain) sealLocked(proof uint64, extra []tx.Transaction) (block.Block, error) {
	if len(c.blocks) == 0 {
		return block.Block{}, ErrEmptyChain
	}
	last := c.blocks[len(c.blocks)-1]

	pending := c.pool.Pending()
	txs := append(pending, extra...)
	b := block.New(last.Index+1, c.timestamp(), txs, proof, last.Hash().String())

	if c.store != nil {
		if err := c.store.PutBlock(b); err != nil {
			return block.Block{}, fmt.Errorf("persist block %d: %w", b.Index, err)
		}
	}
	c.blocks = append(c.blocks, b)
	c.pool.RemoveFirst(len(pending))

	klog.Chain.Info().
		Uint64("index", b.Index).
		Str("hash", b.Hash().String()).
		Uint64("proof", b.Proof).
		Int("txs", len(b.Transactions)).
		Msg("Block sealed")
	return b.Clone(), nil
}

// ValidateChain reports whether the chain satisfies every chain rule.
func (c *Chain) ValidateChain() bool {
	return c.Verify() == nil
}

// Verify checks the whole chain and returns an *IntegrityError naming the
// first offending block.
func (c *Chain) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ValidateBlocks(c.blocks, c.pow)
}

// ValidateBlocks checks that blocks form a valid chain starting at index 1:
// contiguous indexes, each previous_hash equal to the hash of the block
// before it, and each proof solving the puzzle for the previous proof.
// The genesis proof is not checked.
func ValidateBlocks(blocks []block.Block, pow *consensus.PoW) error {
	if len(blocks) == 0 {
		return ErrEmptyChain
	}
	if blocks[0].Index != 1 {
		return &IntegrityError{Index: blocks[0].Index, Reason: "chain does not start at index 1"}
	}
	if err := blocks[0].Validate(); err != nil {
		return &IntegrityError{Index: 1, Reason: err.Error()}
	}

	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if cur.Index != prev.Index+1 {
			return &IntegrityError{
				Index:  cur.Index,
				Reason: fmt.Sprintf("index follows %d", prev.Index),
			}
		}
		if err := cur.Validate(); err != nil {
			return &IntegrityError{Index: cur.Index, Reason: err.Error()}
		}
		if want := prev.Hash().String(); cur.PreviousHash != want {
			return &IntegrityError{
				Index:  cur.Index,
				Reason: fmt.Sprintf("previous_hash %s does not match %s", cur.PreviousHash, want),
			}
		}
		if !pow.IsValid(prev.Proof, cur.Proof) {
			return &IntegrityError{
				Index:  cur.Index,
				Reason: fmt.Sprintf("proof %d is not valid after %d", cur.Proof, prev.Proof),
			}
		}
	}
	return nil
}

// Blocks returns a snapshot of the whole chain.
func (c *Chain) Blocks() []block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]block.Block, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Length returns the number of sealed blocks.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// BlockByIndex returns the block at a 1-based index.
func (c *Chain) BlockByIndex(index uint64) (block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index == 0 || index > uint64(len(c.blocks)) {
		return block.Block{}, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return c.blocks[index-1].Clone(), nil
}

// BlockByHash returns the block with the given hash.
func (c *Chain) BlockByHash(hash types.Hash) (block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.blocks {
		if b.Hash() == hash {
			return b.Clone(), nil
		}
	}
	return block.Block{}, fmt.Errorf("%w: hash %s", ErrBlockNotFound, hash)
}

// Pending returns a copy of the pending transactions in submission order.
func (c *Chain) Pending() []tx.Transaction {
	return c.pool.Pending()
}

// PendingCount returns the number of pending transactions.
func (c *Chain) PendingCount() int {
	return c.pool.Count()
}

// PoW returns the proof-of-work puzzle used by the chain.
func (c *Chain) PoW() *consensus.PoW {
	return c.pow
}

// Genesis returns the genesis configuration.
func (c *Chain) Genesis() *config.Genesis {
	return c.genesis
}
