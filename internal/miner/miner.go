// Package miner turns pending transactions into sealed blocks by solving
// the proof-of-work puzzle.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/internal/chain"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/shopspring/decimal"
)

// DefaultMaxRetries bounds how often Mine restarts after another block
// took the tip first.
const DefaultMaxRetries = 8

// Ledger is the part of the chain the miner needs.
type Ledger interface {
	LastBlock() (block.Block, error)
	SubmitProof(prevProof, proof uint64, reward *tx.Transaction) (block.Block, error)
}

// Miner produces new blocks.
type Miner struct {
	ledger       Ledger
	pow          *consensus.PoW
	nodeID       string
	reward       decimal.Decimal
	rewardSender string
	maxRetries   int

	mined atomic.Uint64
}

// New creates a block producer that pays reward from rewardSender to nodeID
// in every block it mines. A zero reward mines blocks without a reward
// transaction.
func New(ledger Ledger, pow *consensus.PoW, nodeID string, reward decimal.Decimal, rewardSender string) *Miner {
	return &Miner{
		ledger:       ledger,
		pow:          pow,
		nodeID:       nodeID,
		reward:       reward,
		rewardSender: rewardSender,
		maxRetries:   DefaultMaxRetries,
	}
}

// NodeID returns the identifier that receives mining rewards.
func (m *Miner) NodeID() string {
	return m.nodeID
}

// Mined returns the number of blocks this miner has sealed.
func (m *Miner) Mined() uint64 {
	return m.mined.Load()
}

// Mine searches a proof for the current tip and seals the pending pool
// with it. The search runs without holding the ledger lock; if another
// block is sealed meanwhile the search restarts from the new tip.
func (m *Miner) Mine(ctx context.Context) (block.Block, error) {
	var reward *tx.Transaction
	if !m.reward.IsZero() {
		r, err := BuildReward(m.rewardSender, m.nodeID, m.reward)
		if err != nil {
			return block.Block{}, err
		}
		reward = &r
	}

	for attempt := 0; ; attempt++ {
		last, err := m.ledger.LastBlock()
		if err != nil {
			return block.Block{}, err
		}

		start := time.Now()
		proof, err := m.pow.FindProof(ctx, last.Proof)
		if err != nil {
			return block.Block{}, fmt.Errorf("find proof: %w", err)
		}

		b, err := m.ledger.SubmitProof(last.Proof, proof, reward)
		if errors.Is(err, chain.ErrStaleProof) && attempt < m.maxRetries {
			klog.Miner.Debug().
				Uint64("index", last.Index+1).
				Int("attempt", attempt+1).
				Msg("Tip moved during proof search, retrying")
			continue
		}
		if err != nil {
			return block.Block{}, err
		}

		m.mined.Add(1)
		klog.Miner.Info().
			Uint64("index", b.Index).
			Uint64("proof", b.Proof).
			Int("txs", len(b.Transactions)).
			Dur("search", time.Since(start)).
			Msg("Block mined")
		return b, nil
	}
}

// Run mines blocks until ctx is done, pausing interval between blocks.
func (m *Miner) Run(ctx context.Context, interval time.Duration) {
	klog.Miner.Info().
		Str("node_id", m.nodeID).
		Dur("interval", interval).
		Msg("Background mining started")

	for {
		if _, err := m.Mine(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			klog.Miner.Error().Err(err).Msg("Failed to mine block")
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			klog.Miner.Info().Msg("Background mining stopped")
			return
		case <-timer.C:
		}
	}
	klog.Miner.Info().Msg("Background mining stopped")
}

// BuildReward creates the transaction that pays the miner of a block.
func BuildReward(sender, nodeID string, amount decimal.Decimal) (tx.Transaction, error) {
	r, err := tx.New(sender, nodeID, amount)
	if err != nil {
		return tx.Transaction{}, fmt.Errorf("build reward: %w", err)
	}
	return r, nil
}
