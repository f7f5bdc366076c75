package chain

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
)

// CreateGenesisBlock builds the genesis block from the genesis configuration.
// The genesis block has index 1, no transactions, and the configured proof
// and previous-hash sentinel. A zero genesis timestamp is replaced by now.
func CreateGenesisBlock(gen *config.Genesis, now float64) (block.Block, error) {
	if gen == nil {
		return block.Block{}, fmt.Errorf("genesis config is nil")
	}
	if err := gen.Validate(); err != nil {
		return block.Block{}, fmt.Errorf("invalid genesis: %w", err)
	}

	ts := gen.Timestamp
	if ts == 0 {
		ts = now
	}
	return block.New(1, ts, nil, gen.Proof, gen.PreviousHash), nil
}

// matchesGenesis reports whether a stored first block was created from gen.
func matchesGenesis(b block.Block, gen *config.Genesis) bool {
	if b.Index != 1 || b.Proof != gen.Proof || b.PreviousHash != gen.PreviousHash {
		return false
	}
	if len(b.Transactions) != 0 {
		return false
	}
	return gen.Timestamp == 0 || gen.Timestamp == b.Timestamp
}
