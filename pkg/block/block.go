// Package block defines the block type and its canonical encoding.
package block

import (
	"encoding/json"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Block is a sealed batch of transactions linked to its predecessor.
type Block struct {
	Index        uint64           `json:"index"`
	Timestamp    float64          `json:"timestamp"` // Unix seconds.
	Transactions []tx.Transaction `json:"transactions"`
	Proof        uint64           `json:"proof"`
	PreviousHash string           `json:"previous_hash"`
}

// New creates a block. The transaction slice is copied so later changes to
// the caller's slice do not leak into the block.
func New(index uint64, timestamp float64, txs []tx.Transaction, proof uint64, prevHash string) Block {
	owned := make([]tx.Transaction, len(txs))
	copy(owned, txs)
	return Block{
		Index:        index,
		Timestamp:    timestamp,
		Transactions: owned,
		Proof:        proof,
		PreviousHash: prevHash,
	}
}

// Hash returns the SHA-256 digest of the block's canonical encoding.
func (b Block) Hash() types.Hash {
	return crypto.Hash(Encode(b))
}

// Clone returns a copy that shares no mutable state with b.
func (b Block) Clone() Block {
	return New(b.Index, b.Timestamp, b.Transactions, b.Proof, b.PreviousHash)
}

// blockAlias drops the methods of Block to avoid MarshalJSON recursion.
type blockAlias Block

// MarshalJSON encodes the block, writing an empty list for no transactions.
func (b Block) MarshalJSON() ([]byte, error) {
	a := blockAlias(b)
	if a.Transactions == nil {
		a.Transactions = []tx.Transaction{}
	}
	return json.Marshal(a)
}
