package rpc

import (
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Response messages shared with clients.
const (
	MsgBlockForged  = "New Block Forged"
	MsgMissingValue = "Missing values"
	MsgInvalidJSON  = "Invalid JSON"
)

// MessageResponse is the body of acknowledgements and errors.
type MessageResponse struct {
	Message string `json:"message"`
}

// MineResult is the response of GET /mine.
type MineResult struct {
	Message      string           `json:"message"`
	Index        uint64           `json:"index"`
	Transactions []tx.Transaction `json:"transactions"`
	Proof        uint64           `json:"proof"`
	PreviousHash string           `json:"previous_hash"`
}

// ChainResult is the response of GET /chain.
type ChainResult struct {
	Chain  []block.Block `json:"chain"`
	Length int           `json:"length"`
}

// ValidateResult is the response of GET /chain/validate.
type ValidateResult struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

// BlockResult is the response of GET /blocks/{id}.
type BlockResult struct {
	Hash  types.Hash  `json:"hash"`
	Block block.Block `json:"block"`
}

// PendingResult is the response of GET /transactions/pending.
type PendingResult struct {
	Transactions []tx.Transaction `json:"transactions"`
	Count        int              `json:"count"`
}

// NodeResult is the response of GET /node.
type NodeResult struct {
	NodeID          string     `json:"node_id"`
	Version         string     `json:"version"`
	ChainName       string     `json:"chain_name,omitempty"`
	Difficulty      int        `json:"difficulty"`
	MiningReward    string     `json:"mining_reward"`
	EncodingVersion int        `json:"encoding_version"`
	Length          int        `json:"length"`
	TipHash         types.Hash `json:"tip_hash"`
	Pending         int        `json:"pending"`
	Mined           uint64     `json:"mined"`
}
