package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Protocol Rules (fixed for the lifetime of a chain, defined in genesis)
// =============================================================================

// Protocol constants.
const (
	GenesisProof        uint64 = 100
	GenesisPreviousHash        = "1" // Sentinel; genesis has no predecessor.
	DefaultDifficulty          = 4
	MaxDifficulty              = 64 // Hex length of a SHA-256 digest.
	RewardSender               = "0"
)

// Genesis holds the genesis block parameters and protocol rules.
// Changing any field on an existing chain makes its stored blocks invalid.
type Genesis struct {
	ChainName string `json:"chain_name"`

	// Genesis block
	Timestamp    float64 `json:"timestamp"` // 0 = time of first start.
	Proof        uint64  `json:"proof"`
	PreviousHash string  `json:"previous_hash"`

	// Protocol rules
	Difficulty   int             `json:"difficulty"`    // Leading '0' hex characters of a proof digest.
	MiningReward decimal.Decimal `json:"mining_reward"` // Paid to the miner in every mined block.
	RewardSender string          `json:"reward_sender"` // Sender of reward transactions.
}

// DefaultGenesis returns the built-in genesis.
func DefaultGenesis() *Genesis {
	return &Genesis{
		ChainName:    "klingledger",
		Proof:        GenesisProof,
		PreviousHash: GenesisPreviousHash,
		Difficulty:   DefaultDifficulty,
		MiningReward: decimal.NewFromInt(1),
		RewardSender: RewardSender,
	}
}

// LoadGenesis reads a genesis file and validates it.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	g := DefaultGenesis()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return g, nil
}

// Save writes the genesis as indented JSON.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}
	return nil
}

// Validate checks that the genesis configuration is usable.
func (g *Genesis) Validate() error {
	if g.Difficulty < 1 || g.Difficulty > MaxDifficulty {
		return fmt.Errorf("difficulty must be between 1 and %d, got %d", MaxDifficulty, g.Difficulty)
	}
	if g.PreviousHash == "" {
		return fmt.Errorf("previous_hash is required")
	}
	if !utf8.ValidString(g.PreviousHash) {
		return fmt.Errorf("previous_hash must be valid UTF-8")
	}
	if math.IsNaN(g.Timestamp) || math.IsInf(g.Timestamp, 0) || g.Timestamp < 0 {
		return fmt.Errorf("timestamp must be a finite, non-negative number")
	}
	if g.MiningReward.IsNegative() {
		return fmt.Errorf("mining_reward must not be negative")
	}
	if exp := g.MiningReward.Exponent(); exp > tx.MaxAmountExponent || exp < -tx.MaxAmountExponent {
		return fmt.Errorf("mining_reward exponent %d outside ±%d", exp, tx.MaxAmountExponent)
	}
	if strings.TrimSpace(g.RewardSender) == "" {
		return fmt.Errorf("reward_sender is required")
	}
	if !utf8.ValidString(g.RewardSender) {
		return fmt.Errorf("reward_sender must be valid UTF-8")
	}
	return nil
}
