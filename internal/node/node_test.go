package node

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/chain"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/shopspring/decimal"
)

// testConfig returns a config with a fast genesis, no API and quiet logs.
func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	gen := config.DefaultGenesis()
	gen.Difficulty = 2
	genPath := filepath.Join(dir, "genesis.json")
	if err := gen.Save(genPath); err != nil {
		t.Fatalf("save genesis: %v", err)
	}

	cfg := config.Default()
	cfg.DataDir = dir
	cfg.GenesisFile = genPath
	cfg.Storage.Backend = backend
	cfg.RPC.Enabled = false
	cfg.Log.Level = "error"
	cfg.Log.File = filepath.Join(dir, "test.log")
	return cfg
}

func newTestNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.klingledger/genesis.json", filepath.Join(home, ".klingledger/genesis.json")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewNodeID(t *testing.T) {
	a, b := newNodeID(), newNodeID()
	if len(a) != 32 {
		t.Fatalf("len = %d, want 32", len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Errorf("node id %q is not hex: %v", a, err)
	}
	if a == b {
		t.Error("two generated node ids are equal")
	}
}

func TestResolveNodeID(t *testing.T) {
	db := storage.NewMemory()

	got, err := resolveNodeID("configured", db)
	if err != nil || got != "configured" {
		t.Fatalf("configured = %q, %v", got, err)
	}
	if ok, _ := db.Has(nodeIDKey); ok {
		t.Error("configured id must not be stored")
	}

	first, err := resolveNodeID("", db)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := resolveNodeID("", db)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if first != second {
		t.Errorf("stored id changed: %q then %q", first, second)
	}
}

func TestLoadGenesis_Default(t *testing.T) {
	gen, err := loadGenesis("")
	if err != nil {
		t.Fatalf("loadGenesis: %v", err)
	}
	if gen.Difficulty != config.DefaultDifficulty || gen.Proof != config.GenesisProof {
		t.Errorf("genesis = %+v", gen)
	}
}

func TestOpenStorage_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "leveldb"
	if _, err := openStorage(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNode_MemoryBackend(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Mining.NodeID = "miner-7"

	n := newTestNode(t, cfg)
	defer n.Stop()

	if n.NodeID() != "miner-7" {
		t.Errorf("node id = %q", n.NodeID())
	}
	if n.RPCAddr() != "" {
		t.Errorf("RPCAddr = %q with API disabled", n.RPCAddr())
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := n.Chain().NewTransaction("a", "b", decimal.NewFromInt(3)); err != nil {
		t.Fatal(err)
	}
	b, err := n.Miner().Mine(context.Background())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if b.Index != 2 || len(b.Transactions) != 2 || b.Transactions[1].Recipient != "miner-7" {
		t.Errorf("mined block = %+v", b)
	}
}

func TestNode_BadgerPersistence(t *testing.T) {
	cfg := testConfig(t, config.BackendBadger)

	n := newTestNode(t, cfg)
	id := n.NodeID()
	if len(id) != 32 {
		t.Fatalf("generated node id = %q", id)
	}
	if _, err := n.Chain().NewTransaction("a", "b", decimal.RequireFromString("1.5")); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Miner().Mine(context.Background()); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	want := n.Chain().Blocks()
	n.Stop()

	reopened := newTestNode(t, cfg)
	defer reopened.Stop()

	if reopened.NodeID() != id {
		t.Errorf("node id after restart = %q, want %q", reopened.NodeID(), id)
	}
	got := reopened.Chain().Blocks()
	if len(got) != len(want) {
		t.Fatalf("blocks after restart = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Hash() != want[i].Hash() {
			t.Errorf("block %d hash differs after restart", i+1)
		}
	}
	if !reopened.Chain().ValidateChain() {
		t.Error("reloaded chain is invalid")
	}
}

func TestNode_GenesisMismatch(t *testing.T) {
	cfg := testConfig(t, config.BackendBadger)
	newTestNode(t, cfg).Stop()

	gen := config.DefaultGenesis()
	gen.Difficulty = 2
	gen.Proof = 7
	if err := gen.Save(cfg.GenesisFile); err != nil {
		t.Fatal(err)
	}

	_, err := New(cfg)
	if !errors.Is(err, chain.ErrGenesisMismatch) {
		t.Fatalf("err = %v, want ErrGenesisMismatch", err)
	}
}

func TestNode_BadGenesisFile(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.GenesisFile = filepath.Join(cfg.DataDir, "missing.json")

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing genesis file")
	}
}

func TestNode_RPC(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.RPC.Enabled = true
	cfg.RPC.Port = 0
	cfg.Mining.NodeID = "rpc-node"

	n := newTestNode(t, cfg)
	defer n.Stop()
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := rpcclient.New("http://" + n.RPCAddr())
	tr, err := tx.New("alice", "bob", decimal.NewFromInt(5))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.SubmitTransaction(tr); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	mined, err := client.Mine()
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if mined.Index != 2 || mined.Transactions[0].Sender != "alice" {
		t.Errorf("mined = %+v", mined)
	}

	info, err := client.Node()
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.NodeID != "rpc-node" || info.Mined != 1 {
		t.Errorf("node = %+v", info)
	}
}

func TestNode_BackgroundMining(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Mining.Enabled = true
	cfg.Mining.Interval = 5 * time.Millisecond

	n := newTestNode(t, cfg)
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for n.Chain().Length() < 3 {
		if time.Now().After(deadline) {
			n.Stop()
			t.Fatalf("length = %d after 10s, want >= 3", n.Chain().Length())
		}
		time.Sleep(5 * time.Millisecond)
	}
	n.Stop()

	if !n.Chain().ValidateChain() {
		t.Error("background-mined chain is invalid")
	}
}
