package rpcclient

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/chain"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpc"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/shopspring/decimal"
)

type testEnv struct {
	client *Client
	chain  *chain.Chain
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	gen := config.DefaultGenesis()
	gen.Difficulty = 2

	ch, err := chain.New(gen, nil)
	if err != nil {
		t.Fatalf("create chain: %v", err)
	}
	m := miner.New(ch, ch.PoW(), "client-node", gen.MiningReward, gen.RewardSender)

	// Create and start the API server on a random port.
	srv := rpc.New("127.0.0.1:0", ch, m)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		client: New("http://" + srv.Addr() + "/"),
		chain:  ch,
	}
}

func mustTx(t *testing.T, sender, recipient, amount string) tx.Transaction {
	t.Helper()
	tr, err := tx.New(sender, recipient, decimal.RequireFromString(amount))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestClient_Chain(t *testing.T) {
	env := setupTestEnv(t)

	result, err := env.client.Chain()
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if result.Length != 1 || result.Chain[0].Proof != 100 {
		t.Errorf("chain = %+v", result)
	}
}

func TestClient_SubmitAndMine(t *testing.T) {
	env := setupTestEnv(t)

	msg, err := env.client.SubmitTransaction(mustTx(t, "alice", "bob", "2.5"))
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if msg != "Transaction will be added to Block 2" {
		t.Errorf("message = %q", msg)
	}

	pending, err := env.client.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if pending.Count != 1 || pending.Transactions[0].Amount.String() != "2.5" {
		t.Errorf("pending = %+v", pending)
	}

	mined, err := env.client.Mine()
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if mined.Index != 2 || len(mined.Transactions) != 2 {
		t.Errorf("mined = %+v", mined)
	}
	if mined.Transactions[1].Recipient != "client-node" {
		t.Errorf("reward recipient = %q", mined.Transactions[1].Recipient)
	}

	blk, err := env.client.Block("2")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if blk.Block.Proof != mined.Proof {
		t.Errorf("proof = %d, want %d", blk.Block.Proof, mined.Proof)
	}

	byHash, err := env.client.Block(blk.Hash.String())
	if err != nil {
		t.Fatalf("Block by hash: %v", err)
	}
	if byHash.Block.Index != 2 {
		t.Errorf("index = %d, want 2", byHash.Block.Index)
	}

	v, err := env.client.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !v.Valid || v.Length != 2 {
		t.Errorf("validate = %+v", v)
	}
}

func TestClient_Node(t *testing.T) {
	env := setupTestEnv(t)

	info, err := env.client.Node()
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.NodeID != "client-node" || info.Difficulty != 2 || info.Length != 1 {
		t.Errorf("node = %+v", info)
	}
}

func TestClient_Block_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.client.Block("42")
	if err == nil {
		t.Fatal("expected error for non-existent block")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "not found") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClient_SubmitTransaction_Rejected(t *testing.T) {
	env := setupTestEnv(t)

	long := strings.Repeat("x", 1000)
	_, err := env.client.SubmitTransaction(mustTx(t, long, "bob", "1"))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if n := len(env.chain.Pending()); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestClient_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/") // port 1, should refuse

	if _, err := client.Chain(); err == nil {
		t.Fatal("expected connection error")
	}
}
