package block

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

func TestBlock_MarshalJSON_EmptyTransactions(t *testing.T) {
	b := Block{Index: 1, Timestamp: 1700000000.5, Proof: 100, PreviousHash: "1"}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"index":1,"timestamp":1700000000.5,"transactions":[],"proof":100,"previous_hash":"1"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestBlock_JSONPreservesHash(t *testing.T) {
	b := New(2, 1700000001.25, []tx.Transaction{mustTx(t, "alice", "bob", "5")}, 35445, strings.Repeat("ab", 32))
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Block
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Hash() != b.Hash() {
		t.Errorf("hash changed across JSON: %s != %s", got.Hash(), b.Hash())
	}
}

func TestBlock_Validate(t *testing.T) {
	good := New(2, 1700000001, []tx.Transaction{mustTx(t, "alice", "bob", "5")}, 1, strings.Repeat("0", 64))
	if err := good.Validate(); err != nil {
		t.Fatalf("valid block rejected: %v", err)
	}
	genesis := New(1, 1700000000, nil, 100, "1")
	if err := genesis.Validate(); err != nil {
		t.Fatalf("genesis rejected: %v", err)
	}
	genesis.PreviousHash = "1\xff"
	if err := genesis.Validate(); !errors.Is(err, ErrBadPrevHash) {
		t.Errorf("genesis with invalid UTF-8 previous hash = %v, want ErrBadPrevHash", err)
	}

	tests := []struct {
		name   string
		mutate func(b *Block)
		want   error
	}{
		{"zero index", func(b *Block) { b.Index = 0 }, ErrBadIndex},
		{"NaN timestamp", func(b *Block) { b.Timestamp = math.NaN() }, ErrBadTimestamp},
		{"negative timestamp", func(b *Block) { b.Timestamp = -1 }, ErrBadTimestamp},
		{"empty prev hash", func(b *Block) { b.PreviousHash = "" }, ErrBadPrevHash},
		{"sentinel after genesis", func(b *Block) { b.PreviousHash = "1" }, ErrBadPrevHash},
		{"bad tx", func(b *Block) { b.Transactions[0].Sender = "" }, ErrBadTx},
		{"invalid utf-8 sender", func(b *Block) { b.Transactions[0].Sender = "alice\xff" }, ErrBadTx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := good.Clone()
			tt.mutate(&b)
			if err := b.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
