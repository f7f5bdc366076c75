package chain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/shopspring/decimal"
)

func sampleBlock(index uint64) block.Block {
	t, _ := tx.New("alice", "bob", decimal.RequireFromString("2.5"))
	prev := "1"
	if index > 1 {
		prev = "7dd0b05c7a6aafba30a3d6c7102d235385a934972e4c066bcea9f6adcbae98f2"
	}
	return block.New(index, 1700000000.25, []tx.Transaction{t}, 35293, prev)
}

func TestBlockStore_PutGet(t *testing.T) {
	bs := NewBlockStore(storage.NewMemory())

	tip, err := bs.GetTip()
	if err != nil || tip != 0 {
		t.Fatalf("empty GetTip = %d, %v", tip, err)
	}

	want := sampleBlock(1)
	if err := bs.PutBlock(want); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	got, err := bs.GetBlock(1)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if got.Hash() != want.Hash() {
		t.Fatalf("stored block hash changed: %s != %s", got.Hash(), want.Hash())
	}
	if tip, _ := bs.GetTip(); tip != 1 {
		t.Fatalf("tip = %d, want 1", tip)
	}

	if _, err := bs.GetBlock(2); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("GetBlock(2) err = %v, want ErrBlockNotFound", err)
	}
}

func TestBlockStore_LoadAll(t *testing.T) {
	bs := NewBlockStore(storage.NewMemory())
	for i := uint64(1); i <= 3; i++ {
		if err := bs.PutBlock(sampleBlock(i)); err != nil {
			t.Fatal(err)
		}
	}
	blocks, err := bs.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("LoadAll len = %d", len(blocks))
	}
	for i, b := range blocks {
		if b.Index != uint64(i+1) {
			t.Fatalf("block %d has index %d", i, b.Index)
		}
	}
}

func TestBlockStore_Corruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*record)
	}{
		{"block bytes", func(r *record) {
			r.Block = json.RawMessage(`{"index":1,"timestamp":1,"transactions":[],"proof":1,"previous_hash":"1"}`)
		}},
		{"checksum", func(r *record) { r.Checksum[0] ^= 0xFF }},
		{"encoding", func(r *record) { r.Encoding = 99 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := storage.NewMemory()
			bs := NewBlockStore(db)
			bs.PutBlock(sampleBlock(1))

			raw, _ := db.Get(blockKey(1))
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				t.Fatal(err)
			}
			tt.mutate(&rec)
			raw, _ = json.Marshal(rec)
			db.Put(blockKey(1), raw)

			if _, err := bs.GetBlock(1); !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("GetBlock err = %v, want ErrCorruptRecord", err)
			}
		})
	}

	db := storage.NewMemory()
	db.Put(blockKey(1), []byte("not json"))
	if _, err := NewBlockStore(db).GetBlock(1); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("garbage record err = %v, want ErrCorruptRecord", err)
	}
}

func TestBlockStore_WrongKey(t *testing.T) {
	db := storage.NewMemory()
	bs := NewBlockStore(db)
	bs.PutBlock(sampleBlock(2))

	raw, _ := db.Get(blockKey(2))
	db.Put(blockKey(5), raw)
	if _, err := bs.GetBlock(5); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("GetBlock(5) err = %v, want ErrCorruptRecord", err)
	}
}

func TestChain_ReloadFromStore(t *testing.T) {
	db := storage.NewMemory()
	c := newTestChain(t, WithStore(NewBlockStore(db)))
	submit(t, c, "alice", "bob", 5)
	mine(t, c)
	mine(t, c)
	want := c.Blocks()

	reopened := newTestChain(t, WithStore(NewBlockStore(db)))
	got := reopened.Blocks()
	if len(got) != len(want) {
		t.Fatalf("reloaded %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Hash() != want[i].Hash() {
			t.Fatalf("block %d hash differs after reload", i+1)
		}
	}
	if !reopened.ValidateChain() {
		t.Fatal("reloaded chain invalid")
	}

	// Sealing continues on top of the reloaded tip.
	mine(t, reopened)
	if reopened.Length() != 4 {
		t.Fatalf("Length = %d, want 4", reopened.Length())
	}
}

func TestChain_ReloadBadger(t *testing.T) {
	dir := t.TempDir()

	db, err := storage.NewBadger(dir)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestChain(t, WithStore(NewBlockStore(storage.NewPrefixDB(db, []byte("chain/")))))
	mine(t, c)
	tip, _ := c.LastBlock()
	db.Close()

	db, err = storage.NewBadger(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	reopened := newTestChain(t, WithStore(NewBlockStore(storage.NewPrefixDB(db, []byte("chain/")))))
	last, _ := reopened.LastBlock()
	if last.Hash() != tip.Hash() {
		t.Fatalf("tip after reopen = %s, want %s", last.Hash(), tip.Hash())
	}
}

func TestChain_ReloadRejectsTamperedChain(t *testing.T) {
	db := storage.NewMemory()
	bs := NewBlockStore(db)
	c := newTestChain(t, WithStore(bs))
	mine(t, c)
	mine(t, c)

	// Rewrite block 2 with a valid checksum but different contents, so only
	// the chain rules can catch it.
	b, _ := bs.GetBlock(2)
	b.Timestamp += 10
	if err := bs.PutBlock(b); err != nil {
		t.Fatal(err)
	}
	// PutBlock moved the tip back to 2; restore it.
	bs.PutBlock(mustGet(t, bs, 3))

	_, err := New(testGenesis(), nil, WithStore(bs), WithClock(fixedClock))
	var ie *IntegrityError
	if !errors.As(err, &ie) || ie.Index != 3 {
		t.Fatalf("New = %v, want IntegrityError at block 3", err)
	}
}

func TestChain_ReloadGenesisMismatch(t *testing.T) {
	db := storage.NewMemory()
	newTestChain(t, WithStore(NewBlockStore(db)))

	other := testGenesis()
	other.Proof = 101
	if _, err := New(other, nil, WithStore(NewBlockStore(db))); !errors.Is(err, ErrGenesisMismatch) {
		t.Fatalf("New = %v, want ErrGenesisMismatch", err)
	}
}

func mustGet(t *testing.T, bs *BlockStore, index uint64) block.Block {
	t.Helper()
	b, err := bs.GetBlock(index)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
