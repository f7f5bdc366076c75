package chain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Key prefixes and state keys for the block store.
var (
	prefixBlock = []byte("b/") // b/<index(8)> -> record JSON
	keyTip      = []byte("s/tip")
)

// record is the stored form of a block. Checksum is the BLAKE3 digest of
// Block and catches storage corruption; it plays no part in consensus.
type record struct {
	Encoding int             `json:"encoding"`
	Checksum types.Hash      `json:"checksum"`
	Block    json.RawMessage `json:"block"`
}

// BlockStore persists sealed blocks to a storage.DB.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// PutBlock stores a block and advances the tip to it in one batch.
func (bs *BlockStore) PutBlock(b block.Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}
	rec, err := json.Marshal(record{
		Encoding: block.EncodingVersion,
		Checksum: crypto.Checksum(data),
		Block:    data,
	})
	if err != nil {
		return fmt.Errorf("record marshal: %w", err)
	}

	var tip [8]byte
	binary.BigEndian.PutUint64(tip[:], b.Index)

	batch := storage.NewBatch(bs.db)
	if err := batch.Put(blockKey(b.Index), rec); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	if err := batch.Put(keyTip, tip[:]); err != nil {
		return fmt.Errorf("set tip: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("block commit: %w", err)
	}
	return nil
}

// GetBlock retrieves a block by index and verifies its checksum.
func (bs *BlockStore) GetBlock(index uint64) (block.Block, error) {
	data, err := bs.db.Get(blockKey(index))
	if errors.Is(err, storage.ErrNotFound) {
		return block.Block{}, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	if err != nil {
		return block.Block{}, fmt.Errorf("block get: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return block.Block{}, fmt.Errorf("%w: index %d: %v", ErrCorruptRecord, index, err)
	}
	if rec.Encoding != block.EncodingVersion {
		return block.Block{}, fmt.Errorf("%w: index %d: unsupported encoding %d", ErrCorruptRecord, index, rec.Encoding)
	}
	if crypto.Checksum(rec.Block) != rec.Checksum {
		return block.Block{}, fmt.Errorf("%w: index %d: checksum mismatch", ErrCorruptRecord, index)
	}

	var b block.Block
	if err := json.Unmarshal(rec.Block, &b); err != nil {
		return block.Block{}, fmt.Errorf("%w: index %d: %v", ErrCorruptRecord, index, err)
	}
	if b.Index != index {
		return block.Block{}, fmt.Errorf("%w: key %d holds block %d", ErrCorruptRecord, index, b.Index)
	}
	return b, nil
}

// GetTip returns the index of the last stored block, or 0 for an empty store.
func (bs *BlockStore) GetTip() (uint64, error) {
	data, err := bs.db.Get(keyTip)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get tip: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: tip is %d bytes", ErrCorruptRecord, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// LoadAll returns blocks 1..tip in order.
func (bs *BlockStore) LoadAll() ([]block.Block, error) {
	tip, err := bs.GetTip()
	if err != nil {
		return nil, err
	}
	blocks := make([]block.Block, 0, tip)
	for i := uint64(1); i <= tip; i++ {
		b, err := bs.GetBlock(i)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func blockKey(index uint64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], index)
	return key
}
