// Package storage provides key-value database abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending key
	// order. The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes that are applied together by Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that can commit several writes atomically.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns an atomic batch when db supports one, and a buffered
// batch that replays writes one by one otherwise.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &fallbackBatch{db: db}
}

type batchOp struct {
	key   []byte
	value []byte // nil means delete
}

// fallbackBatch buffers writes and applies them non-atomically.
type fallbackBatch struct {
	db  DB
	ops []batchOp
}

func (fb *fallbackBatch) Put(key, value []byte) error {
	fb.ops = append(fb.ops, batchOp{key: clone(key), value: cloneValue(value)})
	return nil
}

func (fb *fallbackBatch) Delete(key []byte) error {
	fb.ops = append(fb.ops, batchOp{key: clone(key)})
	return nil
}

func (fb *fallbackBatch) Commit() error {
	for _, op := range fb.ops {
		var err error
		if op.value == nil {
			err = fb.db.Delete(op.key)
		} else {
			err = fb.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	fb.ops = nil
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// cloneValue copies b and never returns nil, so an empty value is still a put.
func cloneValue(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
