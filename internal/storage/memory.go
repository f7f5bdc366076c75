package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB using an in-memory map.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = cloneValue(value)
	return nil
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix in key order.
// The callback runs without the lock held, so it may write to the DB.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)

	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	values := make(map[string][]byte, len(keys))
	for _, k := range keys {
		values[k] = clone(m.data[k])
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), values[k]); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a batch applied under a single lock acquisition.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

// Close is a no-op for the in-memory database.
func (m *MemoryDB) Close() error {
	return nil
}

type memoryBatch struct {
	db  *MemoryDB
	ops []batchOp
}

func (mb *memoryBatch) Put(key, value []byte) error {
	mb.ops = append(mb.ops, batchOp{key: clone(key), value: cloneValue(value)})
	return nil
}

func (mb *memoryBatch) Delete(key []byte) error {
	mb.ops = append(mb.ops, batchOp{key: clone(key)})
	return nil
}

func (mb *memoryBatch) Commit() error {
	mb.db.mu.Lock()
	defer mb.db.mu.Unlock()
	for _, op := range mb.ops {
		if op.value == nil {
			delete(mb.db.data, string(op.key))
		} else {
			mb.db.data[string(op.key)] = op.value
		}
	}
	mb.ops = nil
	return nil
}
