package storage

// PrefixDB wraps a DB and prepends a fixed namespace to all keys.
// The ledger keeps its blocks and node metadata in separate namespaces
// of one underlying database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: clone(prefix)}
}

func (p *PrefixDB) prefixed(key []byte) []byte {
	out := make([]byte, len(p.prefix)+len(key))
	copy(out, p.prefix)
	copy(out[len(p.prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.prefixed(key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.prefixed(key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.prefixed(key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.prefixed(key))
}

// ForEach iterates over keys with the given prefix inside the namespace.
// Keys passed to fn have the namespace stripped.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.ForEach(p.prefixed(prefix), func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// Close is a no-op; the inner DB manages its own lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch creates a batch that prepends the namespace to all keys and
// commits through the inner DB's batch.
func (p *PrefixDB) NewBatch() Batch {
	return &prefixBatch{inner: NewBatch(p.inner), db: p}
}

type prefixBatch struct {
	inner Batch
	db    *PrefixDB
}

func (pb *prefixBatch) Put(key, value []byte) error {
	return pb.inner.Put(pb.db.prefixed(key), value)
}

func (pb *prefixBatch) Delete(key []byte) error {
	return pb.inner.Delete(pb.db.prefixed(key))
}

func (pb *prefixBatch) Commit() error {
	return pb.inner.Commit()
}
