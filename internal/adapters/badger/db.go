package badger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// DB is an embedded job and result store for single-process deployments.
// Badger holds an exclusive directory lock, so every worker sharing it
// runs in the same process; all writes serialize on mu.
type DB struct {
	store *badgerhold.Store
	seq   *badgerdb.Sequence
	mu    sync.Mutex
	now   func() time.Time
}

// Open opens (creating if needed) the store rooted at dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	// JSON keeps a pointer to zero distinct from nil; gob does not.
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	seq, err := store.Badger().GetSequence([]byte("seq:jobs"), 128)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to allocate job sequence: %w", err)
	}
	return &DB{store: store, seq: seq, now: time.Now}, nil
}

func (db *DB) Close() {
	_ = db.seq.Release()
	_ = db.store.Close()
}
