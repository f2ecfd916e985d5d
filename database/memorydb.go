package database

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("database closed")

// MemoryDB keeps everything in a map. Used by tests and the "memory" backend.
type MemoryDB struct {
	mu sync.RWMutex
	kv map[string][]byte
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{kv: make(map[string][]byte)}
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.kv == nil {
		return nil, ErrClosed
	}
	v, ok := db.kv[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.kv == nil {
		return false, ErrClosed
	}
	_, ok := db.kv[string(key)]
	return ok, nil
}

func (db *MemoryDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.kv == nil {
		return ErrClosed
	}
	db.kv[string(key)] = clone(value)
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.kv == nil {
		return ErrClosed
	}
	delete(db.kv, string(key))
	return nil
}

func (db *MemoryDB) Write(batch *Batch) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.kv == nil {
		return ErrClosed
	}
	return batch.Replay(
		func(key, value []byte) error {
			db.kv[string(key)] = clone(value)
			return nil
		},
		func(key []byte) error {
			delete(db.kv, string(key))
			return nil
		},
	)
}

func (db *MemoryDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.kv)
}

func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.kv = nil
	return nil
}
