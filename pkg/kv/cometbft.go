package kv

import (
	dbm "github.com/cometbft/cometbft-db"
)

// CometStore wraps a CometBFT dbm.DB and exposes the Store contract.
// Grounded on pkg/kvdb/adapter.go's KVAdapter, generalized to the full
// Store interface (delete, has, prefix listing) the core needs.
type CometStore struct {
	db dbm.DB
}

// NewCometStore wraps an already-open dbm.DB.
func NewCometStore(db dbm.DB) *CometStore {
	return &CometStore{db: db}
}

// NewGoLevelStore opens (or creates) a GoLevelDB-backed store under dir.
func NewGoLevelStore(name, dir string) (*CometStore, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, err
	}
	return &CometStore{db: db}, nil
}

// NewMemStore returns an ephemeral in-process store, for tests and
// regtest mode.
func NewMemStore() *CometStore {
	return &CometStore{db: dbm.NewMemDB()}
}

func (c *CometStore) Get(key []byte) ([]byte, error) {
	v, err := c.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *CometStore) Set(key, value []byte) error {
	return c.db.SetSync(key, value)
}

func (c *CometStore) Delete(key []byte) error {
	return c.db.DeleteSync(key)
}

func (c *CometStore) Has(key []byte) (bool, error) {
	return c.db.Has(key)
}

// ListKeysWithPrefix iterates [prefix, prefixUpperBound) and collects
// every key found, in lexicographic order.
func (c *CometStore) ListKeysWithPrefix(prefix []byte) ([][]byte, error) {
	end := upperBound(prefix)
	it, err := c.db.Iterator(prefix, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for ; it.Valid(); it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		keys = append(keys, k)
	}
	return keys, it.Error()
}

func (c *CometStore) Close() error {
	return c.db.Close()
}

// upperBound returns the smallest key greater than every key with the
// given prefix, for use as an iterator's exclusive end bound. Returns nil
// (meaning "no upper bound") if prefix is all 0xff bytes or empty.
func upperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
