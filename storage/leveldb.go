package storage

import (
	"errors"
	"fmt"
	"os"

	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/config"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// DB is the persistent key-value store backing the wallet. Values written
// through Write land in a single synced batch, so a crash leaves either the
// old or the new set of fields on disk.
type DB struct {
	db *leveldb.DB
}

func InitDB(cfg *config.Config) (*DB, error) {
	if cfg.Store.InMemory {
		return NewMemDB()
	}
	dbPath := cfg.Store.Path

	// Create DB directory if it does not exist
	if err := os.MkdirAll(dbPath, 0o700); err != nil {
		log.Error("Failed to create db dir: ", err)
		return nil, err
	}

	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		log.Error("Failed to open db: ", err)
		return nil, err
	}

	log.Info("Successfully opened db: ", dbPath)
	return &DB{db: db}, nil
}

// NewMemDB returns a DB backed by memory, used by tests and dry runs.
func NewMemDB() (*DB, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(key []byte) ([]byte, error) {
	if d.db == nil {
		return nil, ErrClosed
	}
	val, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (d *DB) Has(key []byte) (bool, error) {
	if d.db == nil {
		return false, ErrClosed
	}
	return d.db.Has(key, nil)
}

func (d *DB) Put(key, value []byte) error {
	return d.Write(map[string][]byte{string(key): value}, nil)
}

func (d *DB) Delete(key []byte) error {
	return d.Write(nil, [][]byte{key})
}

// Write applies puts and deletes atomically with fsync.
func (d *DB) Write(puts map[string][]byte, deletes [][]byte) error {
	if d.db == nil {
		return ErrClosed
	}
	batch := new(leveldb.Batch)
	for k, v := range puts {
		batch.Put([]byte(k), v)
	}
	for _, k := range deletes {
		batch.Delete(k)
	}
	return d.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// Iterate calls fn for every key with the given prefix in key order until fn
// returns false. k and v are only valid during the call.
func (d *DB) Iterate(prefix []byte, fn func(k, v []byte) bool) error {
	if d.db == nil {
		return ErrClosed
	}
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (d *DB) Close() error {
	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}
