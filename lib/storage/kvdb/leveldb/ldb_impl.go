package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
)

const (
	defaultCache = 16
	defaultFds   = 16
)

// LDBDatabase define data structure of storage
type LDBDatabase struct {
	fn string
	db *leveldb.DB
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeLDB, NewKVDBInstance)
}

func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	baseDB := new(LDBDatabase)
	if err := baseDB.Open(param.DBPath, param.MemCacheSize, param.FileHandlersCacheSize); err != nil {
		return nil, err
	}

	return baseDB, nil
}

// Open opens an instance of LDB with parameters (ldb path and other options)
func (ldb *LDBDatabase) Open(path string, cache, fds int) error {
	if cache < defaultCache {
		cache = defaultCache
	}
	if fds < defaultFds {
		fds = defaultFds
	}

	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: fds,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	// (Re)check for errors and abort if opening of the db failed
	if err != nil {
		return err
	}
	ldb.fn = path
	ldb.db = db
	return nil
}

// Path returns the path to the database directory.
func (ldb *LDBDatabase) Path() string {
	return ldb.fn
}

// Put puts the given key / value to the queue
func (ldb *LDBDatabase) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Has if the given key exists
func (ldb *LDBDatabase) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (ldb *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := ldb.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvdb.ErrNotFound
	}
	return dat, err
}

// Delete deletes the key from the queue and database
func (ldb *LDBDatabase) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Close close database instance
func (ldb *LDBDatabase) Close() error {
	return ldb.db.Close()
}

// NewBatch new a batch for LDBDatabase
func (ldb *LDBDatabase) NewBatch() kvdb.Batch {
	return &LDBBatch{db: ldb.db, b: new(leveldb.Batch)}
}

// NewSnapshot leveldb原生快照
func (ldb *LDBDatabase) NewSnapshot() (kvdb.Snapshot, error) {
	snap, err := ldb.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &LDBSnapshot{snap: snap}, nil
}

// LDBBatch define batch data structure
type LDBBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

// Put put key/value to batch
func (b *LDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

// Delete delete key from batch
func (b *LDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

// Write write batch data to db
func (b *LDBBatch) Write() error {
	return b.db.Write(b.b, nil)
}

// ValueSize return size of batch value
func (b *LDBBatch) ValueSize() int {
	return b.size
}

// Reset reset batch
func (b *LDBBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

// LDBSnapshot wraps leveldb.Snapshot
type LDBSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *LDBSnapshot) Get(key []byte) ([]byte, error) {
	dat, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvdb.ErrNotFound
	}
	return dat, err
}

func (s *LDBSnapshot) Has(key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s *LDBSnapshot) Release() {
	s.snap.Release()
}
