package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
)

// BadgerDatabase define data structure of storage
type BadgerDatabase struct {
	path string
	db   *badger.DB
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeBadger, NewKVDBInstance)
}

func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	opts := badger.DefaultOptions(param.DBPath).WithLogger(nil)
	if param.MemCacheSize > 0 {
		opts = opts.WithBlockCacheSize(int64(param.MemCacheSize) << 20)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDatabase{path: param.DBPath, db: db}, nil
}

// Path returns the path to the database directory.
func (bdb *BadgerDatabase) Path() string {
	return bdb.path
}

func (bdb *BadgerDatabase) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *BadgerDatabase) Get(key []byte) ([]byte, error) {
	var val []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		v, err := getFromTxn(txn, key)
		val = v
		return err
	})
	return val, err
}

func (bdb *BadgerDatabase) Has(key []byte) (bool, error) {
	_, err := bdb.Get(key)
	if err == kvdb.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (bdb *BadgerDatabase) Delete(key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *BadgerDatabase) Close() error {
	return bdb.db.Close()
}

func (bdb *BadgerDatabase) NewBatch() kvdb.Batch {
	return &BadgerBatch{db: bdb.db, wb: bdb.db.NewWriteBatch()}
}

// NewSnapshot 只读事务即为一致性快照
func (bdb *BadgerDatabase) NewSnapshot() (kvdb.Snapshot, error) {
	return &BadgerSnapshot{txn: bdb.db.NewTransaction(false)}, nil
}

func getFromTxn(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, kvdb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// BadgerBatch define batch data structure
type BadgerBatch struct {
	db   *badger.DB
	wb   *badger.WriteBatch
	size int
}

func (b *BadgerBatch) Put(key, value []byte) error {
	b.size += len(value)
	return b.wb.Set(key, value)
}

func (b *BadgerBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.wb.Delete(key)
}

func (b *BadgerBatch) Write() error {
	return b.wb.Flush()
}

func (b *BadgerBatch) ValueSize() int {
	return b.size
}

// Reset WriteBatch在Flush后不能复用，重新创建
func (b *BadgerBatch) Reset() {
	b.wb.Cancel()
	b.wb = b.db.NewWriteBatch()
	b.size = 0
}

type BadgerSnapshot struct {
	txn *badger.Txn
}

func (s *BadgerSnapshot) Get(key []byte) ([]byte, error) {
	return getFromTxn(s.txn, key)
}

func (s *BadgerSnapshot) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if err == kvdb.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerSnapshot) Release() {
	s.txn.Discard()
}
