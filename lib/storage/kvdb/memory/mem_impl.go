package memory

import (
	"bytes"
	"errors"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
)

var ErrClosed = errors.New("memory db closed")

// MemDatabase 基于红黑树的内存kv，用于单测和不需要持久化的节点
type MemDatabase struct {
	mu   sync.RWMutex
	tree *redblacktree.Tree
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeMemory, NewKVDBInstance)
}

func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	return NewMemDatabase(), nil
}

func NewMemDatabase() *MemDatabase {
	return &MemDatabase{
		tree: redblacktree.NewWith(treeCompare),
	}
}

func (m *MemDatabase) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tree == nil {
		return nil, ErrClosed
	}

	return getFromTree(m.tree, key)
}

func (m *MemDatabase) Has(key []byte) (bool, error) {
	_, err := m.Get(key)
	if err == kvdb.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *MemDatabase) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tree == nil {
		return ErrClosed
	}

	m.tree.Put(copyBytes(key), copyBytes(value))
	return nil
}

func (m *MemDatabase) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tree == nil {
		return ErrClosed
	}

	m.tree.Remove(key)
	return nil
}

func (m *MemDatabase) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree = nil
	return nil
}

func (m *MemDatabase) NewBatch() kvdb.Batch {
	return &MemBatch{db: m}
}

// NewSnapshot 拷贝一份当前的树
func (m *MemDatabase) NewSnapshot() (kvdb.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tree == nil {
		return nil, ErrClosed
	}

	snap := redblacktree.NewWith(treeCompare)
	it := m.tree.Iterator()
	for it.Next() {
		snap.Put(it.Key(), it.Value())
	}
	return &MemSnapshot{tree: snap}, nil
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// MemBatch 缓存写操作，Write时一次性加锁写入
type MemBatch struct {
	db   *MemDatabase
	ops  []batchOp
	size int
}

func (b *MemBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: copyBytes(key), value: copyBytes(value)})
	b.size += len(value)
	return nil
}

func (b *MemBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: copyBytes(key), del: true})
	b.size += len(key)
	return nil
}

func (b *MemBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	if b.db.tree == nil {
		return ErrClosed
	}

	for _, op := range b.ops {
		if op.del {
			b.db.tree.Remove(op.key)
			continue
		}
		b.db.tree.Put(op.key, op.value)
	}
	return nil
}

func (b *MemBatch) ValueSize() int {
	return b.size
}

func (b *MemBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

type MemSnapshot struct {
	tree *redblacktree.Tree
}

func (s *MemSnapshot) Get(key []byte) ([]byte, error) {
	return getFromTree(s.tree, key)
}

func (s *MemSnapshot) Has(key []byte) (bool, error) {
	_, found := s.tree.Get(key)
	return found, nil
}

func (s *MemSnapshot) Release() {}

func getFromTree(tree *redblacktree.Tree, key []byte) ([]byte, error) {
	v, ok := tree.Get(key)
	if !ok {
		return nil, kvdb.ErrNotFound
	}
	return copyBytes(v.([]byte)), nil
}

func treeCompare(a, b interface{}) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
