package kvdb

// Reader 只读接口，快照和数据库都实现
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Snapshot 某一时刻的一致性只读视图，使用完必须Release
type Snapshot interface {
	Reader
	Release()
}

// Batch 批量写，Write之前对读不可见
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	ValueSize() int
	Reset()
}

// Database kv存储引擎需要实现的接口
type Database interface {
	Reader
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	NewSnapshot() (Snapshot, error)
	Close() error
}
