package objstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/metrics"
	"github.com/xuperchain/objcore/lib/storage/kvdb"
)

const DefaultCacheSize = 1024

type Option struct {
	// Compress 响应使用snappy压缩
	Compress  bool
	CacheSize int
}

// ObjectStore 追加写的对象存储：交易记录、对象最新状态和修改历史
type ObjectStore struct {
	reader
	db       kvdb.Database
	compress bool
	log      logs.Logger

	// 单写者
	mutex  sync.Mutex
	closed bool
}

var _ store.Store = (*ObjectStore)(nil)

// Open 按参数创建kv实例并打开存储
func Open(param *kvdb.KVParameter, opt Option, log logs.Logger) (*ObjectStore, error) {
	db, err := kvdb.CreateKVInstance(param)
	if err != nil {
		return nil, err
	}
	s, err := New(db, opt, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db kvdb.Database, opt Option, log logs.Logger) (*ObjectStore, error) {
	if db == nil || log == nil {
		return nil, errors.New("objstore: db and logger must be set")
	}
	size := opt.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create response cache")
	}
	return &ObjectStore{
		reader:   reader{kv: db, cache: cache},
		db:       db,
		compress: opt.Compress,
		log:      log,
	}, nil
}

func (s *ObjectStore) Snapshot() (store.Snapshot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	snap, err := s.db.NewSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "new kv snapshot")
	}
	return &snapshot{reader: &reader{kv: snap, cache: s.cache}, snap: snap}, nil
}

// Commit 校验读集并原子写入交易记录以及更新涉及的对象
func (s *ObjectStore) Commit(record *protocol.TransactionRecord, readSet store.ReadSet) (err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	defer func() {
		metrics.StoreCommitCounter.WithLabelValues(commitResult(err)).Inc()
	}()

	if s.closed {
		return store.ErrClosed
	}
	if record == nil || record.Request == nil || record.Response == nil {
		return errors.New("objstore: incomplete transaction record")
	}
	if ok, err := s.db.Has(requestKey(record.Reference)); err != nil {
		return errors.Wrap(err, "check committed")
	} else if ok {
		return errors.Wrapf(store.ErrConflict, "transaction %s already committed", record.Reference)
	}

	for obj, version := range readSet {
		current, err := s.Version(obj)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errors.Wrapf(store.ErrConflict, "object %s disappeared", obj)
			}
			return err
		}
		if current != version {
			return errors.Wrapf(store.ErrConflict, "object %s modified by %s", obj, current)
		}
	}

	batch := s.db.NewBatch()
	if err := batch.Put(requestKey(record.Reference), protocol.MarshalRequest(record.Request)); err != nil {
		return err
	}
	if err := batch.Put(responseKey(record.Reference), encodeResponse(record.Response, s.compress)); err != nil {
		return err
	}
	if err := s.applyUpdates(batch, record.Reference, record.Response.GetUpdates()); err != nil {
		return err
	}
	if init, ok := record.Request.(*protocol.InitializationRequest); ok {
		if err := batch.Put([]byte(ManifestKey), encodeStorageRef(init.Manifest)); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write batch")
	}

	s.log.Debug("transaction committed", "tx", record.Reference.String(),
		"response", record.Response.ResponseKind().String(), "updates", len(record.Response.GetUpdates()))
	return nil
}

// applyUpdates 把更新合并进每个对象的最新状态，并把交易加到历史最前面
func (s *ObjectStore) applyUpdates(batch kvdb.Batch, tx protocol.TransactionReference, updates []protocol.Update) error {
	updates = protocol.SortUpdates(append([]protocol.Update(nil), updates...))
	for len(updates) > 0 {
		obj := updates[0].GetObject()
		n := 1
		for n < len(updates) && updates[n].GetObject() == obj {
			n++
		}
		if err := s.applyObject(batch, tx, obj, updates[:n]); err != nil {
			return err
		}
		updates = updates[n:]
	}
	return nil
}

func (s *ObjectStore) applyObject(batch kvdb.Batch, tx protocol.TransactionReference,
	obj protocol.StorageReference, updates []protocol.Update) error {
	state, err := s.State(obj)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	merged := make([]protocol.Update, 0, len(state)+len(updates))
	replaced := make(map[protocol.FieldSignature]bool)
	hasTag := false
	for _, u := range updates {
		switch tu := u.(type) {
		case protocol.FieldUpdate:
			replaced[tu.Field] = true
		case protocol.ClassTag:
			hasTag = true
		}
	}
	for _, u := range state {
		switch tu := u.(type) {
		case protocol.FieldUpdate:
			if replaced[tu.Field] {
				continue
			}
		case protocol.ClassTag:
			if hasTag {
				continue
			}
		}
		merged = append(merged, u)
	}
	merged = append(merged, updates...)
	if err := batch.Put(objectKey(StateTablePrefix, obj), encodeState(protocol.SortUpdates(merged))); err != nil {
		return err
	}

	history, err := s.db.Get(objectKey(HistoryTablePrefix, obj))
	if err != nil && err != kvdb.ErrNotFound {
		return err
	}
	next := make([]byte, 0, len(history)+protocol.TransactionReferenceSize)
	next = append(next, tx[:]...)
	next = append(next, history...)
	return batch.Put(objectKey(HistoryTablePrefix, obj), next)
}

func (s *ObjectStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func commitResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
