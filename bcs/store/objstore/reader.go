package objstore

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/storage/kvdb"
)

// reader 基于任意kvdb.Reader实现store.Reader，数据库和快照共用。
// 请求和响应写入后不再变化，所以缓存可以在快照之间共享
type reader struct {
	kv    kvdb.Reader
	cache *lru.Cache
}

var _ store.Reader = (*reader)(nil)

func (r *reader) get(key []byte, what string) ([]byte, error) {
	v, err := r.kv.Get(key)
	if err == kvdb.ErrNotFound {
		return nil, errors.Wrap(store.ErrNotFound, what)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", what)
	}
	return v, nil
}

func (r *reader) Request(ref protocol.TransactionReference) (protocol.Request, error) {
	key := requestKey(ref)
	if v, ok := r.cache.Get(string(key)); ok {
		return v.(protocol.Request), nil
	}
	b, err := r.get(key, "request "+ref.String())
	if err != nil {
		return nil, err
	}
	req, err := protocol.UnmarshalRequest(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode request %s", ref)
	}
	r.cache.Add(string(key), req)
	return req, nil
}

func (r *reader) Response(ref protocol.TransactionReference) (protocol.Response, error) {
	key := responseKey(ref)
	if v, ok := r.cache.Get(string(key)); ok {
		return v.(protocol.Response), nil
	}
	b, err := r.get(key, "response "+ref.String())
	if err != nil {
		return nil, err
	}
	resp, err := decodeResponse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode response %s", ref)
	}
	r.cache.Add(string(key), resp)
	return resp, nil
}

func (r *reader) State(obj protocol.StorageReference) ([]protocol.Update, error) {
	b, err := r.get(objectKey(StateTablePrefix, obj), "state of "+obj.String())
	if err != nil {
		return nil, err
	}
	return decodeState(b)
}

func (r *reader) ClassTag(obj protocol.StorageReference) (protocol.ClassTag, error) {
	state, err := r.State(obj)
	if err != nil {
		return protocol.ClassTag{}, err
	}
	for _, u := range state {
		if tag, ok := u.(protocol.ClassTag); ok {
			return tag, nil
		}
	}
	return protocol.ClassTag{}, errors.Wrapf(store.ErrNotFound, "class tag of %s", obj)
}

func (r *reader) History(obj protocol.StorageReference) ([]protocol.TransactionReference, error) {
	b, err := r.get(objectKey(HistoryTablePrefix, obj), "history of "+obj.String())
	if err != nil {
		return nil, err
	}
	return decodeHistory(b)
}

func (r *reader) Version(obj protocol.StorageReference) (protocol.TransactionReference, error) {
	b, err := r.get(objectKey(HistoryTablePrefix, obj), "history of "+obj.String())
	if err != nil {
		return protocol.TransactionReference{}, err
	}
	if len(b) < protocol.TransactionReferenceSize {
		return protocol.TransactionReference{}, errCorrupted
	}
	return protocol.TransactionReferenceFromBytes(b[:protocol.TransactionReferenceSize])
}

func (r *reader) Manifest() (protocol.StorageReference, error) {
	b, err := r.get([]byte(ManifestKey), "manifest")
	if err != nil {
		return protocol.StorageReference{}, err
	}
	return decodeStorageRef(b)
}

func (r *reader) IsInitialized() (bool, error) {
	return r.kv.Has([]byte(ManifestKey))
}

type snapshot struct {
	*reader
	snap kvdb.Snapshot
}

func (s *snapshot) Release() {
	s.snap.Release()
}
