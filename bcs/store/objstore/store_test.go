package objstore

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/storage/kvdb"
	_ "github.com/xuperchain/objcore/lib/storage/kvdb/leveldb"
	_ "github.com/xuperchain/objcore/lib/storage/kvdb/memory"
)

var counterField = protocol.FieldSignature{DefiningClass: "test.Counter", Name: "count", Type: protocol.TypeInt}

func txRef(b byte) protocol.TransactionReference {
	var ref protocol.TransactionReference
	ref[0] = b
	return ref
}

func openStores(t *testing.T) map[string]*ObjectStore {
	stores := make(map[string]*ObjectStore)
	params := map[string]*kvdb.KVParameter{
		"memory":  {KVEngineType: kvdb.KVEngineTypeMemory},
		"leveldb": {KVEngineType: kvdb.KVEngineTypeLDB, DBPath: filepath.Join(t.TempDir(), "ldb")},
	}
	for name, param := range params {
		s, err := Open(param, Option{Compress: name == "leveldb"}, logs.NewTestLogger("objstore"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		stores[name] = s
	}
	return stores
}

func callRecord(tx byte, obj protocol.StorageReference, count int32, withTag bool) *protocol.TransactionRecord {
	req := &protocol.StaticMethodCallRequest{
		TransactionCommon: protocol.TransactionCommon{
			Caller:    obj,
			Nonce:     big.NewInt(int64(tx)),
			ChainID:   "test",
			GasLimit:  big.NewInt(1000),
			GasPrice:  big.NewInt(1),
			Classpath: txRef(1),
		},
		Method: protocol.MethodSignature{DefiningClass: "test.Counter", Name: "touch"},
	}
	updates := protocol.Updates{protocol.FieldUpdate{Object: obj, Field: counterField, Value: protocol.IntValue(count)}}
	if withTag {
		updates = append(updates, protocol.ClassTag{Object: obj, ClassName: "test.Counter", Package: txRef(1)})
	}
	resp := &protocol.MethodCallVoidSuccessResponse{
		Updates: updates,
		GasConsumed: protocol.GasConsumed{
			CPU: big.NewInt(1), RAM: big.NewInt(2), Storage: big.NewInt(3),
		},
	}
	return &protocol.TransactionRecord{Reference: txRef(tx), Request: req, Response: resp}
}

func TestCommitAndRead(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			obj := protocol.StorageReference{Transaction: txRef(10)}
			first := callRecord(10, obj, 1, true)
			require.NoError(t, s.Commit(first, nil))

			req, err := s.Request(first.Reference)
			require.NoError(t, err)
			assert.True(t, protocol.RequestsEqual(first.Request, req))
			resp, err := s.Response(first.Reference)
			require.NoError(t, err)
			assert.True(t, protocol.ResponsesEqual(first.Response, resp))

			tag, err := s.ClassTag(obj)
			require.NoError(t, err)
			assert.Equal(t, "test.Counter", tag.ClassName)

			second := callRecord(11, obj, 2, false)
			require.NoError(t, s.Commit(second, store.ReadSet{obj: txRef(10)}))

			state, err := s.State(obj)
			require.NoError(t, err)
			require.Len(t, state, 2)
			assert.Equal(t, protocol.IntValue(2), state[1].(protocol.FieldUpdate).Value)

			history, err := s.History(obj)
			require.NoError(t, err)
			assert.Equal(t, []protocol.TransactionReference{txRef(11), txRef(10)}, history)
			version, err := s.Version(obj)
			require.NoError(t, err)
			assert.Equal(t, txRef(11), version)
		})
	}
}

func TestCommitConflict(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			obj := protocol.StorageReference{Transaction: txRef(20)}
			require.NoError(t, s.Commit(callRecord(20, obj, 1, true), nil))
			require.NoError(t, s.Commit(callRecord(21, obj, 2, false), store.ReadSet{obj: txRef(20)}))

			// 读到的是旧版本
			err := s.Commit(callRecord(22, obj, 3, false), store.ReadSet{obj: txRef(20)})
			assert.True(t, errors.Is(err, store.ErrConflict))

			// 同一笔交易不能提交两次
			err = s.Commit(callRecord(21, obj, 2, false), nil)
			assert.True(t, errors.Is(err, store.ErrConflict))

			_, err = s.Request(txRef(22))
			assert.True(t, errors.Is(err, store.ErrNotFound))
		})
	}
}

func TestSnapshotIsolation(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			obj := protocol.StorageReference{Transaction: txRef(30)}
			require.NoError(t, s.Commit(callRecord(30, obj, 1, true), nil))

			snap, err := s.Snapshot()
			require.NoError(t, err)
			defer snap.Release()

			require.NoError(t, s.Commit(callRecord(31, obj, 2, false), nil))

			version, err := snap.Version(obj)
			require.NoError(t, err)
			assert.Equal(t, txRef(30), version)
			version, err = s.Version(obj)
			require.NoError(t, err)
			assert.Equal(t, txRef(31), version)
		})
	}
}

func TestManifest(t *testing.T) {
	s := openStores(t)["memory"]
	ok, err := s.IsInitialized()
	require.NoError(t, err)
	assert.False(t, ok)

	manifest := protocol.StorageReference{Transaction: txRef(40), Progressive: 3}
	record := &protocol.TransactionRecord{
		Reference: txRef(41),
		Request:   &protocol.InitializationRequest{Classpath: txRef(1), Manifest: manifest},
		Response:  &protocol.InitializationResponse{},
	}
	require.NoError(t, s.Commit(record, nil))

	ok, err = s.IsInitialized()
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.Manifest()
	require.NoError(t, err)
	assert.Equal(t, manifest, got)
}

func TestClosedStore(t *testing.T) {
	s := openStores(t)["memory"]
	require.NoError(t, s.Close())
	_, err := s.Snapshot()
	assert.Equal(t, store.ErrClosed, err)
	assert.Equal(t, store.ErrClosed, s.Commit(callRecord(50, protocol.StorageReference{}, 1, true), nil))
}
