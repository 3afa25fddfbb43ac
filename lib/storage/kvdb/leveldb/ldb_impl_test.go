package leveldb

import (
	"testing"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
	"github.com/xuperchain/objcore/lib/storage/kvdb/kvdbtest"
)

func makeDB(dir string) (kvdb.Database, error) {
	kvParam := &kvdb.KVParameter{
		DBPath:                dir,
		KVEngineType:          kvdb.KVEngineTypeLDB,
		MemCacheSize:          128,
		FileHandlersCacheSize: 1024,
	}
	return kvdb.CreateKVInstance(kvParam)
}

func TestLDBDatabase(t *testing.T) {
	db, err := makeDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewKVDBInstance error: %s", err)
	}
	defer db.Close()

	kvdbtest.RunSuite(t, db)
}

func BenchmarkLdbBatch_Put(b *testing.B) {
	db, err := makeDB(b.TempDir())
	if err != nil {
		b.Errorf("NewKVDBInstance error: %s", err)
		return
	}
	defer db.Close()

	keys := make([][]byte, 5)
	for i := 0; i < b.N; i++ {
		batch := db.NewBatch()
		if i > 0 {
			batch.Delete(keys[1])
			batch.Delete(keys[3])
		}
		for j := 0; j < 5; j++ {
			keys[j] = kvdbtest.RandBytes(64)
			batch.Put(keys[j], kvdbtest.RandBytes(1024))
		}
		batch.Write()
	}
}

func BenchmarkLdbBatch_Get(b *testing.B) {
	db, err := makeDB(b.TempDir())
	if err != nil {
		b.Errorf("NewKVDBInstance error: %s", err)
		return
	}
	defer db.Close()

	key := kvdbtest.RandBytes(64)
	db.Put(key, kvdbtest.RandBytes(1024))
	for i := 0; i < b.N; i++ {
		db.Get(key)
	}
}
