package memory

import (
	"testing"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
	"github.com/xuperchain/objcore/lib/storage/kvdb/kvdbtest"
)

func TestMemDatabase(t *testing.T) {
	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{KVEngineType: kvdb.KVEngineTypeMemory})
	if err != nil {
		t.Fatal(err)
	}

	kvdbtest.RunSuite(t, db)

	db.Close()
	if _, err := db.Get([]byte("key")); err != ErrClosed {
		t.Errorf("expect closed error, got %v", err)
	}
}

func TestCreateUnknownEngine(t *testing.T) {
	if _, err := kvdb.CreateKVInstance(&kvdb.KVParameter{KVEngineType: "rocksdb"}); err == nil {
		t.Errorf("expect error for unregistered engine")
	}
}
