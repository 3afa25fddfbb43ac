package badger

import (
	"testing"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
	"github.com/xuperchain/objcore/lib/storage/kvdb/kvdbtest"
)

func TestBadgerDatabase(t *testing.T) {
	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{
		DBPath:       t.TempDir(),
		KVEngineType: kvdb.KVEngineTypeBadger,
		MemCacheSize: 16,
	})
	if err != nil {
		t.Fatalf("NewKVDBInstance error: %s", err)
	}
	defer db.Close()

	kvdbtest.RunSuite(t, db)
}
