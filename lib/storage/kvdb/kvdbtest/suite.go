// Package kvdbtest 存储引擎的公共单测用例
package kvdbtest

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/xuperchain/objcore/lib/storage/kvdb"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandBytes 产生随机字符串
func RandBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return b
}

// RunSuite 校验读写、批量写和快照隔离
func RunSuite(t *testing.T, db kvdb.Database) {
	t.Helper()

	key, value := []byte("key"), []byte("value")
	if _, err := db.Get(key); err != kvdb.ErrNotFound {
		t.Fatalf("expect not found, got %v", err)
	}
	if err := db.Put(key, value); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get(key)
	if err != nil || !bytes.Equal(got, value) {
		t.Fatalf("get after put: %s %v", got, err)
	}
	if ok, err := db.Has(key); err != nil || !ok {
		t.Fatalf("has after put: %v %v", ok, err)
	}

	snap, err := db.NewSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()

	batch := db.NewBatch()
	batch.Put([]byte("k1"), []byte("v1"))
	batch.Put([]byte("k2"), []byte("v2"))
	batch.Delete(key)
	if batch.ValueSize() == 0 {
		t.Errorf("batch value size should grow")
	}
	if _, err := db.Get([]byte("k1")); err != kvdb.ErrNotFound {
		t.Errorf("batch should not be visible before write")
	}
	if err := batch.Write(); err != nil {
		t.Fatal(err)
	}
	batch.Reset()

	if got, _ := db.Get([]byte("k2")); !bytes.Equal(got, []byte("v2")) {
		t.Errorf("batch write missing k2")
	}
	if ok, _ := db.Has(key); ok {
		t.Errorf("key should be deleted by batch")
	}

	// 快照看不到之后的写入
	if got, err := snap.Get(key); err != nil || !bytes.Equal(got, value) {
		t.Errorf("snapshot lost old value: %s %v", got, err)
	}
	if ok, _ := snap.Has([]byte("k1")); ok {
		t.Errorf("snapshot sees later write")
	}

	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("k1")); err != kvdb.ErrNotFound {
		t.Errorf("expect not found after delete, got %v", err)
	}
}
