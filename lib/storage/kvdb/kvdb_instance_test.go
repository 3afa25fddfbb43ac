package kvdb

import (
	"errors"
	"testing"
)

func TestCreateKVInstance(t *testing.T) {
	Register("test-fail", func(*KVParameter) (Database, error) {
		return nil, errors.New("boom")
	})

	tests := []struct {
		name  string
		param *KVParameter
	}{
		{"nil", nil},
		{"noEngine", &KVParameter{DBPath: "/tmp/x"}},
		{"noPath", &KVParameter{KVEngineType: KVEngineTypeLDB}},
		{"negativeCache", &KVParameter{KVEngineType: "test-fail", DBPath: "/tmp/x", MemCacheSize: -1}},
		{"unregistered", &KVParameter{KVEngineType: "nothing", DBPath: "/tmp/x"}},
		{"openFail", &KVParameter{KVEngineType: "test-fail", DBPath: "/tmp/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateKVInstance(tt.param); err == nil {
				t.Errorf("expect error for %+v", tt.param)
			}
		})
	}
}

func TestRegisterTwice(t *testing.T) {
	f := func(*KVParameter) (Database, error) { return nil, nil }
	Register("test-dup", f)
	defer func() {
		if recover() == nil {
			t.Errorf("register twice should panic")
		}
	}()
	Register("test-dup", f)
}

func TestPersistent(t *testing.T) {
	if (&KVParameter{KVEngineType: KVEngineTypeMemory}).Persistent() {
		t.Errorf("memory engine is not persistent")
	}
	if !(&KVParameter{KVEngineType: KVEngineTypeBadger}).Persistent() {
		t.Errorf("badger engine is persistent")
	}
}
