package kvdb

import (
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

const (
	KVEngineTypeLDB    = "leveldb"
	KVEngineTypeBadger = "badger"
	KVEngineTypeMemory = "memory"
)

// ErrNotFound 统一各存储引擎的key不存在错误
var ErrNotFound = errors.New("kvdb: not found")

// KVParameter kv实例参数
type KVParameter struct {
	DBPath       string
	KVEngineType string
	// 读缓存大小，单位MB，0使用引擎默认值
	MemCacheSize          int
	FileHandlersCacheSize int
}

// Persistent 内存引擎之外都需要DBPath
func (p *KVParameter) Persistent() bool {
	return p.KVEngineType != KVEngineTypeMemory
}

func (p *KVParameter) validate() error {
	if p.KVEngineType == "" {
		return errors.New("kv engine type unset")
	}
	if p.Persistent() && p.DBPath == "" {
		return errors.New("db path unset for engine " + p.KVEngineType)
	}
	if p.MemCacheSize < 0 || p.FileHandlersCacheSize < 0 {
		return errors.New("negative cache size")
	}
	return nil
}

type NewStorageFunc func(*KVParameter) (Database, error)

var (
	engineMu sync.RWMutex
	engines  = make(map[string]NewStorageFunc)
)

// Register 各引擎在init中注册
func Register(name string, f NewStorageFunc) {
	engineMu.Lock()
	defer engineMu.Unlock()

	if f == nil {
		panic("kvdb: Register new func is nil")
	}
	if _, dup := engines[name]; dup {
		panic("kvdb: Register called twice for engine " + name)
	}
	engines[name] = f
}

func Drivers() []string {
	engineMu.RLock()
	defer engineMu.RUnlock()
	list := make([]string, 0, len(engines))
	for name := range engines {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func CreateKVInstance(param *KVParameter) (Database, error) {
	if param == nil {
		return nil, errors.New("kv parameter is nil")
	}
	if err := param.validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "bad kv parameter")
	}

	engineMu.RLock()
	f, ok := engines[param.KVEngineType]
	engineMu.RUnlock()
	if !ok {
		return nil, pkgerrors.Errorf("kv engine %s not registered, have %v", param.KVEngineType, Drivers())
	}

	db, err := f(param)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "create kv instance %s fail", param.KVEngineType)
	}
	return db, nil
}
