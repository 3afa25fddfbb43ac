package hash

import (
	"crypto/sha256"
	"errors"
	"sort"
	"sync"

	"golang.org/x/crypto/sha3"
)

const (
	HashTypeSha256  = "sha256"
	HashTypeSha3256 = "sha3-256"
)

// Hasher 计算请求摘要，输出固定32字节
type Hasher interface {
	Name() string
	Sum(data []byte) []byte
}

type NewHasherFunc func() Hasher

var (
	servsMu  sync.RWMutex
	services = make(map[string]NewHasherFunc)
)

func Register(name string, f NewHasherFunc) {
	servsMu.Lock()
	defer servsMu.Unlock()

	if f == nil {
		panic("hash: Register new func is nil")
	}
	if _, dup := services[name]; dup {
		panic("hash: Register called twice for func " + name)
	}
	services[name] = f
}

func Drivers() []string {
	servsMu.RLock()
	defer servsMu.RUnlock()
	list := make([]string, 0, len(services))
	for name := range services {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func CreateHasher(name string) (Hasher, error) {
	servsMu.RLock()
	defer servsMu.RUnlock()

	if f, ok := services[name]; ok {
		return f(), nil
	}

	return nil, errors.New("get hasher fail.name:" + name)
}

type sha256Hasher struct{}

func (sha256Hasher) Name() string { return HashTypeSha256 }

func (sha256Hasher) Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

type sha3Hasher struct{}

func (sha3Hasher) Name() string { return HashTypeSha3256 }

func (sha3Hasher) Sum(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:]
}

func init() {
	Register(HashTypeSha256, func() Hasher { return sha256Hasher{} })
	Register(HashTypeSha3256, func() Hasher { return sha3Hasher{} })
}
