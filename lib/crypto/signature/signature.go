package signature

import (
	"errors"
	"sort"
	"sync"

	"github.com/btcsuite/btcutil/base58"
)

const (
	AlgorithmEd25519   = "ed25519"
	AlgorithmSecp256k1 = "secp256k1"
)

var ErrInvalidPublicKey = errors.New("invalid public key")

// Algorithm 签名算法，公钥以base58编码后保存在账户对象中
type Algorithm interface {
	Name() string
	GenerateKey() (priv []byte, pub []byte, err error)
	Sign(priv []byte, msg []byte) ([]byte, error)
	Verify(pub []byte, msg []byte, sig []byte) bool
}

var (
	servsMu  sync.RWMutex
	services = make(map[string]Algorithm)
)

func Register(alg Algorithm) {
	servsMu.Lock()
	defer servsMu.Unlock()

	if alg == nil {
		panic("signature: Register algorithm is nil")
	}
	if _, dup := services[alg.Name()]; dup {
		panic("signature: Register called twice for algorithm " + alg.Name())
	}
	services[alg.Name()] = alg
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

func GetAlgorithm(name string) (Algorithm, error) {
	servsMu.RLock()
	defer servsMu.RUnlock()

	if alg, ok := services[name]; ok {
		return alg, nil
	}
	return nil, errors.New("get signature algorithm fail.name:" + name)
}

// EncodePublicKey 公钥的字符串形式
func EncodePublicKey(pub []byte) string {
	return base58.Encode(pub)
}

func DecodePublicKey(s string) ([]byte, error) {
	pub := base58.Decode(s)
	if len(pub) == 0 {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}
