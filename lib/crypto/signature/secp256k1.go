package signature

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// secp256k1 签名对消息的keccak256摘要签名，公钥使用压缩格式
type secp256k1Algorithm struct{}

func (secp256k1Algorithm) Name() string {
	return AlgorithmSecp256k1
}

func (secp256k1Algorithm) GenerateKey() ([]byte, []byte, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	return crypto.FromECDSA(key), crypto.CompressPubkey(&key.PublicKey), nil
}

func (secp256k1Algorithm) Sign(priv []byte, msg []byte) ([]byte, error) {
	key, err := crypto.ToECDSA(priv)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(crypto.Keccak256(msg), key)
}

func (secp256k1Algorithm) Verify(pub []byte, msg []byte, sig []byte) bool {
	// 去掉recovery id
	if len(sig) == crypto.SignatureLength {
		sig = sig[:crypto.SignatureLength-1]
	}
	return crypto.VerifySignature(pub, crypto.Keccak256(msg), sig)
}

func init() {
	Register(secp256k1Algorithm{})
}
