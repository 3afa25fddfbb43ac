package protocol

import (
	"github.com/xuperchain/objcore/lib/crypto/signature"
)

// Sign 对签名字段置空后的编码签名并回填
func Sign(req SignedRequest, alg signature.Algorithm, priv []byte) error {
	sig, err := alg.Sign(priv, SignedBytes(req))
	if err != nil {
		return err
	}
	req.SetSignature(sig)
	return nil
}

func VerifySignature(req SignedRequest, alg signature.Algorithm, pub []byte) bool {
	if len(req.GetSignature()) == 0 {
		return false
	}
	return alg.Verify(pub, SignedBytes(req), req.GetSignature())
}
