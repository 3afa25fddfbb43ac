package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

type ed25519Algorithm struct{}

func (ed25519Algorithm) Name() string {
	return AlgorithmEd25519
}

func (ed25519Algorithm) GenerateKey() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (ed25519Algorithm) Sign(priv []byte, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key")
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func (ed25519Algorithm) Verify(pub []byte, msg []byte, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

func init() {
	Register(ed25519Algorithm{})
}
