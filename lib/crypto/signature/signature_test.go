package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	msg := []byte("This is test msg")

	for _, name := range []string{AlgorithmEd25519, AlgorithmSecp256k1} {
		t.Run(name, func(t *testing.T) {
			alg, err := GetAlgorithm(name)
			require.NoError(t, err)

			priv, pub, err := alg.GenerateKey()
			require.NoError(t, err)

			sig, err := alg.Sign(priv, msg)
			require.NoError(t, err)
			require.True(t, alg.Verify(pub, msg, sig))
			require.False(t, alg.Verify(pub, []byte("tampered"), sig))

			_, other, err := alg.GenerateKey()
			require.NoError(t, err)
			require.False(t, alg.Verify(other, msg, sig))
		})
	}
}

func TestPublicKeyEncoding(t *testing.T) {
	alg, err := GetAlgorithm(AlgorithmEd25519)
	require.NoError(t, err)
	_, pub, err := alg.GenerateKey()
	require.NoError(t, err)

	decoded, err := DecodePublicKey(EncodePublicKey(pub))
	require.NoError(t, err)
	require.Equal(t, pub, decoded)

	_, err = DecodePublicKey("0OIl")
	require.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = GetAlgorithm("rsa")
	require.Error(t, err)
}
