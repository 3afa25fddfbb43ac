package lang

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/objcore/bcs/code/native"
	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

func TestInstrumentAndLoad(t *testing.T) {
	instrumented, version, err := native.Instrumenter{}.Instrument(Manifest(), nil)
	require.NoError(t, err)
	assert.Equal(t, native.VerificationVersion, version)

	var ref protocol.TransactionReference
	ref[0] = 7
	p, err := native.Loader{}.Load(ref, instrumented, nil)
	require.NoError(t, err)
	assert.Equal(t, PackageName, p.Name)

	cp, err := code.NewClasspath(ref, []*code.Package{p})
	require.NoError(t, err)

	c, err := cp.Class(protocol.ClassGamete)
	require.NoError(t, err)
	assert.Equal(t, ref, c.Package)
	assert.True(t, cp.IsSubclass(protocol.ClassGamete, protocol.ClassContract))
	assert.True(t, cp.IsSubclass(protocol.ClassInsufficientFundsError, protocol.ClassError))

	assert.Equal(t, []protocol.FieldSignature{
		protocol.FieldBalance, protocol.FieldNonce, protocol.FieldPublicKey,
	}, cp.Fields(protocol.ClassGamete))
}

func TestResolveFromContract(t *testing.T) {
	cp, err := code.NewClasspath(protocol.TransactionReference{}, []*code.Package{New()})
	require.NoError(t, err)

	tests := []struct {
		name string
		sig  protocol.MethodSignature
		from bool
	}{
		{"receive", Receive, true},
		{"receiveLong", ReceiveLong, true},
		{"balance", GetBalance, false},
		{"faucet", Faucet, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fromContract, err := cp.ResolveMethod(tt.sig)
			require.NoError(t, err)
			assert.Equal(t, tt.from, fromContract)
			assert.Equal(t, tt.sig.Name, c.Name)
		})
	}

	c, fromContract, err := cp.ResolveConstructor(NewAccount)
	require.NoError(t, err)
	assert.True(t, fromContract)
	assert.True(t, c.Tags.Has(code.TagPayable))
}

func TestInstrumentRejects(t *testing.T) {
	tests := []struct {
		name string
		pkg  []byte
	}{
		{"garbage", []byte("::: not yaml")},
		{"noVersion", []byte("name: lang\n")},
		{"unknown", (&native.Manifest{Name: "nope", Version: "1"}).Marshal()},
		{"missingDep", (&native.Manifest{Name: PackageName, Version: PackageVersion, Dependencies: []string{"other"}}).Marshal()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := native.Instrumenter{}.Instrument(tt.pkg, nil)
			assert.True(t, errors.Is(err, native.ErrVerification), "%v", err)
		})
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, native.Drivers(), "lang@1.0")
}
