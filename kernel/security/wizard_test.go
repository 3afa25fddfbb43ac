package security

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

type fakeObject struct {
	class string
}

func (o *fakeObject) Reference() protocol.StorageReference { return protocol.StorageReference{} }
func (o *fakeObject) ClassName() string                    { return o.class }

func nopEntry(code.Context, code.Object, []code.Value) (code.Value, error) { return nil, nil }

func testClasspath(t *testing.T) *code.Classpath {
	p := code.NewPackage("lang", "1.0")
	p.AddClass(&code.Class{Name: protocol.ClassObject})
	p.AddClass(&code.Class{Name: protocol.ClassContract, Superclass: protocol.ClassObject, Exported: true})
	p.AddClass(&code.Class{Name: "test.Key", Superclass: protocol.ClassObject, RedefinesHashCode: true})
	p.AddClass(&code.Class{Name: "test.SubKey", Superclass: "test.Key"})
	p.AddClass(&code.Class{Name: "test.Printable", Superclass: protocol.ClassObject, RedefinesToString: true})
	p.AddClass(&code.Class{Name: "test.Plain", Superclass: protocol.ClassObject})
	var ref protocol.TransactionReference
	ref[0] = 1
	p.Bind(ref, 0, nil)
	cp, err := code.NewClasspath(ref, []*code.Package{p})
	require.NoError(t, err)
	return cp
}

func TestCheckCallParamTags(t *testing.T) {
	w := NewWizard(testClasspath(t))
	contract := &fakeObject{protocol.ClassContract}

	callable := &code.Callable{
		DefiningClass: protocol.ClassContract,
		Name:          "put",
		Formals:       []protocol.StorageType{protocol.TypeBoolean, "test.Key", "test.Key"},
		ParamTags: map[int]code.Tags{
			0: {code.TagMustBeFalse},
			1: {code.TagMustRedefineHashCode},
			2: {code.TagMustRedefineHashCodeOrToString},
		},
		Entry: nopEntry,
	}

	tests := []struct {
		name    string
		args    []code.Value
		wantErr bool
	}{
		{"ok", []code.Value{false, &fakeObject{"test.SubKey"}, &fakeObject{"test.Printable"}}, false},
		{"string keys", []code.Value{false, "k", "v"}, false},
		{"true flag", []code.Value{true, &fakeObject{"test.Key"}, "v"}, true},
		{"flag not boolean", []code.Value{int32(0), &fakeObject{"test.Key"}, "v"}, true},
		{"plain key", []code.Value{false, &fakeObject{"test.Plain"}, "v"}, true},
		{"printable is not enough for hash code", []code.Value{false, &fakeObject{"test.Printable"}, "v"}, true},
		{"arity", []code.Value{false}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.CheckCall(callable, contract, contract, tt.args)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var illegal *IllegalCallError
			assert.True(t, errors.As(err, &illegal), "got %v", err)
		})
	}
}

func TestCheckCallReceiverTags(t *testing.T) {
	w := NewWizard(testClasspath(t))
	contract := &fakeObject{protocol.ClassContract}

	callable := &code.Callable{
		DefiningClass: protocol.ClassObject,
		Name:          "store",
		ReceiverTags:  code.Tags{code.TagMustRedefineHashCode},
		Entry:         nopEntry,
	}
	tests := []struct {
		name     string
		receiver code.Object
		wantErr  bool
	}{
		{"redefines", &fakeObject{"test.Key"}, false},
		{"inherited", &fakeObject{"test.SubKey"}, false},
		{"plain", &fakeObject{"test.Plain"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.CheckCall(callable, contract, tt.receiver, nil)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var illegal *IllegalCallError
			assert.True(t, errors.As(err, &illegal), "got %v", err)
		})
	}

	unknown := &code.Callable{
		DefiningClass: protocol.ClassObject,
		Name:          "store",
		ReceiverTags:  code.Tags{"NoSuchTag"},
		Entry:         nopEntry,
	}
	assert.Error(t, w.CheckCall(unknown, contract, &fakeObject{"test.Key"}, nil))
}

func TestCheckCallCallableTags(t *testing.T) {
	w := NewWizard(testClasspath(t))
	contract := &fakeObject{protocol.ClassContract}
	plain := &fakeObject{"test.Plain"}

	payable := &code.Callable{
		DefiningClass: protocol.ClassContract,
		Name:          "receive",
		Formals:       []protocol.StorageType{protocol.TypeBigInteger},
		Tags:          code.Tags{code.TagPayable, code.TagFromContract},
		Entry:         nopEntry,
	}
	assert.NoError(t, w.CheckCall(payable, contract, contract, []code.Value{big.NewInt(10)}))
	assert.Error(t, w.CheckCall(payable, contract, contract, []code.Value{big.NewInt(-1)}))
	assert.Error(t, w.CheckCall(payable, contract, contract, []code.Value{"10"}))
	assert.Error(t, w.CheckCall(payable, plain, contract, []code.Value{big.NewInt(1)}))
	assert.Error(t, w.CheckCall(payable, nil, contract, []code.Value{big.NewInt(1)}))
	assert.Error(t, w.CheckCall(payable, contract, plain, []code.Value{big.NewInt(1)}))
	assert.Error(t, w.CheckCall(payable, contract, nil, []code.Value{big.NewInt(1)}))

	static := &code.Callable{DefiningClass: "test.Plain", Name: "s", Static: true, Entry: nopEntry}
	assert.NoError(t, w.CheckCall(static, nil, nil, nil))
	assert.Error(t, w.CheckCall(static, nil, plain, nil))
}

func TestCheckExported(t *testing.T) {
	w := NewWizard(testClasspath(t))
	assert.NoError(t, w.CheckExported(protocol.ClassContract))
	assert.True(t, errors.Is(w.CheckExported("test.Plain"), ErrNotExported))
	assert.Error(t, w.CheckExported("test.Missing"))
}

func TestAmount(t *testing.T) {
	tests := []struct {
		v    code.Value
		want int64
		ok   bool
	}{
		{big.NewInt(5), 5, true},
		{int32(6), 6, true},
		{int64(7), 7, true},
		{"8", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := Amount(tt.v)
		assert.Equal(t, tt.ok, ok)
		if ok {
			assert.Equal(t, tt.want, got.Int64())
		}
	}
}

func TestPredicatesRegistered(t *testing.T) {
	assert.Equal(t, []code.Tag{
		code.TagMustBeFalse,
		code.TagMustRedefineHashCode,
		code.TagMustRedefineHashCodeOrToString,
	}, Predicates())
	assert.Panics(t, func() {
		RegisterPredicate(code.TagMustBeFalse, func(*code.Classpath, code.Value) error { return nil })
	})
}
