package sandbox

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/store"
)

var (
	nodeNext  = protocol.FieldSignature{DefiningClass: "test.Node", Name: "next", Type: protocol.ClassType("test.Node")}
	nodeValue = protocol.FieldSignature{DefiningClass: "test.Node", Name: "value", Type: protocol.TypeInt}
	nodeLabel = protocol.FieldSignature{DefiningClass: "test.Node", Name: "label", Type: protocol.TypeString}
)

func testRef(b byte) protocol.TransactionReference {
	var ref protocol.TransactionReference
	ref[0] = b
	return ref
}

func nopEntry(code.Context, code.Object, []code.Value) (code.Value, error) { return nil, nil }

func testClasspath(t *testing.T, extra ...*code.Callable) *code.Classpath {
	p := code.NewPackage("test", "1.0")
	p.AddClass(&code.Class{Name: protocol.ClassObject})
	p.AddClass(&code.Class{
		Name:       protocol.ClassContract,
		Superclass: protocol.ClassObject,
		Exported:   true,
		Fields:     []protocol.FieldSignature{protocol.FieldBalance},
	})
	p.AddClass(&code.Class{Name: protocol.ClassDummy, Superclass: protocol.ClassObject})
	p.AddClass(&code.Class{
		Name:       protocol.ClassEvent,
		Superclass: protocol.ClassObject,
		Fields:     []protocol.FieldSignature{protocol.FieldEventCreator},
	})
	p.AddClass(&code.Class{
		Name:       "test.Node",
		Superclass: protocol.ClassObject,
		Exported:   true,
		Fields:     []protocol.FieldSignature{nodeNext, nodeValue, nodeLabel},
	})
	p.AddCallable(&code.Callable{
		DefiningClass: protocol.ClassContract,
		Name:          "receive",
		Formals:       []protocol.StorageType{protocol.TypeBigInteger, protocol.ClassType(protocol.ClassContract), protocol.ClassType(protocol.ClassDummy)},
		Tags:          code.Tags{code.TagFromContract, code.TagPayable},
		Entry:         nopEntry,
	})
	for _, c := range extra {
		p.AddCallable(c)
	}
	p.Bind(testRef(1), 100, nil)
	cp, err := code.NewClasspath(testRef(1), []*code.Package{p})
	require.NoError(t, err)
	return cp
}

// memReader 只实现反序列化需要的State和Version
type memReader struct {
	store.Reader
	states   map[protocol.StorageReference][]protocol.Update
	versions map[protocol.StorageReference]protocol.TransactionReference
}

func newMemReader() *memReader {
	return &memReader{
		states:   make(map[protocol.StorageReference][]protocol.Update),
		versions: make(map[protocol.StorageReference]protocol.TransactionReference),
	}
}

func (r *memReader) put(obj protocol.StorageReference, className string, fields ...protocol.FieldUpdate) {
	state := []protocol.Update{protocol.ClassTag{Object: obj, ClassName: className, Package: testRef(1)}}
	for _, f := range fields {
		f.Object = obj
		state = append(state, f)
	}
	r.states[obj] = state
	r.versions[obj] = obj.Transaction
}

func (r *memReader) State(obj protocol.StorageReference) ([]protocol.Update, error) {
	s, ok := r.states[obj]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (r *memReader) Version(obj protocol.StorageReference) (protocol.TransactionReference, error) {
	v, ok := r.versions[obj]
	if !ok {
		return protocol.TransactionReference{}, store.ErrNotFound
	}
	return v, nil
}

func newTestExecution(t *testing.T, r store.Reader, limit uint64, extra ...*code.Callable) *Execution {
	costs := gas.DefaultCostModel()
	d := NewDeserializer(r, testClasspath(t, extra...), costs)
	m := gas.NewMeter(uint256.NewInt(limit))
	d.SetCharger(m)
	return NewExecution(testRef(9), d, m, costs)
}

func TestSerializeRoundTrip(t *testing.T) {
	values := []code.Value{
		nil, true, int8(-3), uint16('x'), int16(300), int32(-7), int64(1 << 40),
		float32(1.5), float64(-2.25), big.NewInt(12345), "hello",
		code.Enum{ClassName: "test.Color", Name: "RED"},
	}
	for _, v := range values {
		sv, err := Serialize(v)
		require.NoError(t, err)
		back, ok := toRuntime(sv)
		require.True(t, ok)
		assert.Equal(t, v, back)
	}

	_, err := Serialize(struct{}{})
	assert.True(t, errors.Is(err, ErrNotStorable))
	_, ok := toRuntime(protocol.StorageReference{Transaction: testRef(1)})
	assert.False(t, ok)
}

func TestNewObjectExtraction(t *testing.T) {
	e := newTestExecution(t, newMemReader(), 1000)
	obj, err := e.New("test.Node")
	require.NoError(t, err)
	assert.True(t, obj.IsFresh())
	assert.Equal(t, protocol.StorageReference{Transaction: testRef(9)}, obj.Reference())

	require.NoError(t, e.Set(obj, nodeValue, int32(42)))
	updates, err := e.ExtractUpdates(obj)
	require.NoError(t, err)
	require.Len(t, updates, 4)
	assert.Equal(t, protocol.ClassTag{Object: obj.Reference(), ClassName: "test.Node", Package: testRef(1)}, updates[0])

	got := protocol.UpdatesOf(updates, obj.Reference())
	assert.Contains(t, got, protocol.Update(protocol.FieldUpdate{Object: obj.Reference(), Field: nodeValue, Value: protocol.IntValue(42)}))
	assert.Contains(t, got, protocol.Update(protocol.FieldUpdate{Object: obj.Reference(), Field: nodeNext, Value: protocol.Null}))

	second, err := e.New("test.Node")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.Reference().Progressive)
}

func TestLazyLoadingAndChangedFields(t *testing.T) {
	r := newMemReader()
	n1 := protocol.StorageReference{Transaction: testRef(5)}
	n2 := protocol.StorageReference{Transaction: testRef(5), Progressive: 1}
	r.put(n1, "test.Node",
		protocol.FieldUpdate{Field: nodeNext, Value: n2},
		protocol.FieldUpdate{Field: nodeValue, Value: protocol.IntValue(1)})
	r.put(n2, "test.Node",
		protocol.FieldUpdate{Field: nodeValue, Value: protocol.IntValue(2)},
		protocol.FieldUpdate{Field: nodeLabel, Value: protocol.StringValue("tail")})

	e := newTestExecution(t, r, 1000)
	d := e.Deserializer()
	v, err := d.Deserialize(n1)
	require.NoError(t, err)
	head := v.(*Object)
	assert.Equal(t, 1, d.Loaded())

	next, err := e.Get(head, nodeNext)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Loaded())
	tail := next.(*Object)
	assert.Equal(t, n2, tail.Reference())

	again, err := d.Deserialize(n2)
	require.NoError(t, err)
	assert.Same(t, tail, again)

	updates, err := e.ExtractUpdates(head)
	require.NoError(t, err)
	assert.Empty(t, updates)

	require.NoError(t, e.Set(tail, nodeValue, int32(3)))
	updates, err = e.ExtractUpdates(head)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Update{
		protocol.FieldUpdate{Object: n2, Field: nodeValue, Value: protocol.IntValue(3)},
	}, updates)

	// 改回存储中的值不产生更新
	require.NoError(t, e.Set(tail, nodeValue, int32(2)))
	updates, err = e.ExtractUpdates(head)
	require.NoError(t, err)
	assert.Empty(t, updates)

	assert.Equal(t, store.ReadSet{n1: testRef(5), n2: testRef(5)}, d.ReadSet())
}

func TestSetTypeMismatch(t *testing.T) {
	e := newTestExecution(t, newMemReader(), 1000)
	obj, err := e.New("test.Node")
	require.NoError(t, err)

	err = e.Set(obj, nodeValue, "not an int")
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	assert.Error(t, e.Fatal())
}

func TestPayableTransfer(t *testing.T) {
	r := newMemReader()
	payer := protocol.StorageReference{Transaction: testRef(3)}
	payee := protocol.StorageReference{Transaction: testRef(4)}
	r.put(payer, protocol.ClassContract, protocol.FieldUpdate{Field: protocol.FieldBalance, Value: protocol.NewBigInteger(100)})
	r.put(payee, protocol.ClassContract, protocol.FieldUpdate{Field: protocol.FieldBalance, Value: protocol.NewBigInteger(0)})

	e := newTestExecution(t, r, 1000)
	from, err := e.Deserializer().Object(payer)
	require.NoError(t, err)
	to, err := e.Deserializer().Object(payee)
	require.NoError(t, err)

	receive := protocol.MethodSignature{
		DefiningClass: protocol.ClassContract,
		Name:          "receive",
		Formals:       []protocol.StorageType{protocol.TypeBigInteger},
	}
	c, fromContract, err := e.cp.ResolveMethodFrom(protocol.ClassContract, receive)
	require.NoError(t, err)
	require.True(t, fromContract)

	_, err = e.Invoke(c, from, to, FromContractArgs([]code.Value{big.NewInt(30)}, from))
	require.NoError(t, err)
	fb, _ := from.BigInteger(protocol.FieldBalance)
	tb, _ := to.BigInteger(protocol.FieldBalance)
	assert.Equal(t, int64(70), fb.Int64())
	assert.Equal(t, int64(30), tb.Int64())

	_, err = e.Invoke(c, from, to, FromContractArgs([]code.Value{big.NewInt(200)}, from))
	var exc *code.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, protocol.ClassInsufficientFundsError, exc.ClassName)
	assert.NoError(t, e.Fatal())

	updates, err := e.ExtractUpdates(from, to)
	require.NoError(t, err)
	assert.Len(t, updates, 2)
}

func TestInvokeRecoversPanic(t *testing.T) {
	boom := &code.Callable{
		DefiningClass: "test.Node",
		Name:          "boom",
		Static:        true,
		Entry: func(code.Context, code.Object, []code.Value) (code.Value, error) {
			panic("boom")
		},
	}
	e := newTestExecution(t, newMemReader(), 1000, boom)
	_, err := e.Invoke(boom, nil, nil, nil)
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, err, e.Fatal())
	assert.Empty(t, e.frames)
}

func TestOutOfGas(t *testing.T) {
	e := newTestExecution(t, newMemReader(), 3)
	_, err := e.New("test.Node")
	assert.True(t, errors.Is(err, gas.ErrOutOfGas))
	assert.True(t, e.Meter().Exhausted())
}

func TestEventMustBeEvent(t *testing.T) {
	e := newTestExecution(t, newMemReader(), 1000)
	obj, err := e.New("test.Node")
	require.NoError(t, err)
	assert.Error(t, e.Event(obj))

	ev, err := e.New(protocol.ClassEvent)
	require.NoError(t, err)
	require.NoError(t, e.Event(ev))
	assert.Len(t, e.Events(), 1)
}
