package protocol

import (
	"math"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// ValueKind 存储值的判别字节，编码时写在值体之前
type ValueKind byte

const (
	KindBoolean ValueKind = iota + 1
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBigInteger
	KindString
	KindEnum
	KindNull
	KindReference
)

var valueKindNames = map[ValueKind]string{
	KindBoolean:    "boolean",
	KindByte:       "byte",
	KindChar:       "char",
	KindShort:      "short",
	KindInt:        "int",
	KindLong:       "long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindBigInteger: "biginteger",
	KindString:     "string",
	KindEnum:       "enum",
	KindNull:       "null",
	KindReference:  "reference",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// StorageValue 可以保存在对象字段中、或者作为参数和返回值跨越沙箱边界的值
type StorageValue interface {
	Kind() ValueKind
	Equal(StorageValue) bool
	String() string
	encodeBody(e *Encoder)
	jsonValue() interface{}
}

type BooleanValue bool

func (v BooleanValue) Kind() ValueKind { return KindBoolean }

func (v BooleanValue) Equal(o StorageValue) bool {
	ov, ok := o.(BooleanValue)
	return ok && ov == v
}

func (v BooleanValue) String() string         { return strconv.FormatBool(bool(v)) }
func (v BooleanValue) encodeBody(e *Encoder)  { e.Bool(1, bool(v)) }
func (v BooleanValue) jsonValue() interface{} { return bool(v) }

type ByteValue int8

func (v ByteValue) Kind() ValueKind { return KindByte }

func (v ByteValue) Equal(o StorageValue) bool {
	ov, ok := o.(ByteValue)
	return ok && ov == v
}

func (v ByteValue) String() string         { return strconv.Itoa(int(v)) }
func (v ByteValue) encodeBody(e *Encoder)  { e.Varint(1, int64(v)) }
func (v ByteValue) jsonValue() interface{} { return int8(v) }

type CharValue uint16

func (v CharValue) Kind() ValueKind { return KindChar }

func (v CharValue) Equal(o StorageValue) bool {
	ov, ok := o.(CharValue)
	return ok && ov == v
}

func (v CharValue) String() string         { return strconv.QuoteRune(rune(v)) }
func (v CharValue) encodeBody(e *Encoder)  { e.Uvarint(1, uint64(v)) }
func (v CharValue) jsonValue() interface{} { return uint16(v) }

type ShortValue int16

func (v ShortValue) Kind() ValueKind { return KindShort }

func (v ShortValue) Equal(o StorageValue) bool {
	ov, ok := o.(ShortValue)
	return ok && ov == v
}

func (v ShortValue) String() string         { return strconv.Itoa(int(v)) }
func (v ShortValue) encodeBody(e *Encoder)  { e.Varint(1, int64(v)) }
func (v ShortValue) jsonValue() interface{} { return int16(v) }

type IntValue int32

func (v IntValue) Kind() ValueKind { return KindInt }

func (v IntValue) Equal(o StorageValue) bool {
	ov, ok := o.(IntValue)
	return ok && ov == v
}

func (v IntValue) String() string         { return strconv.Itoa(int(v)) }
func (v IntValue) encodeBody(e *Encoder)  { e.Varint(1, int64(v)) }
func (v IntValue) jsonValue() interface{} { return int32(v) }

type LongValue int64

func (v LongValue) Kind() ValueKind { return KindLong }

func (v LongValue) Equal(o StorageValue) bool {
	ov, ok := o.(LongValue)
	return ok && ov == v
}

func (v LongValue) String() string         { return strconv.FormatInt(int64(v), 10) }
func (v LongValue) encodeBody(e *Encoder)  { e.Varint(1, int64(v)) }
func (v LongValue) jsonValue() interface{} { return strconv.FormatInt(int64(v), 10) }

// FloatValue 按位比较，NaN与自身相等
type FloatValue float32

func (v FloatValue) Kind() ValueKind { return KindFloat }

func (v FloatValue) Equal(o StorageValue) bool {
	ov, ok := o.(FloatValue)
	return ok && math.Float32bits(float32(ov)) == math.Float32bits(float32(v))
}

func (v FloatValue) String() string         { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
func (v FloatValue) encodeBody(e *Encoder)  { e.Fixed32(1, math.Float32bits(float32(v))) }
func (v FloatValue) jsonValue() interface{} { return float32(v) }

type DoubleValue float64

func (v DoubleValue) Kind() ValueKind { return KindDouble }

func (v DoubleValue) Equal(o StorageValue) bool {
	ov, ok := o.(DoubleValue)
	return ok && math.Float64bits(float64(ov)) == math.Float64bits(float64(v))
}

func (v DoubleValue) String() string         { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v DoubleValue) encodeBody(e *Encoder)  { e.Fixed64(1, math.Float64bits(float64(v))) }
func (v DoubleValue) jsonValue() interface{} { return float64(v) }

// BigIntegerValue 持有值的私有拷贝
type BigIntegerValue struct {
	v *big.Int
}

func NewBigInteger(i int64) BigIntegerValue {
	return BigIntegerValue{big.NewInt(i)}
}

func BigIntegerOf(i *big.Int) BigIntegerValue {
	if i == nil {
		return BigIntegerValue{new(big.Int)}
	}
	return BigIntegerValue{new(big.Int).Set(i)}
}

// Int 返回拷贝
func (v BigIntegerValue) Int() *big.Int {
	if v.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.v)
}

func (v BigIntegerValue) Kind() ValueKind { return KindBigInteger }

func (v BigIntegerValue) Equal(o StorageValue) bool {
	ov, ok := o.(BigIntegerValue)
	return ok && ov.Int().Cmp(v.Int()) == 0
}

func (v BigIntegerValue) String() string         { return v.Int().String() }
func (v BigIntegerValue) encodeBody(e *Encoder)  { e.BigInt(1, v.v) }
func (v BigIntegerValue) jsonValue() interface{} { return v.Int().String() }

type StringValue string

func (v StringValue) Kind() ValueKind { return KindString }

func (v StringValue) Equal(o StorageValue) bool {
	ov, ok := o.(StringValue)
	return ok && ov == v
}

func (v StringValue) String() string         { return strconv.Quote(string(v)) }
func (v StringValue) encodeBody(e *Encoder)  { e.String(1, string(v)) }
func (v StringValue) jsonValue() interface{} { return string(v) }

type EnumValue struct {
	ClassName string `json:"class"`
	Name      string `json:"name"`
}

func (v EnumValue) Kind() ValueKind { return KindEnum }

func (v EnumValue) Equal(o StorageValue) bool {
	ov, ok := o.(EnumValue)
	return ok && ov == v
}

func (v EnumValue) String() string { return v.ClassName + "." + v.Name }

func (v EnumValue) encodeBody(e *Encoder) {
	e.String(1, v.ClassName)
	e.String(2, v.Name)
}

func (v EnumValue) jsonValue() interface{} { return v }

type NullValue struct{}

var Null = NullValue{}

func (NullValue) Kind() ValueKind { return KindNull }

func (NullValue) Equal(o StorageValue) bool {
	_, ok := o.(NullValue)
	return ok
}

func (NullValue) String() string         { return "null" }
func (NullValue) encodeBody(e *Encoder)  {}
func (NullValue) jsonValue() interface{} { return nil }

func (r StorageReference) Kind() ValueKind { return KindReference }

func (r StorageReference) Equal(o StorageValue) bool {
	ov, ok := o.(StorageReference)
	return ok && ov == r
}

func (r StorageReference) encodeBody(e *Encoder) {
	encodeTxRef(e, 1, r.Transaction)
	e.Uvarint(2, r.Progressive)
}

func (r StorageReference) jsonValue() interface{} { return r.String() }

type valueDecoder func(d *Decoder) StorageValue

var valueDecoders = map[ValueKind]valueDecoder{
	KindBoolean: func(d *Decoder) StorageValue { return BooleanValue(d.Bool(1)) },
	KindByte:    func(d *Decoder) StorageValue { return ByteValue(d.Varint(1)) },
	KindChar:    func(d *Decoder) StorageValue { return CharValue(d.Uvarint(1)) },
	KindShort:   func(d *Decoder) StorageValue { return ShortValue(d.Varint(1)) },
	KindInt:     func(d *Decoder) StorageValue { return IntValue(d.Varint(1)) },
	KindLong:    func(d *Decoder) StorageValue { return LongValue(d.Varint(1)) },
	KindFloat: func(d *Decoder) StorageValue {
		return FloatValue(math.Float32frombits(d.Fixed32(1)))
	},
	KindDouble: func(d *Decoder) StorageValue {
		return DoubleValue(math.Float64frombits(d.Fixed64(1)))
	},
	KindBigInteger: func(d *Decoder) StorageValue { return BigIntegerValue{d.BigInt(1)} },
	KindString:     func(d *Decoder) StorageValue { return StringValue(d.String(1)) },
	KindEnum: func(d *Decoder) StorageValue {
		return EnumValue{ClassName: d.String(1), Name: d.String(2)}
	},
	KindNull: func(d *Decoder) StorageValue { return Null },
	KindReference: func(d *Decoder) StorageValue {
		var r StorageReference
		r.Transaction = decodeTxRef(d, 1)
		r.Progressive = d.Uvarint(2)
		return r
	},
}

func encodeValue(e *Encoder, num int, v StorageValue) {
	if v == nil {
		v = Null
	}
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.Uvarint(1, uint64(v.Kind()))
		sub.Message(2, v.encodeBody)
	})
}

func decodeValue(d *Decoder, num int) StorageValue {
	var v StorageValue = Null
	d.Message(fieldNum(num), func(sub *Decoder) {
		kind := ValueKind(sub.Uvarint(1))
		if sub.Err() != nil {
			return
		}
		dec, ok := valueDecoders[kind]
		if !ok {
			sub.fail(errors.Wrapf(ErrUnknownKind, "value kind %d", kind))
			return
		}
		sub.Message(2, func(body *Decoder) {
			v = dec(body)
		})
	})
	if d.Err() != nil {
		return Null
	}
	return v
}

func encodeValues(e *Encoder, num int, vs []StorageValue) {
	for _, v := range vs {
		encodeValue(e, num, v)
	}
}

func decodeValues(d *Decoder, num int) []StorageValue {
	var vs []StorageValue
	for d.Has(fieldNum(num)) {
		vs = append(vs, decodeValue(d, num))
	}
	return vs
}

func MarshalValue(v StorageValue) []byte {
	e := NewEncoder()
	encodeValue(e, 1, v)
	return e.Bytes()
}

func UnmarshalValue(b []byte) (StorageValue, error) {
	d := NewDecoder(b)
	v := decodeValue(d, 1)
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return v, nil
}

// ValuesEqual 逐个比较，nil视为Null
func ValuesEqual(a, b []StorageValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valueOrNull(a[i]).Equal(valueOrNull(b[i])) {
			return false
		}
	}
	return true
}

func valueOrNull(v StorageValue) StorageValue {
	if v == nil {
		return Null
	}
	return v
}
