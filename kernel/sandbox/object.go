package sandbox

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

var (
	ErrNoSuchField   = errors.New("no such field")
	ErrTypeMismatch  = errors.New("value does not match field type")
	ErrNotLoaded     = errors.New("field not loaded")
	ErrForeignObject = errors.New("object does not belong to this execution")
)

// slot 字段槽。持久化对象的引用字段在第一次读取时才加载
type slot struct {
	stored protocol.StorageValue
	value  code.Value
	loaded bool
}

// Object 沙箱中的对象，实现code.Object
type Object struct {
	ref   protocol.StorageReference
	class *code.Class
	// fresh 本交易中创建，尚未持久化
	fresh  bool
	fields []protocol.FieldSignature
	slots  map[protocol.FieldSignature]*slot
}

func newObject(ref protocol.StorageReference, class *code.Class, fields []protocol.FieldSignature, fresh bool) *Object {
	return &Object{
		ref:    ref,
		class:  class,
		fresh:  fresh,
		fields: fields,
		slots:  make(map[protocol.FieldSignature]*slot, len(fields)),
	}
}

func (o *Object) Reference() protocol.StorageReference {
	return o.ref
}

func (o *Object) ClassName() string {
	return o.class.Name
}

func (o *Object) Class() *code.Class {
	return o.class
}

func (o *Object) IsFresh() bool {
	return o.fresh
}

// Fields 继承链上全部字段，规范顺序
func (o *Object) Fields() []protocol.FieldSignature {
	return o.fields
}

func (o *Object) slot(f protocol.FieldSignature) (*slot, error) {
	s, ok := o.slots[f]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchField, "%s in %s", f, o.class.Name)
	}
	return s, nil
}

// Value 读取已加载字段，不计费，供builder读取余额和nonce
func (o *Object) Value(f protocol.FieldSignature) (code.Value, error) {
	s, err := o.slot(f)
	if err != nil {
		return nil, err
	}
	if !s.loaded {
		return nil, errors.Wrapf(ErrNotLoaded, "%s", f)
	}
	return s.value, nil
}

// SetValue 不计费地写字段，供builder修改余额和nonce
func (o *Object) SetValue(f protocol.FieldSignature, v code.Value) error {
	s, err := o.slot(f)
	if err != nil {
		return err
	}
	if !Assignable(v, f.Type) {
		return errors.Wrapf(ErrTypeMismatch, "%T to %s", v, f)
	}
	if i, ok := v.(*big.Int); ok && i != nil {
		v = new(big.Int).Set(i)
	}
	s.value = v
	s.loaded = true
	return nil
}

// BigInteger 读取大整数字段，null视为0
func (o *Object) BigInteger(f protocol.FieldSignature) (*big.Int, error) {
	v, err := o.Value(f)
	if err != nil {
		return nil, err
	}
	i, ok := v.(*big.Int)
	if !ok || i == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(i), nil
}

// Assignable 运行时值能否写入该类型的字段
func Assignable(v code.Value, t protocol.StorageType) bool {
	switch t {
	case protocol.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case protocol.TypeByte:
		_, ok := v.(int8)
		return ok
	case protocol.TypeChar:
		_, ok := v.(uint16)
		return ok
	case protocol.TypeShort:
		_, ok := v.(int16)
		return ok
	case protocol.TypeInt:
		_, ok := v.(int32)
		return ok
	case protocol.TypeLong:
		_, ok := v.(int64)
		return ok
	case protocol.TypeFloat:
		_, ok := v.(float32)
		return ok
	case protocol.TypeDouble:
		_, ok := v.(float64)
		return ok
	}

	if v == nil {
		return true
	}
	switch tv := v.(type) {
	case *big.Int:
		return t == protocol.TypeBigInteger || tv == nil
	case string:
		return t == protocol.TypeString
	case code.Enum:
		return tv.ClassName == string(t)
	case code.Object:
		// 具体的子类关系由执行上下文检查
		return t.IsClass() && t != protocol.TypeBigInteger && t != protocol.TypeString
	}
	return false
}

// defaultValue 新对象字段的初值；大整数为0
func defaultValue(t protocol.StorageType) code.Value {
	switch t {
	case protocol.TypeBoolean:
		return false
	case protocol.TypeByte:
		return int8(0)
	case protocol.TypeChar:
		return uint16(0)
	case protocol.TypeShort:
		return int16(0)
	case protocol.TypeInt:
		return int32(0)
	case protocol.TypeLong:
		return int64(0)
	case protocol.TypeFloat:
		return float32(0)
	case protocol.TypeDouble:
		return float64(0)
	case protocol.TypeBigInteger:
		return new(big.Int)
	}
	return nil
}
