package sandbox

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

var ErrNotStorable = errors.New("value cannot be stored")

// Serialize 运行时值转换为存储值，对象转换为它的引用
func Serialize(v code.Value) (protocol.StorageValue, error) {
	switch tv := v.(type) {
	case nil:
		return protocol.Null, nil
	case bool:
		return protocol.BooleanValue(tv), nil
	case int8:
		return protocol.ByteValue(tv), nil
	case uint16:
		return protocol.CharValue(tv), nil
	case int16:
		return protocol.ShortValue(tv), nil
	case int32:
		return protocol.IntValue(tv), nil
	case int64:
		return protocol.LongValue(tv), nil
	case float32:
		return protocol.FloatValue(tv), nil
	case float64:
		return protocol.DoubleValue(tv), nil
	case *big.Int:
		if tv == nil {
			return protocol.Null, nil
		}
		return protocol.BigIntegerOf(tv), nil
	case string:
		return protocol.StringValue(tv), nil
	case code.Enum:
		return protocol.EnumValue{ClassName: tv.ClassName, Name: tv.Name}, nil
	case code.Object:
		return tv.Reference(), nil
	}
	return nil, errors.Wrapf(ErrNotStorable, "%T", v)
}

// toRuntime 非引用存储值直接转换，引用由Deserializer处理
func toRuntime(v protocol.StorageValue) (code.Value, bool) {
	switch tv := v.(type) {
	case nil, protocol.NullValue:
		return nil, true
	case protocol.BooleanValue:
		return bool(tv), true
	case protocol.ByteValue:
		return int8(tv), true
	case protocol.CharValue:
		return uint16(tv), true
	case protocol.ShortValue:
		return int16(tv), true
	case protocol.IntValue:
		return int32(tv), true
	case protocol.LongValue:
		return int64(tv), true
	case protocol.FloatValue:
		return float32(tv), true
	case protocol.DoubleValue:
		return float64(tv), true
	case protocol.BigIntegerValue:
		return tv.Int(), true
	case protocol.StringValue:
		return string(tv), true
	case protocol.EnumValue:
		return code.Enum{ClassName: tv.ClassName, Name: tv.Name}, true
	}
	return nil, false
}
