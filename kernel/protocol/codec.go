package protocol

import (
	"math/big"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMalformed    = errors.New("malformed encoding")
	ErrUnknownKind  = errors.New("unknown discriminator")
	ErrTrailingData = errors.New("trailing data after message")
)

// Encoder 规范二进制编码：protobuf wire格式，字段按编号顺序全部写出
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Uvarint(num protowire.Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *Encoder) Varint(num protowire.Number, v int64) {
	e.Uvarint(num, protowire.EncodeZigZag(v))
}

func (e *Encoder) Bool(num protowire.Number, v bool) {
	e.Uvarint(num, protowire.EncodeBool(v))
}

func (e *Encoder) Fixed64(num protowire.Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, v)
}

func (e *Encoder) Fixed32(num protowire.Number, v uint32) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, v)
}

func (e *Encoder) RawBytes(num protowire.Number, v []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

func (e *Encoder) String(num protowire.Number, v string) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

// Message 写入嵌套的length-delimited消息
func (e *Encoder) Message(num protowire.Number, body func(*Encoder)) {
	sub := &Encoder{}
	body(sub)
	e.RawBytes(num, sub.buf)
}

// BigInt 写符号和绝对值，nil按0处理
func (e *Encoder) BigInt(num protowire.Number, v *big.Int) {
	e.Message(num, func(sub *Encoder) {
		if v == nil {
			sub.Bool(1, false)
			sub.RawBytes(2, nil)
			return
		}
		sub.Bool(1, v.Sign() < 0)
		sub.RawBytes(2, new(big.Int).Abs(v).Bytes())
	})
}

// Decoder 读取Encoder的输出。第一次出错后后续读取都返回零值，由Err报告错误
type Decoder struct {
	buf []byte
	err error
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Finish 还有未读字节时报错
func (d *Decoder) Finish() error {
	if d.err == nil && len(d.buf) > 0 {
		d.err = ErrTrailingData
	}
	return d.err
}

// Has 下一个字段是否为给定编号
func (d *Decoder) Has(num protowire.Number) bool {
	if d.err != nil || len(d.buf) == 0 {
		return false
	}
	n, _, l := protowire.ConsumeTag(d.buf)
	return l > 0 && n == num
}

func (d *Decoder) tag(num protowire.Number, typ protowire.Type) bool {
	if d.err != nil {
		return false
	}
	n, t, l := protowire.ConsumeTag(d.buf)
	if l < 0 {
		d.fail(errors.Wrap(protowire.ParseError(l), "read tag"))
		return false
	}
	if n != num || t != typ {
		d.fail(errors.Wrapf(ErrMalformed, "expect field %d type %d, got field %d type %d", num, typ, n, t))
		return false
	}
	d.buf = d.buf[l:]
	return true
}

func (d *Decoder) Uvarint(num protowire.Number) uint64 {
	if !d.tag(num, protowire.VarintType) {
		return 0
	}
	v, l := protowire.ConsumeVarint(d.buf)
	if l < 0 {
		d.fail(errors.Wrap(protowire.ParseError(l), "read varint"))
		return 0
	}
	d.buf = d.buf[l:]
	return v
}

func (d *Decoder) Varint(num protowire.Number) int64 {
	return protowire.DecodeZigZag(d.Uvarint(num))
}

func (d *Decoder) Bool(num protowire.Number) bool {
	return protowire.DecodeBool(d.Uvarint(num))
}

func (d *Decoder) Fixed64(num protowire.Number) uint64 {
	if !d.tag(num, protowire.Fixed64Type) {
		return 0
	}
	v, l := protowire.ConsumeFixed64(d.buf)
	if l < 0 {
		d.fail(errors.Wrap(protowire.ParseError(l), "read fixed64"))
		return 0
	}
	d.buf = d.buf[l:]
	return v
}

func (d *Decoder) Fixed32(num protowire.Number) uint32 {
	if !d.tag(num, protowire.Fixed32Type) {
		return 0
	}
	v, l := protowire.ConsumeFixed32(d.buf)
	if l < 0 {
		d.fail(errors.Wrap(protowire.ParseError(l), "read fixed32"))
		return 0
	}
	d.buf = d.buf[l:]
	return v
}

func (d *Decoder) RawBytes(num protowire.Number) []byte {
	if !d.tag(num, protowire.BytesType) {
		return nil
	}
	v, l := protowire.ConsumeBytes(d.buf)
	if l < 0 {
		d.fail(errors.Wrap(protowire.ParseError(l), "read bytes"))
		return nil
	}
	d.buf = d.buf[l:]
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (d *Decoder) String(num protowire.Number) string {
	return string(d.RawBytes(num))
}

// Message 读取嵌套消息交给body，body必须读完
func (d *Decoder) Message(num protowire.Number, body func(*Decoder)) {
	raw := d.RawBytes(num)
	if d.err != nil {
		return
	}
	sub := NewDecoder(raw)
	body(sub)
	if err := sub.Finish(); err != nil {
		d.fail(err)
	}
}

func (d *Decoder) BigInt(num protowire.Number) *big.Int {
	v := new(big.Int)
	d.Message(num, func(sub *Decoder) {
		neg := sub.Bool(1)
		v.SetBytes(sub.RawBytes(2))
		if neg {
			v.Neg(v)
		}
	})
	return v
}
