package protocol

import (
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// StorageType 基本类型名或类名
type StorageType string

const (
	TypeBoolean StorageType = "boolean"
	TypeByte    StorageType = "byte"
	TypeChar    StorageType = "char"
	TypeShort   StorageType = "short"
	TypeInt     StorageType = "int"
	TypeLong    StorageType = "long"
	TypeFloat   StorageType = "float"
	TypeDouble  StorageType = "double"
)

var basicTypes = map[StorageType]bool{
	TypeBoolean: true,
	TypeByte:    true,
	TypeChar:    true,
	TypeShort:   true,
	TypeInt:     true,
	TypeLong:    true,
	TypeFloat:   true,
	TypeDouble:  true,
}

// 运行时基础包中的类
const (
	ClassObject                 = "lang.Object"
	ClassStorage                = "lang.Storage"
	ClassContract               = "lang.Contract"
	ClassExternallyOwnedAccount = "lang.ExternallyOwnedAccount"
	ClassGamete                 = "lang.Gamete"
	ClassEvent                  = "lang.Event"
	ClassManifest               = "lang.Manifest"
	ClassDummy                  = "lang.Dummy"
	ClassBigInteger             = "lang.BigInteger"
	ClassString                 = "lang.String"

	ClassThrowable                = "lang.Throwable"
	ClassException                = "lang.Exception"
	ClassRuntimeException         = "lang.RuntimeException"
	ClassError                    = "lang.Error"
	ClassIllegalArgumentException = "lang.IllegalArgumentException"
	ClassIllegalStateException    = "lang.IllegalStateException"
	ClassInsufficientFundsError   = "lang.InsufficientFundsError"
	ClassOutOfGasError            = "lang.OutOfGasError"
	ClassIllegalCallError         = "lang.IllegalCallError"
	ClassInternalError            = "lang.InternalError"
	ClassDeserializationError     = "lang.DeserializationError"
)

// BuiltinSuperclasses 运行时异常类的父类，不依赖classpath
var BuiltinSuperclasses = map[string]string{
	ClassThrowable:                ClassObject,
	ClassException:                ClassThrowable,
	ClassRuntimeException:         ClassException,
	ClassError:                    ClassThrowable,
	ClassIllegalArgumentException: ClassRuntimeException,
	ClassIllegalStateException:    ClassRuntimeException,
	ClassInsufficientFundsError:   ClassError,
	ClassOutOfGasError:            ClassError,
	ClassIllegalCallError:         ClassError,
	ClassInternalError:            ClassError,
	ClassDeserializationError:     ClassError,
}

const (
	TypeBigInteger = StorageType(ClassBigInteger)
	TypeString     = StorageType(ClassString)
)

func ClassType(className string) StorageType {
	return StorageType(className)
}

func (t StorageType) IsBasic() bool {
	return basicTypes[t]
}

func (t StorageType) IsClass() bool {
	return t != "" && !t.IsBasic()
}

// IsEager 基本类型、BigInteger、String和枚举在反序列化时直接加载，其余引用字段懒加载
func (t StorageType) IsEager() bool {
	return t.IsBasic() || t == TypeBigInteger || t == TypeString
}

func (t StorageType) ClassName() string {
	if t.IsBasic() {
		return ""
	}
	return string(t)
}

// 常用字段
var (
	FieldBalance         = FieldSignature{ClassContract, "balance", TypeBigInteger}
	FieldNonce           = FieldSignature{ClassExternallyOwnedAccount, "nonce", TypeBigInteger}
	FieldPublicKey       = FieldSignature{ClassExternallyOwnedAccount, "publicKey", TypeString}
	FieldEventCreator    = FieldSignature{ClassEvent, "creator", ClassType(ClassContract)}
	FieldManifestChainID = FieldSignature{ClassManifest, "chainId", TypeString}
	FieldManifestGamete  = FieldSignature{ClassManifest, "gamete", ClassType(ClassGamete)}
)

type FieldSignature struct {
	DefiningClass string      `json:"definingClass"`
	Name          string      `json:"name"`
	Type          StorageType `json:"type"`
}

func (f FieldSignature) String() string {
	return f.DefiningClass + "." + f.Name + ":" + string(f.Type)
}

func (f FieldSignature) Compare(o FieldSignature) int {
	if c := strings.Compare(f.DefiningClass, o.DefiningClass); c != 0 {
		return c
	}
	if c := strings.Compare(f.Name, o.Name); c != 0 {
		return c
	}
	return strings.Compare(string(f.Type), string(o.Type))
}

type ConstructorSignature struct {
	DefiningClass string        `json:"definingClass"`
	Formals       []StorageType `json:"formals"`
}

func (c ConstructorSignature) String() string {
	return c.DefiningClass + "(" + joinTypes(c.Formals) + ")"
}

// FromContract 追加隐式调用方参数后的签名
func (c ConstructorSignature) FromContract() ConstructorSignature {
	return ConstructorSignature{c.DefiningClass, fromContractFormals(c.Formals)}
}

func (c ConstructorSignature) Equal(o ConstructorSignature) bool {
	return c.String() == o.String()
}

// MethodSignature Returns为空表示void
type MethodSignature struct {
	DefiningClass string        `json:"definingClass"`
	Name          string        `json:"name"`
	Formals       []StorageType `json:"formals"`
	Returns       StorageType   `json:"returns,omitempty"`
}

func (m MethodSignature) IsVoid() bool {
	return m.Returns == ""
}

func (m MethodSignature) String() string {
	ret := "void"
	if !m.IsVoid() {
		ret = string(m.Returns)
	}
	return m.DefiningClass + "." + m.Name + "(" + joinTypes(m.Formals) + "):" + ret
}

func (m MethodSignature) FromContract() MethodSignature {
	return MethodSignature{m.DefiningClass, m.Name, fromContractFormals(m.Formals), m.Returns}
}

func (m MethodSignature) Equal(o MethodSignature) bool {
	return m.String() == o.String()
}

// 隐式参数：调用方合约和占位的Dummy
func fromContractFormals(formals []StorageType) []StorageType {
	out := make([]StorageType, 0, len(formals)+2)
	out = append(out, formals...)
	return append(out, ClassType(ClassContract), ClassType(ClassDummy))
}

func joinTypes(ts []StorageType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func fieldNum(n int) protowire.Number {
	return protowire.Number(n)
}

func encodeTypes(e *Encoder, num int, ts []StorageType) {
	for _, t := range ts {
		e.String(fieldNum(num), string(t))
	}
}

func decodeTypes(d *Decoder, num int) []StorageType {
	var ts []StorageType
	for d.Has(fieldNum(num)) {
		ts = append(ts, StorageType(d.String(fieldNum(num))))
	}
	return ts
}

func encodeFieldSig(e *Encoder, num int, f FieldSignature) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.String(1, f.DefiningClass)
		sub.String(2, f.Name)
		sub.String(3, string(f.Type))
	})
}

func decodeFieldSig(d *Decoder, num int) FieldSignature {
	var f FieldSignature
	d.Message(fieldNum(num), func(sub *Decoder) {
		f.DefiningClass = sub.String(1)
		f.Name = sub.String(2)
		f.Type = StorageType(sub.String(3))
	})
	return f
}

func encodeConstructorSig(e *Encoder, num int, c ConstructorSignature) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.String(1, c.DefiningClass)
		encodeTypes(sub, 2, c.Formals)
	})
}

func decodeConstructorSig(d *Decoder, num int) ConstructorSignature {
	var c ConstructorSignature
	d.Message(fieldNum(num), func(sub *Decoder) {
		c.DefiningClass = sub.String(1)
		c.Formals = decodeTypes(sub, 2)
	})
	return c
}

func encodeMethodSig(e *Encoder, num int, m MethodSignature) {
	e.Message(fieldNum(num), func(sub *Encoder) {
		sub.String(1, m.DefiningClass)
		sub.String(2, m.Name)
		encodeTypes(sub, 3, m.Formals)
		sub.String(4, string(m.Returns))
	})
}

func decodeMethodSig(d *Decoder, num int) MethodSignature {
	var m MethodSignature
	d.Message(fieldNum(num), func(sub *Decoder) {
		m.DefiningClass = sub.String(1)
		m.Name = sub.String(2)
		m.Formals = decodeTypes(sub, 3)
		m.Returns = StorageType(sub.String(4))
	})
	return m
}
