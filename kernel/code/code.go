package code

import (
	"fmt"

	"github.com/xuperchain/objcore/kernel/protocol"
)

// Tag 可调用对象、参数和类上的能力标签
type Tag string

const (
	// 调用方作为隐式参数传入
	TagFromContract Tag = "FromContract"
	// 第一个参数是从调用方转给接收者的金额
	TagPayable Tag = "Payable"
	// 代码中抛出的受检异常作为结果返回而不是失败
	TagThrowsExceptions Tag = "ThrowsExceptions"
	// 调用不能产生状态变更
	TagView Tag = "View"
	// 类上的标签，由接收者支付gas
	TagSelfCharged Tag = "SelfCharged"

	// 参数标签
	TagMustBeFalse                    Tag = "MustBeFalse"
	TagMustRedefineHashCode           Tag = "MustRedefineHashCode"
	TagMustRedefineHashCodeOrToString Tag = "MustRedefineHashCodeOrToString"
)

type Tags []Tag

func (ts Tags) Has(tag Tag) bool {
	for _, t := range ts {
		if t == tag {
			return true
		}
	}
	return false
}

// Value 沙箱内的运行时值：bool、int8、uint16、int16、int32、int64、float32、float64、
// *big.Int、string、Enum、Object或nil
type Value interface{}

type Enum struct {
	ClassName string
	Name      string
}

// Object 沙箱内的对象，字段只能通过Context读写
type Object interface {
	Reference() protocol.StorageReference
	ClassName() string
}

// Context 执行上下文，代码对运行时的所有访问都经过它
type Context interface {
	// Caller 当前帧的调用方，静态调用链中没有调用方时为nil
	Caller() Object
	ChargeCPU(n uint64) error
	ChargeRAM(n uint64) error

	Get(obj Object, field protocol.FieldSignature) (Value, error)
	Set(obj Object, field protocol.FieldSignature, v Value) error

	// 以当前接收者为调用方发起嵌套调用，重新检查标签和可调用性
	Construct(sig protocol.ConstructorSignature, args ...Value) (Object, error)
	Call(receiver Object, sig protocol.MethodSignature, args ...Value) (Value, error)
	CallStatic(sig protocol.MethodSignature, args ...Value) (Value, error)

	// Event 记录事件，事件对象在交易结束时随结果一起持久化
	Event(ev Object) error
	InstanceOf(obj Object, className string) bool
}

// Entry 构造函数或方法的实现。构造函数的this是运行时已分配的新对象，静态方法的this为nil
type Entry func(ctx Context, this Object, args []Value) (Value, error)

// Exception 代码中抛出的异常
type Exception struct {
	ClassName string
	Message   string
	Where     string
}

func (e *Exception) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("%s: %s", e.ClassName, e.Message)
	}
	return fmt.Sprintf("%s: %s@%s", e.ClassName, e.Message, e.Where)
}

func Throw(className, format string, args ...interface{}) *Exception {
	return &Exception{ClassName: className, Message: fmt.Sprintf(format, args...)}
}

// Class 类的元数据
type Class struct {
	Name       string
	Superclass string
	// Exported 实例可以作为签名请求的参数或接收者
	Exported          bool
	Tags              Tags
	Fields            []protocol.FieldSignature
	RedefinesHashCode bool
	RedefinesToString bool
	// Package 定义该类的包，由加载器填写
	Package protocol.TransactionReference
}

func (c *Class) Field(name string) (protocol.FieldSignature, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return protocol.FieldSignature{}, false
}

// Callable 解析表中的构造函数或方法
type Callable struct {
	DefiningClass string
	// Name 构造函数为空
	Name    string
	Formals []protocol.StorageType
	Returns protocol.StorageType
	Static  bool
	Tags    Tags
	// ParamTags 按参数下标
	ParamTags map[int]Tags
	// ReceiverTags 对接收者检查，静态方法忽略
	ReceiverTags Tags
	Entry        Entry
}

func (c *Callable) IsConstructor() bool {
	return c.Name == ""
}

func (c *Callable) ConstructorSignature() protocol.ConstructorSignature {
	return protocol.ConstructorSignature{DefiningClass: c.DefiningClass, Formals: c.Formals}
}

func (c *Callable) MethodSignature() protocol.MethodSignature {
	return protocol.MethodSignature{
		DefiningClass: c.DefiningClass,
		Name:          c.Name,
		Formals:       c.Formals,
		Returns:       c.Returns,
	}
}

// Key 解析表中的键
func (c *Callable) Key() string {
	if c.IsConstructor() {
		return c.ConstructorSignature().String()
	}
	return c.MethodSignature().String()
}

func (c *Callable) String() string {
	return c.Key()
}
