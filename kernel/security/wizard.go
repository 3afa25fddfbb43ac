package security

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/protocol"
)

var ErrNotExported = errors.New("class is not exported")

// IllegalCallError 调用违反了能力标签的约束，执行结果为失败
type IllegalCallError struct {
	Callable string
	Msg      string
}

func (e *IllegalCallError) Error() string {
	if e.Callable == "" {
		return "illegal call: " + e.Msg
	}
	return fmt.Sprintf("illegal call to %s: %s", e.Callable, e.Msg)
}

func Illegal(callable, format string, args ...interface{}) *IllegalCallError {
	return &IllegalCallError{Callable: callable, Msg: fmt.Sprintf(format, args...)}
}

// Predicate 检查一个实参是否满足参数标签
type Predicate func(cp *code.Classpath, v code.Value) error

var (
	predsMu    sync.RWMutex
	predicates = make(map[code.Tag]Predicate)
)

func RegisterPredicate(tag code.Tag, p Predicate) {
	predsMu.Lock()
	defer predsMu.Unlock()

	if p == nil {
		panic("security: RegisterPredicate predicate is nil")
	}
	if _, dup := predicates[tag]; dup {
		panic("security: RegisterPredicate called twice for tag " + string(tag))
	}
	predicates[tag] = p
}

func Predicates() []code.Tag {
	predsMu.RLock()
	defer predsMu.RUnlock()
	list := make([]code.Tag, 0, len(predicates))
	for tag := range predicates {
		list = append(list, tag)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func getPredicate(tag code.Tag) (Predicate, bool) {
	predsMu.RLock()
	defer predsMu.RUnlock()
	p, ok := predicates[tag]
	return p, ok
}

// Wizard 在每次调用时用实际值检查能力标签，builder内的每一层嵌套调用都会经过它
type Wizard struct {
	cp *code.Classpath
}

func NewWizard(cp *code.Classpath) *Wizard {
	return &Wizard{cp: cp}
}

// CheckCall caller是发起调用的对象，receiver对构造函数是新分配的对象
func (w *Wizard) CheckCall(c *code.Callable, caller, receiver code.Object, args []code.Value) error {
	name := c.String()
	if len(args) != len(c.Formals) {
		return Illegal(name, "expected %d arguments, got %d", len(c.Formals), len(args))
	}

	switch {
	case c.Static && receiver != nil:
		return Illegal(name, "static callable with a receiver")
	case !c.Static && receiver == nil:
		return Illegal(name, "missing receiver")
	case receiver != nil && !w.cp.IsSubclass(receiver.ClassName(), c.DefiningClass):
		return Illegal(name, "receiver of class %s", receiver.ClassName())
	}

	if c.Tags.Has(code.TagFromContract) {
		if caller == nil || !w.cp.IsSubclass(caller.ClassName(), protocol.ClassContract) {
			return Illegal(name, "caller must be a contract")
		}
	}
	if c.Tags.Has(code.TagPayable) {
		if len(args) == 0 {
			return Illegal(name, "payable callable without amount")
		}
		amount, ok := Amount(args[0])
		if !ok {
			return Illegal(name, "payable amount of type %T", args[0])
		}
		if amount.Sign() < 0 {
			return Illegal(name, "negative payable amount")
		}
	}

	if receiver != nil {
		for _, tag := range c.ReceiverTags {
			p, ok := getPredicate(tag)
			if !ok {
				return Illegal(name, "unknown tag %s on receiver", tag)
			}
			if err := p(w.cp, receiver); err != nil {
				return Illegal(name, "receiver violates %s: %v", tag, err)
			}
		}
	}
	for i, arg := range args {
		for _, tag := range c.ParamTags[i] {
			p, ok := getPredicate(tag)
			if !ok {
				return Illegal(name, "unknown tag %s on argument %d", tag, i)
			}
			if err := p(w.cp, arg); err != nil {
				return Illegal(name, "argument %d violates %s: %v", i, tag, err)
			}
		}
	}
	return nil
}

// CheckExported 签名请求的实参和接收者的类必须是导出的
func (w *Wizard) CheckExported(className string) error {
	c, err := w.cp.Class(className)
	if err != nil {
		return err
	}
	if !c.Exported {
		return errors.Wrapf(ErrNotExported, "class %s", className)
	}
	return nil
}

// Amount 可以作为转账金额的运行时值
func Amount(v code.Value) (*big.Int, bool) {
	switch a := v.(type) {
	case *big.Int:
		if a == nil {
			return nil, false
		}
		return a, true
	case int32:
		return big.NewInt(int64(a)), true
	case int64:
		return big.NewInt(a), true
	}
	return nil, false
}

func init() {
	RegisterPredicate(code.TagMustBeFalse, func(cp *code.Classpath, v code.Value) error {
		b, ok := v.(bool)
		if !ok {
			return errors.Errorf("not a boolean: %T", v)
		}
		if b {
			return errors.New("must be false")
		}
		return nil
	})
	RegisterPredicate(code.TagMustRedefineHashCode, func(cp *code.Classpath, v code.Value) error {
		return redefines(cp, v, func(c *code.Class) bool { return c.RedefinesHashCode })
	})
	RegisterPredicate(code.TagMustRedefineHashCodeOrToString, func(cp *code.Classpath, v code.Value) error {
		return redefines(cp, v, func(c *code.Class) bool { return c.RedefinesHashCode || c.RedefinesToString })
	})
}

// redefines 基本类型、字符串、大整数和枚举本身满足要求；对象需要继承链上有类重定义
func redefines(cp *code.Classpath, v code.Value, test func(*code.Class) bool) error {
	obj, ok := v.(code.Object)
	if !ok {
		return nil
	}
	for _, name := range cp.Ancestors(obj.ClassName()) {
		if name == protocol.ClassObject {
			break
		}
		c, err := cp.Class(name)
		if err != nil {
			return err
		}
		if test(c) {
			return nil
		}
	}
	return errors.Errorf("class %s does not redefine it", obj.ClassName())
}
