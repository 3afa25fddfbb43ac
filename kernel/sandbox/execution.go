package sandbox

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/security"
)

// PanicError 入口函数panic后恢复出的错误
type PanicError struct {
	Value interface{}
	Where string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Where, e.Value)
}

type frame struct {
	callable *code.Callable
	caller   code.Object
	this     code.Object
}

// Execution 一笔交易的执行上下文，实现code.Context。
// 不是并发安全的，一个builder独占一个
type Execution struct {
	txRef  protocol.TransactionReference
	cp     *code.Classpath
	meter  *gas.Meter
	costs  *gas.CostModel
	wizard *security.Wizard
	deser  *Deserializer

	progressive uint64
	frames      []frame
	events      []*Object
	// fatal 记录第一个不能被代码当作异常处理的错误
	fatal error
}

var _ code.Context = (*Execution)(nil)

func NewExecution(txRef protocol.TransactionReference, deser *Deserializer, meter *gas.Meter,
	costs *gas.CostModel) *Execution {
	return &Execution{
		txRef:  txRef,
		cp:     deser.Classpath(),
		meter:  meter,
		costs:  costs,
		wizard: security.NewWizard(deser.Classpath()),
		deser:  deser,
	}
}

func (e *Execution) Wizard() *security.Wizard {
	return e.wizard
}

func (e *Execution) Deserializer() *Deserializer {
	return e.deser
}

func (e *Execution) Meter() *gas.Meter {
	return e.meter
}

// Events 按发出顺序
func (e *Execution) Events() []*Object {
	return e.events
}

func (e *Execution) Fatal() error {
	return e.fatal
}

func (e *Execution) fail(err error) error {
	if e.fatal == nil {
		e.fatal = err
	}
	return err
}

// New 分配新对象，字段取默认值，引用为本交易的下一个序号
func (e *Execution) New(className string) (*Object, error) {
	class, err := e.cp.Class(className)
	if err != nil {
		return nil, e.fail(err)
	}
	fields := e.cp.Fields(className)
	if err := e.meter.ChargeRAM(e.costs.RAMCostOfObjectWith(len(fields))); err != nil {
		return nil, err
	}

	ref := protocol.StorageReference{Transaction: e.txRef, Progressive: e.progressive}
	e.progressive++
	obj := newObject(ref, class, fields, true)
	for _, f := range fields {
		obj.slots[f] = &slot{value: defaultValue(f.Type), loaded: true}
	}
	return obj, nil
}

// Invoke 所有调用的唯一入口：计费、检查标签、转账、执行并恢复panic
func (e *Execution) Invoke(c *code.Callable, caller, this code.Object, args []code.Value) (result code.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = e.fail(&PanicError{Value: r, Where: c.String()})
		}
	}()

	if err := e.meter.ChargeCPU(e.costs.CPUCostOfCall); err != nil {
		return nil, err
	}
	if err := e.wizard.CheckCall(c, caller, this, args); err != nil {
		return nil, e.fail(err)
	}
	if err := e.checkArgs(c, args); err != nil {
		return nil, e.fail(err)
	}
	if c.Tags.Has(code.TagPayable) {
		if err := e.transfer(c, caller, this, args[0]); err != nil {
			return nil, err
		}
	}

	e.frames = append(e.frames, frame{callable: c, caller: caller, this: this})
	defer func() {
		e.frames = e.frames[:len(e.frames)-1]
	}()

	result, err = c.Entry(e, this, args)
	if err != nil {
		if exc, ok := err.(*code.Exception); ok && exc.Where == "" {
			exc.Where = c.String()
		}
		return nil, err
	}
	if c.IsConstructor() || c.Returns == "" {
		return nil, nil
	}
	if err := e.checkValue(result, c.Returns); err != nil {
		return nil, e.fail(security.Illegal(c.String(), "bad return value: %v", err))
	}
	return result, nil
}

func (e *Execution) checkArgs(c *code.Callable, args []code.Value) error {
	for i, arg := range args {
		if err := e.checkValue(arg, c.Formals[i]); err != nil {
			return security.Illegal(c.String(), "argument %d: %v", i, err)
		}
	}
	return nil
}

// checkValue 类型匹配，对象还要求属于本次执行且是声明类型的子类
func (e *Execution) checkValue(v code.Value, t protocol.StorageType) error {
	if !Assignable(v, t) {
		return errors.Wrapf(ErrTypeMismatch, "%T for %s", v, t)
	}
	obj, ok := v.(code.Object)
	if !ok {
		return nil
	}
	if _, err := e.own(obj); err != nil {
		return err
	}
	if !e.cp.IsSubclass(obj.ClassName(), t.ClassName()) {
		return errors.Wrapf(ErrTypeMismatch, "%s is not a %s", obj.ClassName(), t)
	}
	return nil
}

// transfer 付款调用：金额从调用方转给接收者
func (e *Execution) transfer(c *code.Callable, caller, receiver code.Object, amountArg code.Value) error {
	amount, _ := security.Amount(amountArg)
	if caller == nil || receiver == nil {
		return e.fail(security.Illegal(c.String(), "payable call needs a caller and a receiver"))
	}
	from, err := e.own(caller)
	if err != nil {
		return e.fail(err)
	}
	to, err := e.own(receiver)
	if err != nil {
		return e.fail(err)
	}
	if !e.cp.IsSubclass(to.ClassName(), protocol.ClassContract) {
		return e.fail(security.Illegal(c.String(), "receiver of a payable call must be a contract"))
	}

	balance, err := from.BigInteger(protocol.FieldBalance)
	if err != nil {
		return e.fail(err)
	}
	if balance.Cmp(amount) < 0 {
		return &code.Exception{
			ClassName: protocol.ClassInsufficientFundsError,
			Message:   fmt.Sprintf("cannot pay %s with balance %s", amount, balance),
			Where:     c.String(),
		}
	}
	if err := from.SetValue(protocol.FieldBalance, balance.Sub(balance, amount)); err != nil {
		return e.fail(err)
	}
	toBalance, err := to.BigInteger(protocol.FieldBalance)
	if err != nil {
		return e.fail(err)
	}
	return to.SetValue(protocol.FieldBalance, toBalance.Add(toBalance, amount))
}

func (e *Execution) own(obj code.Object) (*Object, error) {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return nil, errors.Wrapf(ErrForeignObject, "%T", obj)
	}
	return o, nil
}

func (e *Execution) currentThis() code.Object {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1].this
}

func (e *Execution) Caller() code.Object {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1].caller
}

func (e *Execution) ChargeCPU(n uint64) error {
	return e.meter.ChargeCPU(n)
}

func (e *Execution) ChargeRAM(n uint64) error {
	return e.meter.ChargeRAM(n)
}

func (e *Execution) Get(obj code.Object, field protocol.FieldSignature) (code.Value, error) {
	o, err := e.own(obj)
	if err != nil {
		return nil, e.fail(err)
	}
	if err := e.meter.ChargeCPU(e.costs.CPUCostOfFieldAccess); err != nil {
		return nil, err
	}
	s, err := o.slot(field)
	if err != nil {
		return nil, e.fail(err)
	}
	if !s.loaded {
		if err := e.deser.load(s); err != nil {
			return nil, e.fail(err)
		}
	}
	if i, ok := s.value.(*big.Int); ok && i != nil {
		return new(big.Int).Set(i), nil
	}
	return s.value, nil
}

func (e *Execution) Set(obj code.Object, field protocol.FieldSignature, v code.Value) error {
	o, err := e.own(obj)
	if err != nil {
		return e.fail(err)
	}
	if err := e.meter.ChargeCPU(e.costs.CPUCostOfFieldAccess); err != nil {
		return err
	}
	if err := e.checkValue(v, field.Type); err != nil {
		return e.fail(err)
	}
	if err := o.SetValue(field, v); err != nil {
		return e.fail(err)
	}
	return nil
}

// FromContractArgs 解析到扩展签名时追加调用方和占位参数
func FromContractArgs(args []code.Value, caller code.Object) []code.Value {
	out := make([]code.Value, 0, len(args)+2)
	out = append(out, args...)
	if caller == nil {
		return append(out, nil, nil)
	}
	return append(out, caller, nil)
}

func (e *Execution) Construct(sig protocol.ConstructorSignature, args ...code.Value) (code.Object, error) {
	c, fromContract, err := e.cp.ResolveConstructor(sig)
	if err != nil {
		return nil, e.fail(err)
	}
	caller := e.currentThis()
	if fromContract {
		args = FromContractArgs(args, caller)
	}
	obj, err := e.New(sig.DefiningClass)
	if err != nil {
		return nil, err
	}
	if _, err := e.Invoke(c, caller, obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

func (e *Execution) Call(receiver code.Object, sig protocol.MethodSignature, args ...code.Value) (code.Value, error) {
	if receiver == nil {
		return nil, e.fail(security.Illegal(sig.String(), "null receiver"))
	}
	c, fromContract, err := e.cp.ResolveMethodFrom(receiver.ClassName(), sig)
	if err != nil {
		return nil, e.fail(err)
	}
	caller := e.currentThis()
	if fromContract {
		args = FromContractArgs(args, caller)
	}
	return e.Invoke(c, caller, receiver, args)
}

func (e *Execution) CallStatic(sig protocol.MethodSignature, args ...code.Value) (code.Value, error) {
	c, fromContract, err := e.cp.ResolveMethod(sig)
	if err != nil {
		return nil, e.fail(err)
	}
	caller := e.currentThis()
	if fromContract {
		args = FromContractArgs(args, caller)
	}
	return e.Invoke(c, caller, nil, args)
}

func (e *Execution) Event(ev code.Object) error {
	o, err := e.own(ev)
	if err != nil {
		return e.fail(err)
	}
	if !e.cp.IsSubclass(o.ClassName(), protocol.ClassEvent) {
		return e.fail(security.Illegal("", "%s is not an event", o.ClassName()))
	}
	if err := e.meter.ChargeCPU(e.costs.CPUCostOfEvent); err != nil {
		return err
	}
	e.events = append(e.events, o)
	return nil
}

func (e *Execution) InstanceOf(obj code.Object, className string) bool {
	if obj == nil {
		return false
	}
	return e.cp.IsSubclass(obj.ClassName(), className)
}
