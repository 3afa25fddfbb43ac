package response

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/sandbox"
)

type buildFunc func(updates []protocol.Update, events []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response

// executeInstall 校验并插桩包，校验失败的原因是lang.VerificationError
func (b *nonInitialBuilder) executeInstall() (*effect, error) {
	req := b.req.(*protocol.PackageInstallRequest)
	if err := b.meter.ChargeCPU(b.engine.costs.CPUCostForInstalling(len(req.Package))); err != nil {
		return nil, err
	}
	deps, err := b.engine.resolver.Packages(b.reader, req.Dependencies)
	if err != nil {
		return nil, &code.Exception{ClassName: classVerificationError, Message: err.Error()}
	}
	instrumented, version, err := b.engine.instrumenter.Instrument(req.Package, deps)
	if err != nil {
		return nil, &code.Exception{ClassName: classVerificationError, Message: err.Error()}
	}

	return &effect{
		state: StateSucceeded,
		roots: []*sandbox.Object{b.caller, b.payer},
		build: func(updates []protocol.Update, _ []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response {
			return &protocol.PackageInstallSuccessResponse{
				Updates:             updates,
				GasConsumed:         gc,
				InstrumentedPackage: instrumented,
				Dependencies:        req.Dependencies,
				VerificationVersion: version,
			}
		},
	}, nil
}

// executeCall 反序列化实参，解析可调用对象并通过执行上下文调用
func (b *nonInitialBuilder) executeCall() (*effect, error) {
	req := b.req.(protocol.CodeCallRequest)
	roots := []*sandbox.Object{b.caller, b.payer}
	args := make([]code.Value, 0, len(req.GetActuals()))
	for _, a := range req.GetActuals() {
		v, err := b.deser.Deserialize(a)
		if err != nil {
			return nil, err
		}
		if obj, ok := v.(*sandbox.Object); ok {
			roots = append(roots, obj)
		}
		args = append(args, v)
	}

	switch r := b.req.(type) {
	case *protocol.ConstructorCallRequest:
		return b.construct(r.Constructor, args, roots)
	case *protocol.StaticMethodCallRequest:
		c, fromContract, err := b.cp.ResolveMethod(r.Method)
		if err != nil {
			return nil, err
		}
		return b.call(c, nil, fromContract, args, roots)
	case protocol.InstanceCallRequest:
		roots = append(roots, b.receiver)
		c, fromContract, err := b.cp.ResolveMethodFrom(b.receiver.ClassName(), r.GetMethod())
		if err != nil {
			return nil, err
		}
		return b.call(c, b.receiver, fromContract, args, roots)
	}
	return nil, errors.Errorf("unexpected request kind %s", b.req.RequestKind())
}

func (b *nonInitialBuilder) construct(sig protocol.ConstructorSignature, args []code.Value,
	roots []*sandbox.Object) (*effect, error) {
	c, fromContract, err := b.cp.ResolveConstructor(sig)
	if err != nil {
		return nil, err
	}
	if fromContract {
		args = sandbox.FromContractArgs(args, b.caller)
	}
	obj, err := b.exec.New(sig.DefiningClass)
	if err != nil {
		return nil, err
	}
	roots = append(roots, obj)

	_, err = b.exec.Invoke(c, b.caller, obj, args)
	exc, err := b.classify(c, err)
	if err != nil {
		return nil, err
	}

	var build buildFunc
	if exc != nil {
		cause := causeOf(exc)
		build = func(updates []protocol.Update, events []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response {
			return &protocol.ConstructorCallExceptionResponse{Updates: updates, Events: events, GasConsumed: gc, Cause: cause}
		}
	} else {
		build = func(updates []protocol.Update, events []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response {
			return &protocol.ConstructorCallSuccessResponse{Updates: updates, Events: events, GasConsumed: gc, NewObject: obj.Reference()}
		}
	}
	return &effect{state: stateOf(exc), roots: roots, callable: c.String(), build: build}, nil
}

func (b *nonInitialBuilder) call(c *code.Callable, receiver *sandbox.Object, fromContract bool,
	args []code.Value, roots []*sandbox.Object) (*effect, error) {
	if fromContract {
		args = sandbox.FromContractArgs(args, b.caller)
	}
	var this code.Object
	if receiver != nil {
		this = receiver
	}

	result, err := b.exec.Invoke(c, b.caller, this, args)
	exc, err := b.classify(c, err)
	if err != nil {
		return nil, err
	}

	eff := &effect{
		state:    stateOf(exc),
		roots:    roots,
		view:     c.Tags.Has(code.TagView),
		callable: c.String(),
	}
	switch {
	case exc != nil:
		cause := causeOf(exc)
		eff.build = func(updates []protocol.Update, events []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response {
			return &protocol.MethodCallExceptionResponse{Updates: updates, Events: events, GasConsumed: gc, Cause: cause}
		}
	case c.Returns == "":
		eff.build = func(updates []protocol.Update, events []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response {
			return &protocol.MethodCallVoidSuccessResponse{Updates: updates, Events: events, GasConsumed: gc}
		}
	default:
		if obj, ok := result.(*sandbox.Object); ok {
			eff.roots = append(eff.roots, obj)
		}
		sv, err := sandbox.Serialize(result)
		if err != nil {
			return nil, err
		}
		eff.build = func(updates []protocol.Update, events []protocol.StorageReference, gc protocol.GasConsumed) protocol.Response {
			return &protocol.MethodCallValueSuccessResponse{Updates: updates, Events: events, GasConsumed: gc, Result: sv}
		}
	}
	return eff, nil
}

// classify 代码异常只有在ThrowsExceptions且受检时才作为结果，其余错误都导致失败。
// 耗尽gas和非法调用即使被代码捕获并正常返回也导致失败
func (b *nonInitialBuilder) classify(c *code.Callable, err error) (*code.Exception, error) {
	if b.meter.Exhausted() {
		if err == nil || !errors.Is(err, gas.ErrOutOfGas) {
			return nil, gas.ErrOutOfGas
		}
		return nil, err
	}
	if fatal := b.exec.Fatal(); fatal != nil {
		return nil, fatal
	}
	if err == nil {
		return nil, nil
	}
	var exc *code.Exception
	if errors.As(err, &exc) && c.Tags.Has(code.TagThrowsExceptions) && b.engine.policy.IsChecked(b.cp, exc.ClassName) {
		return exc, nil
	}
	return nil, err
}

func stateOf(exc *code.Exception) State {
	if exc != nil {
		return StateExceptioned
	}
	return StateSucceeded
}
