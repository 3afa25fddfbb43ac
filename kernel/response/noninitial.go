package response

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/sandbox"
	"github.com/xuperchain/objcore/kernel/security"
	"github.com/xuperchain/objcore/lib/crypto/signature"
)

const faucetMethod = "faucet"

// effect 执行成功或抛出受检异常后的结果，build用最终的更新和gas生成响应
type effect struct {
	state State
	roots []*sandbox.Object
	// view 为true时只允许修改付款方余额和调用方nonce
	view     bool
	callable string
	build    buildFunc
}

// nonInitialBuilder 消耗gas的请求：检查、预付、执行、结算
type nonInitialBuilder struct {
	*baseBuilder
	req     protocol.NonInitialRequest
	execute func() (*effect, error)

	cp       *code.Classpath
	deser    *sandbox.Deserializer
	exec     *sandbox.Execution
	meter    *gas.Meter
	caller   *sandbox.Object
	payer    *sandbox.Object
	receiver *sandbox.Object

	limit          *big.Int
	price          *big.Int
	initialBalance *big.Int
	minCPU         uint64
	minRAM         uint64
	minStorage     uint64
}

func newNonInitialBuilder(base *baseBuilder, req protocol.NonInitialRequest) *nonInitialBuilder {
	return &nonInitialBuilder{
		baseBuilder: base,
		req:         req,
		limit:       req.GetGasLimit(),
		price:       req.GetGasPrice(),
	}
}

func (b *nonInitialBuilder) Build() (*Result, error) {
	if b.state != StateCreated {
		return nil, errors.Errorf("response: builder in state %s", b.state)
	}
	if err := b.check(); err != nil {
		return b.rejected(err)
	}
	b.Timer.Mark("check")

	if err := b.initialize(); err != nil {
		return b.failed(err), nil
	}
	b.Timer.Mark("initialize")

	b.state = StateExecuting
	eff, err := b.execute()
	b.Timer.Mark("execute")
	if err != nil {
		return b.failed(err), nil
	}
	res, err := b.complete(eff)
	if err != nil {
		return b.failed(err), nil
	}
	return res, nil
}

func (b *nonInitialBuilder) isSystem() bool {
	_, ok := b.req.(*protocol.InstanceSystemMethodCallRequest)
	return ok
}

// isUnsignedFaucet gamete调用自己的faucet，不签名也不付gas
func (b *nonInitialBuilder) isUnsignedFaucet() bool {
	if !b.engine.consensus.AllowsUnsignedFaucet || b.caller == nil {
		return false
	}
	r, ok := b.req.(*protocol.InstanceMethodCallRequest)
	if !ok {
		return false
	}
	return r.Method.DefiningClass == protocol.ClassGamete && r.Method.Name == faucetMethod &&
		b.caller.ClassName() == protocol.ClassGamete
}

// check Created阶段的检查，任何一项不通过都拒绝请求
func (b *nonInitialBuilder) check() *RejectedError {
	cons := b.engine.consensus
	if err := b.validate(); err != nil {
		return err
	}
	if !b.isSystem() && b.req.GetChainID() != cons.ChainID {
		return reject(xerror.ErrChainID, "expected %q, got %q", cons.ChainID, b.req.GetChainID())
	}

	cp, err := b.engine.resolver.Classpath(b.reader, b.req.GetClasspath())
	if err != nil {
		return reject(xerror.ErrClasspath, "%s: %v", b.req.GetClasspath(), err)
	}
	b.cp = cp
	// 检查阶段不计费
	b.deser = sandbox.NewDeserializer(b.reader, cp, b.engine.costs)

	b.minimalGas()
	minimal := new(big.Int).SetUint64(b.minCPU)
	minimal.Add(minimal, new(big.Int).SetUint64(b.minRAM))
	minimal.Add(minimal, new(big.Int).SetUint64(b.minStorage))
	if b.limit.Cmp(cons.MaxGas()) > 0 {
		return reject(xerror.ErrGasLimit, "%s exceeds the maximum %s", b.limit, cons.MaxGas())
	}
	if b.limit.Cmp(minimal) < 0 {
		return reject(xerror.ErrGasLimit, "%s is below the minimal %s", b.limit, minimal)
	}

	// faucet豁免依赖调用方的类，先加载调用方再按顺序检查
	caller, callerErr := b.deser.Object(b.req.GetCaller())
	if callerErr == nil {
		b.caller = caller
	}
	if b.isSystem() || b.isUnsignedFaucet() {
		b.price = new(big.Int)
	} else if !cons.IgnoresGasPrice && b.price.Cmp(cons.MinPrice()) < 0 {
		return reject(xerror.ErrGasPrice, "%s is below the minimum %s", b.price, cons.MinPrice())
	}

	if callerErr != nil {
		return reject(xerror.ErrCaller, "%v", callerErr)
	}
	if !cp.IsSubclass(caller.ClassName(), protocol.ClassExternallyOwnedAccount) {
		return reject(xerror.ErrCaller, "%s is a %s, not an account", caller.Reference(), caller.ClassName())
	}
	if err := b.checkSignature(); err != nil {
		return err
	}
	nonce, err := caller.BigInteger(protocol.FieldNonce)
	if err != nil {
		return reject(xerror.ErrCaller, "%v", err)
	}
	if nonce.Cmp(b.req.GetNonce()) != 0 {
		return reject(xerror.ErrNonce, "expected %s, got %s", nonce, b.req.GetNonce())
	}
	if err := b.checkExported(); err != nil {
		return err
	}
	if err := b.loadReceiver(); err != nil {
		return err
	}

	b.payer = caller
	if b.receiver != nil && cons.AllowsSelfCharged && cp.HasTag(b.receiver.ClassName(), code.TagSelfCharged) &&
		cp.IsSubclass(b.receiver.ClassName(), protocol.ClassContract) {
		b.payer = b.receiver
	}
	balance, err := b.payer.BigInteger(protocol.FieldBalance)
	if err != nil {
		return reject(xerror.ErrInsufficientGas, "%v", err)
	}
	if cost := gas.Cost(b.limit, b.price); balance.Cmp(cost) < 0 {
		return reject(xerror.ErrInsufficientGas, "%s cannot pay %s with balance %s", b.payer.Reference(), cost, balance)
	}
	return nil
}

// validate 结构检查
func (b *nonInitialBuilder) validate() *RejectedError {
	if b.req.GetGasLimit().Sign() < 0 || b.req.GetGasPrice().Sign() < 0 || b.req.GetNonce().Sign() < 0 {
		return reject(xerror.ErrMalformedRequest, "negative gas limit, gas price or nonce")
	}

	var (
		actuals []protocol.StorageValue
		formals []protocol.StorageType
	)
	switch r := b.req.(type) {
	case *protocol.PackageInstallRequest:
		if len(r.Package) == 0 {
			return reject(xerror.ErrMalformedRequest, "empty package")
		}
		return nil
	case *protocol.ConstructorCallRequest:
		actuals, formals = r.Actuals, r.Constructor.Formals
		if r.Constructor.DefiningClass == "" {
			return reject(xerror.ErrMalformedRequest, "constructor without a class")
		}
	case protocol.MethodCallRequest:
		actuals, formals = r.GetActuals(), r.GetMethod().Formals
		if r.GetMethod().DefiningClass == "" || r.GetMethod().Name == "" {
			return reject(xerror.ErrMalformedRequest, "method without a class or name")
		}
	}
	if len(actuals) != len(formals) {
		return reject(xerror.ErrMalformedRequest, "%d actuals for %d formals", len(actuals), len(formals))
	}
	for i, a := range actuals {
		if a == nil {
			return reject(xerror.ErrMalformedRequest, "actual %d is missing", i)
		}
	}
	return nil
}

func (b *nonInitialBuilder) checkSignature() *RejectedError {
	sr, ok := b.req.(protocol.SignedRequest)
	if !ok || b.isUnsignedFaucet() {
		return nil
	}
	v, err := b.caller.Value(protocol.FieldPublicKey)
	if err != nil {
		return reject(xerror.ErrSignature, "%v", err)
	}
	key, _ := v.(string)
	pub, err := signature.DecodePublicKey(key)
	if err != nil {
		return reject(xerror.ErrSignature, "public key of %s: %v", b.caller.Reference(), err)
	}
	if !protocol.VerifySignature(sr, b.engine.sigAlg, pub) {
		return reject(xerror.ErrSignature, "signature does not match %s", b.caller.Reference())
	}
	return nil
}

// checkExported 签名请求引用的对象必须属于导出的类
func (b *nonInitialBuilder) checkExported() *RejectedError {
	if b.isSystem() {
		return nil
	}
	var refs []protocol.StorageReference
	if r, ok := b.req.(protocol.InstanceCallRequest); ok {
		refs = append(refs, r.GetReceiver())
	}
	if r, ok := b.req.(protocol.CodeCallRequest); ok {
		for _, a := range r.GetActuals() {
			if ref, ok := a.(protocol.StorageReference); ok {
				refs = append(refs, ref)
			}
		}
	}

	wizard := security.NewWizard(b.cp)
	for _, ref := range refs {
		tag, err := b.reader.ClassTag(ref)
		if err != nil {
			return reject(xerror.ErrMalformedRequest, "unknown object %s: %v", ref, err)
		}
		if err := wizard.CheckExported(tag.ClassName); err != nil {
			return reject(xerror.ErrNotExported, "%s: %v", ref, err)
		}
	}
	return nil
}

func (b *nonInitialBuilder) loadReceiver() *RejectedError {
	r, ok := b.req.(protocol.InstanceCallRequest)
	if !ok {
		return nil
	}
	receiver, err := b.deser.Object(r.GetReceiver())
	if err != nil {
		return reject(xerror.ErrMalformedRequest, "receiver: %v", err)
	}
	b.receiver = receiver
	return nil
}

// minimalGas 基础费用、加载classpath以及请求和失败响应占用的存储
func (b *nonInitialBuilder) minimalGas() {
	costs := b.engine.costs
	size := b.cp.Size()
	b.minCPU = costs.CPUBaseTransactionCost + costs.CPUCostForLoading(size)
	b.minRAM = costs.RAMCostForLoading(size)

	placeholder := b.failedResponse(nil, protocol.GasConsumed{}, protocol.Failure{})
	b.minStorage = costs.StorageCostOf(len(protocol.MarshalRequest(b.req))) +
		costs.StorageCostOf(len(protocol.MarshalResponse(placeholder)))
}

// initialize 开始计费：nonce加一，预扣最小gas，从付款方扣除全部预算
func (b *nonInitialBuilder) initialize() error {
	balance, err := b.payer.BigInteger(protocol.FieldBalance)
	if err != nil {
		return err
	}
	b.initialBalance = balance

	meter, err := gas.NewMeterFromBig(b.limit)
	if err != nil {
		return err
	}
	b.meter = meter
	b.deser.SetCharger(meter)
	b.exec = sandbox.NewExecution(b.ref, b.deser, meter, b.engine.costs)

	nonce, err := b.caller.BigInteger(protocol.FieldNonce)
	if err != nil {
		return err
	}
	if err := b.caller.SetValue(protocol.FieldNonce, nonce.Add(nonce, big.NewInt(1))); err != nil {
		return err
	}
	if err := b.payer.SetValue(protocol.FieldBalance, new(big.Int).Sub(balance, gas.Cost(b.limit, b.price))); err != nil {
		return err
	}
	b.state = StateInitialized

	if err := meter.ChargeCPU(b.minCPU); err != nil {
		return err
	}
	if err := meter.ChargeRAM(b.minRAM); err != nil {
		return err
	}
	return meter.ChargeStorage(b.minStorage)
}

// complete 抽取更新，对响应本身收取存储费用，退还剩余gas后重新抽取
func (b *nonInitialBuilder) complete(eff *effect) (*Result, error) {
	events := make([]protocol.StorageReference, 0, len(b.exec.Events()))
	for _, ev := range b.exec.Events() {
		events = append(events, ev.Reference())
	}

	updates, err := b.exec.ExtractUpdates(eff.roots...)
	if err != nil {
		return nil, err
	}
	if eff.view {
		if err := b.checkView(eff.callable, updates); err != nil {
			return nil, err
		}
	}
	resp := eff.build(updates, events, b.gasConsumed())
	if err := b.meter.ChargeStorage(b.engine.costs.StorageCostOf(len(protocol.MarshalResponse(resp)))); err != nil {
		return nil, err
	}

	refund := gas.Cost(b.meter.Remaining().ToBig(), b.price)
	balance, err := b.payer.BigInteger(protocol.FieldBalance)
	if err != nil {
		return nil, err
	}
	if err := b.payer.SetValue(protocol.FieldBalance, balance.Add(balance, refund)); err != nil {
		return nil, err
	}
	updates, err = b.exec.ExtractUpdates(eff.roots...)
	if err != nil {
		return nil, err
	}
	resp = eff.build(updates, events, b.gasConsumed())

	b.state = eff.state
	return b.result(b.req, resp, b.deser.ReadSet()), nil
}

// checkView view调用只能改变付款方余额和调用方nonce
func (b *nonInitialBuilder) checkView(callable string, updates []protocol.Update) error {
	for _, u := range updates {
		fu, ok := u.(protocol.FieldUpdate)
		if ok && fu.Object == b.payer.Reference() && fu.Field == protocol.FieldBalance {
			continue
		}
		if ok && fu.Object == b.caller.Reference() && fu.Field == protocol.FieldNonce {
			continue
		}
		return security.Illegal(callable, "view call induced %s", u)
	}
	return nil
}

// failed 扣除全部预算，只保留付款方余额和调用方nonce的更新
func (b *nonInitialBuilder) failed(err error) *Result {
	cause := causeOf(err)
	b.state = StateFailed

	if b.initialBalance == nil {
		b.initialBalance = new(big.Int)
	}
	balance := new(big.Int).Sub(b.initialBalance, gas.Penalty(b.limit, b.price))
	nonce, _ := b.caller.BigInteger(protocol.FieldNonce)
	updates := protocol.SortUpdates([]protocol.Update{
		protocol.FieldUpdate{Object: b.payer.Reference(), Field: protocol.FieldBalance, Value: protocol.BigIntegerOf(balance)},
		protocol.FieldUpdate{Object: b.caller.Reference(), Field: protocol.FieldNonce, Value: protocol.BigIntegerOf(nonce)},
	})
	failure := protocol.Failure{Cause: cause, GasConsumedForPenalty: new(big.Int).Set(b.limit)}
	b.XLog.Warn("transaction failed", "cause", cause.ClassNameOfCause, "msg", cause.MessageOfCause, "where", cause.Where)
	return b.result(b.req, b.failedResponse(updates, b.gasConsumed(), failure), b.deser.ReadSet())
}

func (b *nonInitialBuilder) failedResponse(updates []protocol.Update, gc protocol.GasConsumed, f protocol.Failure) protocol.Response {
	switch b.req.(type) {
	case *protocol.PackageInstallRequest:
		return &protocol.PackageInstallFailedResponse{Updates: updates, GasConsumed: gc, Failure: f}
	case *protocol.ConstructorCallRequest:
		return &protocol.ConstructorCallFailedResponse{Updates: updates, GasConsumed: gc, Failure: f}
	}
	return &protocol.MethodCallFailedResponse{Updates: updates, GasConsumed: gc, Failure: f}
}

func (b *nonInitialBuilder) gasConsumed() protocol.GasConsumed {
	if b.meter == nil {
		return protocol.GasConsumed{CPU: new(big.Int), RAM: new(big.Int), Storage: new(big.Int)}
	}
	return protocol.GasConsumed{
		CPU:     b.meter.ConsumedCPU(),
		RAM:     b.meter.ConsumedRAM(),
		Storage: b.meter.ConsumedStorage(),
	}
}
