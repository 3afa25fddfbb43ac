package response

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/xuperchain/objcore/kernel/common/xcontext"
	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/sandbox"
	"github.com/xuperchain/objcore/kernel/store"
)

// baseBuilder 构造过程不可取消，上下文只提供日志和计时
type baseBuilder struct {
	*xcontext.BaseCtx
	engine *Engine
	reader store.Reader
	ref    protocol.TransactionReference
	state  State
}

func (b *baseBuilder) State() State {
	return b.state
}

func (b *baseBuilder) rejected(err *RejectedError) (*Result, error) {
	b.state = StateRejected
	b.XLog.Warn("request rejected", "err", err.Error(), "timer", b.Timer.Print())
	return nil, err
}

func (b *baseBuilder) result(req protocol.Request, resp protocol.Response, readSet store.ReadSet) *Result {
	b.XLog.Info("response built", "kind", resp.ResponseKind().String(), "state", b.state.String(),
		"updates", len(resp.GetUpdates()), "timer", b.Timer.Print())
	return &Result{
		Record:  &protocol.TransactionRecord{Reference: b.ref, Request: req, Response: resp},
		ReadSet: readSet,
	}
}

// checkNotInitialized 初始请求只能在节点初始化之前执行
func (b *baseBuilder) checkNotInitialized() *RejectedError {
	ok, err := b.reader.IsInitialized()
	if err != nil {
		return reject(xerror.ErrStoreFailed, "%v", err)
	}
	if ok {
		return reject(xerror.ErrInitialized, "initial request after initialization")
	}
	return nil
}

type initialPackageInstallBuilder struct {
	*baseBuilder
	req *protocol.InitialPackageInstallRequest
}

func (b *initialPackageInstallBuilder) Build() (*Result, error) {
	if err := b.checkNotInitialized(); err != nil {
		return b.rejected(err)
	}
	if len(b.req.Package) == 0 {
		return b.rejected(reject(xerror.ErrMalformedRequest, "empty package"))
	}
	deps, err := b.engine.resolver.Packages(b.reader, b.req.Dependencies)
	if err != nil {
		return b.rejected(reject(xerror.ErrClasspath, "%v", err))
	}
	instrumented, _, err := b.engine.instrumenter.Instrument(b.req.Package, deps)
	if err != nil {
		return b.rejected(reject(xerror.ErrMalformedRequest, "%v", err))
	}
	b.Timer.Mark("instrument")

	b.state = StateSucceeded
	resp := &protocol.InitialPackageInstallResponse{InstrumentedPackage: instrumented}
	return b.result(b.req, resp, nil), nil
}

type gameteCreationBuilder struct {
	*baseBuilder
	req *protocol.GameteCreationRequest
}

func (b *gameteCreationBuilder) Build() (*Result, error) {
	if err := b.checkNotInitialized(); err != nil {
		return b.rejected(err)
	}
	if b.req.InitialAmount == nil || b.req.InitialAmount.Sign() < 0 {
		return b.rejected(reject(xerror.ErrMalformedRequest, "initial amount must be non-negative"))
	}
	if b.req.PublicKey == "" {
		return b.rejected(reject(xerror.ErrMalformedRequest, "empty public key"))
	}
	cp, err := b.engine.resolver.Classpath(b.reader, b.req.Classpath)
	if err != nil {
		return b.rejected(reject(xerror.ErrClasspath, "%v", err))
	}

	// 初始请求不计费
	deser := sandbox.NewDeserializer(b.reader, cp, b.engine.costs)
	exec := sandbox.NewExecution(b.ref, deser, unlimitedMeter(), b.engine.costs)
	gamete, err := exec.New(protocol.ClassGamete)
	if err != nil {
		return b.rejected(reject(xerror.ErrClasspath, "%v", err))
	}
	if err := gamete.SetValue(protocol.FieldBalance, new(big.Int).Set(b.req.InitialAmount)); err != nil {
		return b.rejected(reject(xerror.ErrInternal, "%v", err))
	}
	if err := gamete.SetValue(protocol.FieldPublicKey, b.req.PublicKey); err != nil {
		return b.rejected(reject(xerror.ErrInternal, "%v", err))
	}
	updates, err := exec.ExtractUpdates(gamete)
	if err != nil {
		return b.rejected(reject(xerror.ErrInternal, "%v", err))
	}
	b.Timer.Mark("create")

	b.state = StateSucceeded
	resp := &protocol.GameteCreationResponse{Updates: updates, Gamete: gamete.Reference()}
	return b.result(b.req, resp, nil), nil
}

type initializationBuilder struct {
	*baseBuilder
	req *protocol.InitializationRequest
}

func (b *initializationBuilder) Build() (*Result, error) {
	if err := b.checkNotInitialized(); err != nil {
		return b.rejected(err)
	}
	cp, err := b.engine.resolver.Classpath(b.reader, b.req.Classpath)
	if err != nil {
		return b.rejected(reject(xerror.ErrClasspath, "%v", err))
	}
	tag, err := b.reader.ClassTag(b.req.Manifest)
	if err != nil {
		return b.rejected(reject(xerror.ErrMalformedRequest, "manifest %s: %v", b.req.Manifest, err))
	}
	if !cp.IsSubclass(tag.ClassName, protocol.ClassManifest) {
		return b.rejected(reject(xerror.ErrMalformedRequest, "%s is a %s, not a manifest", b.req.Manifest, tag.ClassName))
	}

	b.state = StateSucceeded
	return b.result(b.req, &protocol.InitializationResponse{}, nil), nil
}

func unlimitedMeter() *gas.Meter {
	return gas.NewMeter(new(uint256.Int).SetAllOne())
}

func toFloat(i *big.Int) float64 {
	if i == nil {
		return 0
	}
	if i.IsInt64() {
		return float64(i.Int64())
	}
	return math.MaxFloat64
}
