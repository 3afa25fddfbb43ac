package response

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/common/xcontext"
	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/kernel/gas"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/crypto/hash"
	"github.com/xuperchain/objcore/lib/crypto/signature"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/metrics"
)

// Result 构造出的交易记录以及执行期间读过的对象版本
type Result struct {
	Record  *protocol.TransactionRecord
	ReadSet store.ReadSet
}

// Builder 一笔交易的响应构造器，只能Build一次
type Builder interface {
	State() State
	Build() (*Result, error)
}

// Engine 按请求类型选择builder。自身无状态，可以被并发使用
type Engine struct {
	consensus    *config.Consensus
	costs        *gas.CostModel
	policy       *CheckPolicy
	resolver     *code.Resolver
	instrumenter code.Instrumenter
	hasher       hash.Hasher
	sigAlg       signature.Algorithm
	log          logs.Logger
}

func NewEngine(consensus *config.Consensus, resolver *code.Resolver, instrumenter code.Instrumenter,
	log logs.Logger) (*Engine, error) {
	if consensus == nil || resolver == nil || instrumenter == nil || log == nil {
		return nil, errors.New("response: engine dependencies must be set")
	}
	policy, err := GetCheckPolicy(consensus.CheckPolicyVersion)
	if err != nil {
		return nil, err
	}
	hasher, err := hash.CreateHasher(consensus.HashAlgorithm)
	if err != nil {
		return nil, errors.Wrapf(err, "hash algorithm %s", consensus.HashAlgorithm)
	}
	alg, err := signature.GetAlgorithm(consensus.SignatureAlgorithm)
	if err != nil {
		return nil, errors.Wrapf(err, "signature algorithm %s", consensus.SignatureAlgorithm)
	}

	costs := consensus.GasCostModel
	return &Engine{
		consensus:    consensus,
		costs:        &costs,
		policy:       policy,
		resolver:     resolver,
		instrumenter: instrumenter,
		hasher:       hasher,
		sigAlg:       alg,
		log:          log,
	}, nil
}

func (e *Engine) Consensus() *config.Consensus {
	return e.consensus
}

func (e *Engine) Resolver() *code.Resolver {
	return e.resolver
}

// Reference 请求的交易引用
func (e *Engine) Reference(req protocol.Request) protocol.TransactionReference {
	return protocol.ReferenceOf(req, e.hasher)
}

func (e *Engine) SignatureAlgorithm() signature.Algorithm {
	return e.sigAlg
}

// NewBuilder 按请求的判别字段选择builder
func (e *Engine) NewBuilder(reader store.Reader, req protocol.Request) (Builder, error) {
	if req == nil {
		return nil, reject(xerror.ErrMalformedRequest, "nil request")
	}
	base := e.newBase(reader, req)
	switch r := req.(type) {
	case *protocol.InitialPackageInstallRequest:
		return &initialPackageInstallBuilder{baseBuilder: base, req: r}, nil
	case *protocol.GameteCreationRequest:
		return &gameteCreationBuilder{baseBuilder: base, req: r}, nil
	case *protocol.InitializationRequest:
		return &initializationBuilder{baseBuilder: base, req: r}, nil
	case *protocol.PackageInstallRequest:
		b := newNonInitialBuilder(base, r)
		b.execute = b.executeInstall
		return b, nil
	case *protocol.ConstructorCallRequest, *protocol.InstanceMethodCallRequest,
		*protocol.StaticMethodCallRequest, *protocol.InstanceSystemMethodCallRequest:
		b := newNonInitialBuilder(base, r.(protocol.NonInitialRequest))
		b.execute = b.executeCall
		return b, nil
	}
	return nil, reject(xerror.ErrMalformedRequest, "unknown request kind %s", req.RequestKind())
}

func (e *Engine) newBase(reader store.Reader, req protocol.Request) *baseBuilder {
	ref := e.Reference(req)
	log, err := logs.NewLogger(ref.String(), "response")
	if err != nil {
		log = e.log.With("tx", ref.String())
	}
	return &baseBuilder{
		BaseCtx: xcontext.NewBaseCtx(log.With("request", req.RequestKind().String())),
		engine:  e,
		reader:  reader,
		ref:     ref,
		state:   StateCreated,
	}
}

// Build 构造请求的响应。被拒绝时返回*RejectedError
func (e *Engine) Build(reader store.Reader, req protocol.Request) (*Result, error) {
	start := time.Now()
	b, err := e.NewBuilder(reader, req)
	if err != nil {
		e.observe(nil, err, start)
		return nil, err
	}
	res, err := b.Build()
	e.observe(res, err, start)
	return res, err
}

// BuildBatch 基于同一个快照并发构造多个响应，每个请求的错误单独返回
func (e *Engine) BuildBatch(ctx context.Context, reader store.Reader, reqs []protocol.Request) ([]*Result, []error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = e.Build(reader, reqs[i])
			return nil
		})
	}
	g.Wait()
	return results, errs
}

func (e *Engine) observe(res *Result, err error, start time.Time) {
	if err != nil {
		var re *RejectedError
		if errors.As(err, &re) {
			metrics.RejectedCounter.WithLabelValues(re.Reason()).Inc()
		}
		return
	}

	resp := res.Record.Response
	kind := resp.ResponseKind().String()
	metrics.ResponseCounter.WithLabelValues(kind).Inc()
	metrics.BuildHistogram.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if nr, ok := resp.(protocol.NonInitialResponse); ok {
		gc := nr.GetGasConsumed()
		metrics.GasConsumedCounter.WithLabelValues(string(gas.DimensionCPU)).Add(toFloat(gc.CPU))
		metrics.GasConsumedCounter.WithLabelValues(string(gas.DimensionRAM)).Add(toFloat(gc.RAM))
		metrics.GasConsumedCounter.WithLabelValues(string(gas.DimensionStorage)).Add(toFloat(gc.Storage))
	}
}
