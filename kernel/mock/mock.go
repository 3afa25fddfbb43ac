// Package mock 测试用的内存节点：装好lang包、创建gamete和manifest并完成初始化
package mock

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xuperchain/objcore/bcs/code/lang"
	"github.com/xuperchain/objcore/bcs/code/native"
	"github.com/xuperchain/objcore/bcs/store/objstore"
	"github.com/xuperchain/objcore/kernel/code"
	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/response"
	"github.com/xuperchain/objcore/lib/crypto/signature"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/storage/kvdb"
	_ "github.com/xuperchain/objcore/lib/storage/kvdb/memory"
)

const (
	DefaultGasLimit = 100000
	DefaultFunds    = 1000000000
)

// Account 测试账户及其私钥
type Account struct {
	Ref  protocol.StorageReference
	Priv []byte
}

type TestNode struct {
	Consensus *config.Consensus
	Store     *objstore.ObjectStore
	Engine    *response.Engine
	// Classpath lang包的安装交易
	Classpath protocol.TransactionReference
	Gamete    Account
	Manifest  protocol.StorageReference
}

func NewConsensusForTest() *config.Consensus {
	cons := config.GetDefConsensus()
	cons.ChainID = "test"
	cons.AllowsUnsignedFaucet = true
	return cons
}

// NewTestNode cons为nil时使用NewConsensusForTest
func NewTestNode(cons *config.Consensus) (*TestNode, error) {
	if cons == nil {
		cons = NewConsensusForTest()
	}
	log := logs.NewTestLogger("mock")
	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{KVEngineType: kvdb.KVEngineTypeMemory})
	if err != nil {
		return nil, err
	}
	st, err := objstore.New(db, objstore.Option{}, log)
	if err != nil {
		return nil, err
	}
	resolver, err := code.NewResolver(native.Loader{}, 0)
	if err != nil {
		return nil, err
	}
	engine, err := response.NewEngine(cons, resolver, native.Instrumenter{}, log)
	if err != nil {
		return nil, err
	}

	n := &TestNode{Consensus: cons, Store: st, Engine: engine}
	if err := n.bootstrap(); err != nil {
		st.Close()
		return nil, err
	}
	return n, nil
}

func (n *TestNode) bootstrap() error {
	res, err := n.Run(&protocol.InitialPackageInstallRequest{Package: lang.Manifest()})
	if err != nil {
		return errors.Wrap(err, "install lang")
	}
	n.Classpath = res.Record.Reference

	priv, pub, err := n.Engine.SignatureAlgorithm().GenerateKey()
	if err != nil {
		return err
	}
	res, err = n.Run(&protocol.GameteCreationRequest{
		Classpath:     n.Classpath,
		InitialAmount: big.NewInt(DefaultFunds),
		PublicKey:     signature.EncodePublicKey(pub),
	})
	if err != nil {
		return errors.Wrap(err, "create gamete")
	}
	n.Gamete = Account{Ref: res.Record.Response.(*protocol.GameteCreationResponse).Gamete, Priv: priv}

	req := &protocol.ConstructorCallRequest{
		TransactionCommon: n.Common(n.Gamete.Ref, big.NewInt(0)),
		Constructor:       lang.NewManifest,
		Actuals:           protocol.StorageValues{protocol.StringValue(n.Consensus.ChainID), n.Gamete.Ref},
	}
	res, err = n.SignAndRun(req, n.Gamete.Priv)
	if err != nil {
		return errors.Wrap(err, "create manifest")
	}
	created, ok := res.Record.Response.(*protocol.ConstructorCallSuccessResponse)
	if !ok {
		return errors.Errorf("create manifest: %s", res.Record.Response.ResponseKind())
	}
	n.Manifest = created.NewObject

	_, err = n.Run(&protocol.InitializationRequest{Classpath: n.Classpath, Manifest: n.Manifest})
	return errors.Wrap(err, "initialize")
}

func (n *TestNode) Close() error {
	return n.Store.Close()
}

// Run 在最新快照上构造响应并提交
func (n *TestNode) Run(req protocol.Request) (*response.Result, error) {
	res, err := n.Build(req)
	if err != nil {
		return nil, err
	}
	if err := n.Store.Commit(res.Record, res.ReadSet); err != nil {
		return nil, err
	}
	return res, nil
}

// Build 只构造不提交
func (n *TestNode) Build(req protocol.Request) (*response.Result, error) {
	snap, err := n.Store.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()
	return n.Engine.Build(snap, req)
}

func (n *TestNode) SignAndRun(req protocol.SignedRequest, priv []byte) (*response.Result, error) {
	if err := protocol.Sign(req, n.Engine.SignatureAlgorithm(), priv); err != nil {
		return nil, err
	}
	return n.Run(req)
}

// Common 默认gas预算和最低价格
func (n *TestNode) Common(caller protocol.StorageReference, nonce *big.Int) protocol.TransactionCommon {
	return protocol.TransactionCommon{
		Caller:    caller,
		Nonce:     nonce,
		ChainID:   n.Consensus.ChainID,
		GasLimit:  big.NewInt(DefaultGasLimit),
		GasPrice:  n.Consensus.MinPrice(),
		Classpath: n.Classpath,
	}
}

// NewAccount gamete出资创建外部账户
func (n *TestNode) NewAccount(funds *big.Int) (Account, error) {
	priv, pub, err := n.Engine.SignatureAlgorithm().GenerateKey()
	if err != nil {
		return Account{}, err
	}
	nonce, err := n.Nonce(n.Gamete.Ref)
	if err != nil {
		return Account{}, err
	}
	req := &protocol.ConstructorCallRequest{
		TransactionCommon: n.Common(n.Gamete.Ref, nonce),
		Constructor:       lang.NewAccount,
		Actuals:           protocol.StorageValues{protocol.BigIntegerOf(funds), protocol.StringValue(signature.EncodePublicKey(pub))},
	}
	res, err := n.SignAndRun(req, n.Gamete.Priv)
	if err != nil {
		return Account{}, err
	}
	created, ok := res.Record.Response.(*protocol.ConstructorCallSuccessResponse)
	if !ok {
		return Account{}, errors.Errorf("create account: %s", res.Record.Response.ResponseKind())
	}
	return Account{Ref: created.NewObject, Priv: priv}, nil
}

// Field 已提交的字段值，没有写过时返回nil
func (n *TestNode) Field(obj protocol.StorageReference, f protocol.FieldSignature) (protocol.StorageValue, error) {
	state, err := n.Store.State(obj)
	if err != nil {
		return nil, err
	}
	for _, u := range state {
		if fu, ok := u.(protocol.FieldUpdate); ok && fu.Field == f {
			return fu.Value, nil
		}
	}
	return nil, nil
}

func (n *TestNode) bigField(obj protocol.StorageReference, f protocol.FieldSignature) (*big.Int, error) {
	v, err := n.Field(obj, f)
	if err != nil {
		return nil, err
	}
	if bi, ok := v.(protocol.BigIntegerValue); ok {
		return bi.Int(), nil
	}
	return new(big.Int), nil
}

func (n *TestNode) Balance(obj protocol.StorageReference) (*big.Int, error) {
	return n.bigField(obj, protocol.FieldBalance)
}

func (n *TestNode) Nonce(obj protocol.StorageReference) (*big.Int, error) {
	return n.bigField(obj, protocol.FieldNonce)
}
