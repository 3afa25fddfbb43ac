package response_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/objcore/bcs/code/lang"
	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/mock"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/kernel/response"
	"github.com/xuperchain/objcore/kernel/store"
)

const accountFunds = 1000000

func newTestNode(t *testing.T) *mock.TestNode {
	n, err := mock.NewTestNode(nil)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func newAccount(t *testing.T, n *mock.TestNode) mock.Account {
	acc, err := n.NewAccount(big.NewInt(accountFunds))
	require.NoError(t, err)
	return acc
}

func balanceOf(t *testing.T, n *mock.TestNode, obj protocol.StorageReference) *big.Int {
	b, err := n.Balance(obj)
	require.NoError(t, err)
	return b
}

func nonceOf(t *testing.T, n *mock.TestNode, obj protocol.StorageReference) *big.Int {
	v, err := n.Nonce(obj)
	require.NoError(t, err)
	return v
}

func receiveRequest(n *mock.TestNode, from mock.Account, to protocol.StorageReference, amount int64) *protocol.InstanceMethodCallRequest {
	return &protocol.InstanceMethodCallRequest{
		TransactionCommon: n.Common(from.Ref, big.NewInt(0)),
		Method:            lang.Receive,
		Receiver:          to,
		Actuals:           protocol.StorageValues{protocol.NewBigInteger(amount)},
	}
}

func sign(t *testing.T, n *mock.TestNode, req protocol.SignedRequest, priv []byte) {
	require.NoError(t, protocol.Sign(req, n.Engine.SignatureAlgorithm(), priv))
}

// installShop 安装测试包，返回其classpath
func installShop(t *testing.T, n *mock.TestNode, acc mock.Account) protocol.TransactionReference {
	nonce := nonceOf(t, n, acc.Ref)
	req := &protocol.PackageInstallRequest{
		TransactionCommon: n.Common(acc.Ref, nonce),
		Package:           shopManifest(),
		Dependencies:      []protocol.TransactionReference{n.Classpath},
	}
	res, err := n.SignAndRun(req, acc.Priv)
	require.NoError(t, err)
	require.IsType(t, &protocol.PackageInstallSuccessResponse{}, res.Record.Response)
	return res.Record.Reference
}

func createShop(t *testing.T, n *mock.TestNode, acc mock.Account, cp protocol.TransactionReference, stock int32) *response.Result {
	common := n.Common(acc.Ref, nonceOf(t, n, acc.Ref))
	common.Classpath = cp
	req := &protocol.ConstructorCallRequest{
		TransactionCommon: common,
		Constructor:       newShop,
		Actuals:           protocol.StorageValues{protocol.IntValue(stock)},
	}
	res, err := n.SignAndRun(req, acc.Priv)
	require.NoError(t, err)
	return res
}

func callShop(t *testing.T, n *mock.TestNode, acc mock.Account, cp protocol.TransactionReference,
	shop protocol.StorageReference, m protocol.MethodSignature, actuals ...protocol.StorageValue) *response.Result {
	common := n.Common(acc.Ref, nonceOf(t, n, acc.Ref))
	common.Classpath = cp
	req := &protocol.InstanceMethodCallRequest{
		TransactionCommon: common,
		Method:            m,
		Receiver:          shop,
		Actuals:           actuals,
	}
	res, err := n.SignAndRun(req, acc.Priv)
	require.NoError(t, err)
	return res
}

func TestInitialRequestsAfterInitialization(t *testing.T) {
	n := newTestNode(t)
	ok, err := n.Store.IsInitialized()
	require.NoError(t, err)
	require.True(t, ok)

	reqs := []protocol.Request{
		&protocol.InitialPackageInstallRequest{Package: lang.Manifest()},
		&protocol.GameteCreationRequest{Classpath: n.Classpath, InitialAmount: big.NewInt(1), PublicKey: "key"},
		&protocol.InitializationRequest{Classpath: n.Classpath, Manifest: n.Manifest},
	}
	for _, req := range reqs {
		_, err := n.Build(req)
		assert.True(t, errors.Is(err, xerror.ErrInitialized), "%s: %v", req.RequestKind(), err)
	}
}

func TestTransfer(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)

	res, err := n.SignAndRun(receiveRequest(n, alice, bob.Ref, 100), alice.Priv)
	require.NoError(t, err)
	resp, ok := res.Record.Response.(*protocol.MethodCallVoidSuccessResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())

	price := n.Consensus.MinPrice()
	spent := new(big.Int).Mul(resp.GasConsumed.Total(), price)
	want := new(big.Int).Sub(big.NewInt(accountFunds-100), spent)
	assert.Equal(t, want, balanceOf(t, n, alice.Ref))
	assert.Equal(t, big.NewInt(accountFunds+100), balanceOf(t, n, bob.Ref))
	assert.Equal(t, big.NewInt(1), nonceOf(t, n, alice.Ref))
	assert.True(t, resp.GasConsumed.Total().Cmp(big.NewInt(mock.DefaultGasLimit)) < 0)
}

func TestDeterminism(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)
	req := receiveRequest(n, alice, bob.Ref, 7)
	sign(t, n, req, alice.Priv)

	snap, err := n.Store.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	first, err := n.Engine.Build(snap, req)
	require.NoError(t, err)
	second, err := n.Engine.Build(snap, req)
	require.NoError(t, err)
	assert.Equal(t, first.Record.Reference, second.Record.Reference)
	assert.Equal(t, protocol.MarshalResponse(first.Record.Response), protocol.MarshalResponse(second.Record.Response))
	assert.Equal(t, first.ReadSet, second.ReadSet)
}

func TestRejections(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)

	tests := []struct {
		name   string
		mutate func(req *protocol.InstanceMethodCallRequest)
		priv   []byte
		want   *xerror.Error
	}{
		{"chainID", func(r *protocol.InstanceMethodCallRequest) { r.ChainID = "other" }, alice.Priv, xerror.ErrChainID},
		{"gasLimitTooHigh", func(r *protocol.InstanceMethodCallRequest) {
			r.GasLimit = new(big.Int).Add(n.Consensus.MaxGas(), big.NewInt(1))
		}, alice.Priv, xerror.ErrGasLimit},
		{"gasLimitTooLow", func(r *protocol.InstanceMethodCallRequest) { r.GasLimit = big.NewInt(1) }, alice.Priv, xerror.ErrGasLimit},
		{"gasPrice", func(r *protocol.InstanceMethodCallRequest) { r.GasPrice = big.NewInt(0) }, alice.Priv, xerror.ErrGasPrice},
		{"callerNotAccount", func(r *protocol.InstanceMethodCallRequest) { r.Caller = n.Manifest }, alice.Priv, xerror.ErrCaller},
		{"signature", func(r *protocol.InstanceMethodCallRequest) {}, bob.Priv, xerror.ErrSignature},
		{"nonce", func(r *protocol.InstanceMethodCallRequest) { r.Nonce = big.NewInt(5) }, alice.Priv, xerror.ErrNonce},
		{"classpath", func(r *protocol.InstanceMethodCallRequest) { r.Classpath = bob.Ref.Transaction }, alice.Priv, xerror.ErrClasspath},
		{"arity", func(r *protocol.InstanceMethodCallRequest) { r.Actuals = nil }, alice.Priv, xerror.ErrMalformedRequest},
		{"cannotAfford", func(r *protocol.InstanceMethodCallRequest) {
			r.GasPrice = big.NewInt(accountFunds)
		}, alice.Priv, xerror.ErrInsufficientGas},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := receiveRequest(n, alice, bob.Ref, 1)
			tt.mutate(req)
			sign(t, n, req, tt.priv)
			_, err := n.Build(req)
			assert.True(t, response.IsRejected(err))
			assert.True(t, errors.Is(err, tt.want), "%v", err)
		})
	}
}

// 不可导出的对象作为实参时拒绝，余额和nonce不变
func TestNotExportedRejected(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)

	req := &protocol.ConstructorCallRequest{
		TransactionCommon: n.Common(alice.Ref, big.NewInt(0)),
		Constructor:       lang.NewEvent,
	}
	res, err := n.SignAndRun(req, alice.Priv)
	require.NoError(t, err)
	created, ok := res.Record.Response.(*protocol.ConstructorCallSuccessResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())

	balance := balanceOf(t, n, alice.Ref)
	nonce := nonceOf(t, n, alice.Ref)
	call := &protocol.InstanceMethodCallRequest{
		TransactionCommon: n.Common(alice.Ref, nonce),
		Method:            lang.Faucet,
		Receiver:          n.Gamete.Ref,
		Actuals:           protocol.StorageValues{created.NewObject, protocol.NewBigInteger(1)},
	}
	_, err = n.SignAndRun(call, alice.Priv)
	assert.True(t, errors.Is(err, xerror.ErrNotExported), "%v", err)
	assert.Equal(t, balance, balanceOf(t, n, alice.Ref))
	assert.Equal(t, nonce, nonceOf(t, n, alice.Ref))
}

// minimalLimit 二分查找不被拒绝的最小gas预算
func minimalLimit(t *testing.T, n *mock.TestNode, acc mock.Account, to protocol.StorageReference) int64 {
	lo, hi := int64(1), int64(mock.DefaultGasLimit)
	for lo < hi {
		mid := (lo + hi) / 2
		req := receiveRequest(n, acc, to, 1)
		req.GasLimit = big.NewInt(mid)
		sign(t, n, req, acc.Priv)
		_, err := n.Build(req)
		if errors.Is(err, xerror.ErrGasLimit) {
			lo = mid + 1
		} else {
			require.NoError(t, err)
			hi = mid
		}
	}
	return lo
}

func TestOutOfGasFails(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)

	limit := minimalLimit(t, n, alice, bob.Ref)
	req := receiveRequest(n, alice, bob.Ref, 1)
	req.GasLimit = big.NewInt(limit)
	res, err := n.SignAndRun(req, alice.Priv)
	require.NoError(t, err)

	resp, ok := res.Record.Response.(*protocol.MethodCallFailedResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, protocol.ClassOutOfGasError, resp.ClassNameOfCause)
	assert.Equal(t, big.NewInt(limit), resp.GasConsumedForPenalty)

	penalty := new(big.Int).Mul(big.NewInt(limit), n.Consensus.MinPrice())
	assert.Equal(t, new(big.Int).Sub(big.NewInt(accountFunds), penalty), balanceOf(t, n, alice.Ref))
	assert.Equal(t, big.NewInt(accountFunds), balanceOf(t, n, bob.Ref))
	assert.ElementsMatch(t, protocol.Updates{
		protocol.FieldUpdate{Object: alice.Ref, Field: protocol.FieldBalance, Value: protocol.BigIntegerOf(new(big.Int).Sub(big.NewInt(accountFunds), penalty))},
		protocol.FieldUpdate{Object: alice.Ref, Field: protocol.FieldNonce, Value: protocol.NewBigInteger(1)},
	}, resp.Updates)
}

func TestCallableNotFoundFails(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)

	req := receiveRequest(n, alice, bob.Ref, 1)
	req.Method = protocol.MethodSignature{DefiningClass: protocol.ClassContract, Name: "missing"}
	req.Actuals = nil
	res, err := n.SignAndRun(req, alice.Priv)
	require.NoError(t, err)

	resp, ok := res.Record.Response.(*protocol.MethodCallFailedResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, protocol.ClassIllegalCallError, resp.ClassNameOfCause)
	assert.Len(t, resp.Updates, 2)
	penalty := new(big.Int).Mul(big.NewInt(mock.DefaultGasLimit), n.Consensus.MinPrice())
	assert.Equal(t, new(big.Int).Sub(big.NewInt(accountFunds), penalty), balanceOf(t, n, alice.Ref))
}

func TestPackageInstall(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	cp := installShop(t, n, alice)

	cpObj, err := n.Engine.Resolver().Classpath(n.Store, cp)
	require.NoError(t, err)
	assert.True(t, cpObj.IsSubclass(classShop, protocol.ClassContract))

	req := &protocol.PackageInstallRequest{
		TransactionCommon: n.Common(alice.Ref, nonceOf(t, n, alice.Ref)),
		Package:           []byte("name: unknown\nversion: \"1\"\n"),
	}
	res, err := n.SignAndRun(req, alice.Priv)
	require.NoError(t, err)
	failed, ok := res.Record.Response.(*protocol.PackageInstallFailedResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, "lang.VerificationError", failed.ClassNameOfCause)
}

func TestConstructorOutcomes(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	cp := installShop(t, n, alice)

	// 受检异常：结果是ConstructorCallException，新对象的类标签仍然保存
	res := createShop(t, n, alice, cp, -1)
	exc, ok := res.Record.Response.(*protocol.ConstructorCallExceptionResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, classOutOfStock, exc.ClassNameOfCause)
	assert.True(t, exc.GasConsumed.Total().Cmp(big.NewInt(mock.DefaultGasLimit)) < 0)
	newObj := protocol.StorageReference{Transaction: res.Record.Reference}
	assert.Contains(t, exc.Updates, protocol.Update(protocol.ClassTag{Object: newObj, ClassName: classShop, Package: cp}))

	// 不受检异常导致失败
	res = createShop(t, n, alice, cp, 0)
	failed, ok := res.Record.Response.(*protocol.ConstructorCallFailedResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, protocol.ClassIllegalArgumentException, failed.ClassNameOfCause)
	assert.Len(t, failed.Updates, 2)

	res = createShop(t, n, alice, cp, 5)
	created, ok := res.Record.Response.(*protocol.ConstructorCallSuccessResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	stock, err := n.Field(created.NewObject, fieldStock)
	require.NoError(t, err)
	assert.Equal(t, protocol.IntValue(5), stock)
}

func TestMethodOutcomes(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	cp := installShop(t, n, alice)
	shop := createShop(t, n, alice, cp, 5).Record.Response.(*protocol.ConstructorCallSuccessResponse).NewObject

	res := callShop(t, n, alice, cp, shop, getStock)
	value, ok := res.Record.Response.(*protocol.MethodCallValueSuccessResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, protocol.IntValue(5), value.Result)

	res = callShop(t, n, alice, cp, shop, peek)
	viewFailed, ok := res.Record.Response.(*protocol.MethodCallFailedResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, protocol.ClassIllegalCallError, viewFailed.ClassNameOfCause)

	res = callShop(t, n, alice, cp, shop, restock, protocol.IntValue(-3))
	exc, ok := res.Record.Response.(*protocol.MethodCallExceptionResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	assert.Equal(t, classOutOfStock, exc.ClassNameOfCause)

	res = callShop(t, n, alice, cp, shop, restock, protocol.IntValue(3))
	require.IsType(t, &protocol.MethodCallVoidSuccessResponse{}, res.Record.Response)
	stock, err := n.Field(shop, fieldStock)
	require.NoError(t, err)
	assert.Equal(t, protocol.IntValue(8), stock)

	res = callShop(t, n, alice, cp, shop, announce)
	void, ok := res.Record.Response.(*protocol.MethodCallVoidSuccessResponse)
	require.True(t, ok, "%s", res.Record.Response.ResponseKind())
	require.Len(t, void.Events, 1)
	tag, err := n.Store.ClassTag(void.Events[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.ClassEvent, tag.ClassName)
	creator, err := n.Field(void.Events[0], protocol.FieldEventCreator)
	require.NoError(t, err)
	assert.Equal(t, shop, creator)
}

// 嵌套调用中的非法调用和panic即使被捕获，交易也失败并扣除全部gas
func TestNestedCallEnforcement(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	cp := installShop(t, n, alice)
	shop := createShop(t, n, alice, cp, 5).Record.Response.(*protocol.ConstructorCallSuccessResponse).NewObject

	tests := []struct {
		name   string
		method protocol.MethodSignature
		cause  string
	}{
		{"swallowIllegal", swallowIllegal, protocol.ClassIllegalCallError},
		{"relayIllegal", relayIllegal, protocol.ClassIllegalCallError},
		{"swallowPanic", swallowPanic, protocol.ClassInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := balanceOf(t, n, alice.Ref)
			res := callShop(t, n, alice, cp, shop, tt.method)
			failed, ok := res.Record.Response.(*protocol.MethodCallFailedResponse)
			require.True(t, ok, "%s", res.Record.Response.ResponseKind())
			assert.Equal(t, tt.cause, failed.ClassNameOfCause)
			assert.Equal(t, big.NewInt(mock.DefaultGasLimit), failed.GasConsumedForPenalty)

			penalty := new(big.Int).Mul(big.NewInt(mock.DefaultGasLimit), n.Consensus.MinPrice())
			assert.Equal(t, new(big.Int).Sub(before, penalty), balanceOf(t, n, alice.Ref))
		})
	}

	// 失败不影响之后的调用
	res := callShop(t, n, alice, cp, shop, restock, protocol.IntValue(1))
	require.IsType(t, &protocol.MethodCallVoidSuccessResponse{}, res.Record.Response)
}

func TestBuilderStates(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)
	req := receiveRequest(n, alice, bob.Ref, 1)
	sign(t, n, req, alice.Priv)

	snap, err := n.Store.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	b, err := n.Engine.NewBuilder(snap, req)
	require.NoError(t, err)
	assert.Equal(t, response.StateCreated, b.State())
	_, err = b.Build()
	require.NoError(t, err)
	assert.Equal(t, response.StateSucceeded, b.State())
	_, err = b.Build()
	assert.Error(t, err)

	req.Nonce = big.NewInt(9)
	b, err = n.Engine.NewBuilder(snap, req)
	require.NoError(t, err)
	_, err = b.Build()
	assert.Error(t, err)
	assert.Equal(t, response.StateRejected, b.State())
}

func TestUnsignedFaucet(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	gameteBalance := balanceOf(t, n, n.Gamete.Ref)

	common := n.Common(n.Gamete.Ref, nonceOf(t, n, n.Gamete.Ref))
	common.GasPrice = big.NewInt(0)
	req := &protocol.InstanceMethodCallRequest{
		TransactionCommon: common,
		Method:            lang.Faucet,
		Receiver:          n.Gamete.Ref,
		Actuals:           protocol.StorageValues{alice.Ref, protocol.NewBigInteger(500)},
	}
	res, err := n.Run(req)
	require.NoError(t, err)
	require.IsType(t, &protocol.MethodCallVoidSuccessResponse{}, res.Record.Response)
	assert.Equal(t, big.NewInt(accountFunds+500), balanceOf(t, n, alice.Ref))
	assert.Equal(t, new(big.Int).Sub(gameteBalance, big.NewInt(500)), balanceOf(t, n, n.Gamete.Ref))

	// 非gamete调用时仍然要求签名和最低价格
	common = n.Common(alice.Ref, nonceOf(t, n, alice.Ref))
	common.GasPrice = big.NewInt(0)
	req = &protocol.InstanceMethodCallRequest{
		TransactionCommon: common,
		Method:            lang.Faucet,
		Receiver:          n.Gamete.Ref,
		Actuals:           protocol.StorageValues{alice.Ref, protocol.NewBigInteger(500)},
	}
	_, err = n.Build(req)
	assert.True(t, errors.Is(err, xerror.ErrGasPrice), "%v", err)
}

// 同一nonce的两个请求只有一个能提交
func TestSameNonceConflict(t *testing.T) {
	n := newTestNode(t)
	alice := newAccount(t, n)
	bob := newAccount(t, n)

	first := receiveRequest(n, alice, bob.Ref, 1)
	second := receiveRequest(n, alice, bob.Ref, 2)
	sign(t, n, first, alice.Priv)
	sign(t, n, second, alice.Priv)

	snap, err := n.Store.Snapshot()
	require.NoError(t, err)
	results, errs := n.Engine.BuildBatch(context.Background(), snap, []protocol.Request{first, second})
	snap.Release()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.NoError(t, n.Store.Commit(results[0].Record, results[0].ReadSet))
	err = n.Store.Commit(results[1].Record, results[1].ReadSet)
	assert.True(t, errors.Is(err, store.ErrConflict), "%v", err)

	_, err = n.Build(second)
	assert.True(t, errors.Is(err, xerror.ErrNonce), "%v", err)
	assert.Equal(t, big.NewInt(1), nonceOf(t, n, alice.Ref))
}
