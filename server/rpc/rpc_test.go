package rpc

import (
	"context"
	"math/big"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/xuperchain/objcore/bcs/code/lang"
	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/engines/objnode"
	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/kernel/mock"
	"github.com/xuperchain/objcore/kernel/protocol"
	"github.com/xuperchain/objcore/lib/logs"
)

type rpcEnv struct {
	mock   *mock.TestNode
	client *ObjcoreClient
	alice  mock.Account
	bob    mock.Account
}

func newRpcEnv(t *testing.T) *rpcEnv {
	m, err := mock.NewTestNode(nil)
	require.NoError(t, err)
	alice, err := m.NewAccount(big.NewInt(1000000))
	require.NoError(t, err)
	bob, err := m.NewAccount(big.NewInt(1000000))
	require.NoError(t, err)

	conf := config.GetDefNodeConf()
	conf.Consensus = *m.Consensus
	node, err := objnode.NewNode(conf, m.Store, m.Engine, logs.NewTestLogger("objnode"))
	require.NoError(t, err)
	go node.Run()

	mg, err := NewRpcServMG(&conf.RPC, node)
	require.NoError(t, err)
	lis := bufconn.Listen(1 << 20)
	go mg.Serve(lis)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithInsecure())
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		mg.Exit()
		node.Exit()
	})
	return &rpcEnv{mock: m, client: NewObjcoreClient(conn), alice: alice, bob: bob}
}

func (e *rpcEnv) transfer(t *testing.T, nonce int64) []byte {
	req := &protocol.InstanceMethodCallRequest{
		TransactionCommon: e.mock.Common(e.alice.Ref, big.NewInt(nonce)),
		Method:            lang.Receive,
		Receiver:          e.bob.Ref,
		Actuals:           protocol.StorageValues{protocol.NewBigInteger(5)},
	}
	require.NoError(t, protocol.Sign(req, e.mock.Engine.SignatureAlgorithm(), e.alice.Priv))
	data, err := protocol.MarshalRequestJSON(req)
	require.NoError(t, err)
	return data
}

func TestAddRequest(t *testing.T) {
	env := newRpcEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		request []byte
		code    int
	}{
		{"success", env.transfer(t, 0), ErrCodeSuccess},
		{"badNonce", env.transfer(t, 7), xerror.ErrNonce.Code},
		{"malformed", []byte(`{"type":"nothing","body":{}}`), xerror.ErrMalformedRequest.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.client.AddRequest(ctx, &AddRequestReq{Request: tt.request})
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.Header.Error, resp.Header.Message)
			assert.NotEmpty(t, resp.Header.LogId)
			if tt.code != ErrCodeSuccess {
				return
			}

			decoded, err := protocol.UnmarshalResponseJSON(resp.Response)
			require.NoError(t, err)
			assert.IsType(t, &protocol.MethodCallVoidSuccessResponse{}, decoded)

			got, err := env.client.GetResponse(ctx, &GetResponseReq{Reference: resp.Reference})
			require.NoError(t, err)
			assert.Equal(t, ErrCodeSuccess, got.Header.Error)
			assert.JSONEq(t, string(resp.Response), string(got.Response))
		})
	}
}

func TestQueries(t *testing.T) {
	env := newRpcEnv(t)
	ctx := context.Background()

	manifest, err := env.client.GetManifest(ctx, &GetManifestReq{Header: &ReqHeader{LogId: "manifest"}})
	require.NoError(t, err)
	assert.Equal(t, ErrCodeSuccess, manifest.Header.Error)
	assert.Equal(t, "manifest", manifest.Header.LogId)
	assert.Equal(t, env.mock.Manifest.String(), manifest.Manifest)

	state, err := env.client.GetState(ctx, &GetStateReq{Object: env.bob.Ref.String()})
	require.NoError(t, err)
	assert.Equal(t, ErrCodeSuccess, state.Header.Error)
	assert.Contains(t, state.Updates, protocol.Update(protocol.FieldUpdate{
		Object: env.bob.Ref,
		Field:  protocol.FieldBalance,
		Value:  protocol.NewBigInteger(1000000),
	}))

	bad, err := env.client.GetState(ctx, &GetStateReq{Object: "not a reference"})
	require.NoError(t, err)
	assert.Equal(t, xerror.ErrParameter.Code, bad.Header.Error)

	var unknown protocol.TransactionReference
	unknown[0] = 1
	missing, err := env.client.GetResponse(ctx, &GetResponseReq{Reference: unknown.String()})
	require.NoError(t, err)
	assert.Equal(t, xerror.ErrNotExist.Code, missing.Header.Error)
}
