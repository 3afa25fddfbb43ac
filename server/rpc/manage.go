package rpc

import (
	"fmt"
	"net"
	"sync"

	middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xuperchain/objcore/kernel/engines"
	"github.com/xuperchain/objcore/kernel/engines/objnode"
	"github.com/xuperchain/objcore/kernel/engines/objnode/config"
	"github.com/xuperchain/objcore/lib/logs"
	sctx "github.com/xuperchain/objcore/server/context"
)

// rpc server启停控制管理
type RpcServMG struct {
	scfg     *config.RPCConf
	node     *objnode.ObjNode
	log      logs.Logger
	rpcServ  *RpcServ
	servHD   *grpc.Server
	isInit   bool
	exitOnce *sync.Once
}

func NewRpcServMG(scfg *config.RPCConf, engine engines.BCEngine) (*RpcServMG, error) {
	if scfg == nil || engine == nil {
		return nil, fmt.Errorf("param error")
	}
	node, err := objnode.EngineConvert(engine)
	if err != nil {
		return nil, fmt.Errorf("not objnode engine")
	}

	log, _ := logs.NewLogger("", sctx.SubModName)
	obj := &RpcServMG{
		scfg:     scfg,
		node:     node,
		log:      log,
		rpcServ:  NewRpcServ(node, log),
		exitOnce: &sync.Once{},
	}
	if err := obj.initGrpcServer(); err != nil {
		return nil, err
	}
	obj.isInit = true

	return obj, nil
}

func (t *RpcServMG) initGrpcServer() error {
	maxMsg, err := t.scfg.MaxMsgBytes()
	if err != nil {
		return err
	}

	recoveryOpt := grpc_recovery.WithRecoveryHandler(func(p interface{}) error {
		t.log.Error("rpc server happen panic", "error", p)
		return status.Errorf(codes.Internal, "panic: %v", p)
	})
	rpcOptions := []grpc.ServerOption{
		middleware.WithUnaryServerChain(
			grpc_recovery.UnaryServerInterceptor(recoveryOpt),
			t.rpcServ.UnaryInterceptor(),
		),
	}
	if maxMsg > 0 {
		rpcOptions = append(rpcOptions, grpc.MaxRecvMsgSize(maxMsg), grpc.MaxSendMsgSize(maxMsg))
	}

	t.servHD = grpc.NewServer(rpcOptions...)
	RegisterObjcoreServer(t.servHD, t.rpcServ)
	return nil
}

// 启动rpc服务，阻塞直到退出
func (t *RpcServMG) Run() error {
	if !t.isInit {
		return fmt.Errorf("RpcServMG not init")
	}

	lis, err := net.Listen("tcp", t.scfg.Listen)
	if err != nil {
		t.log.Error("failed to listen", "err", err.Error(), "addr", t.scfg.Listen)
		return fmt.Errorf("failed to listen")
	}
	return t.Serve(lis)
}

// Serve 在给定的listener上提供服务
func (t *RpcServMG) Serve(lis net.Listener) error {
	if !t.isInit {
		return fmt.Errorf("RpcServMG not init")
	}

	t.log.Trace("run grpc server", "addr", lis.Addr().String())
	if err := t.servHD.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		t.log.Error("failed to serve", "err", err.Error())
		return err
	}

	t.log.Trace("grpc server exit")
	return nil
}

// 退出rpc服务，释放相关资源，需要幂等
func (t *RpcServMG) Exit() {
	if !t.isInit {
		return
	}

	t.exitOnce.Do(func() {
		// 优雅关闭grpc server
		t.servHD.GracefulStop()
	})
}
