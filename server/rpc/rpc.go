package rpc

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/engines/objnode"
	"github.com/xuperchain/objcore/kernel/store"
	"github.com/xuperchain/objcore/lib/logs"
	"github.com/xuperchain/objcore/lib/metrics"
	"github.com/xuperchain/objcore/lib/utils"
	sctx "github.com/xuperchain/objcore/server/context"
)

type RpcServ struct {
	node *objnode.ObjNode
	log  logs.Logger
}

var _ ObjcoreServer = (*RpcServ)(nil)

func NewRpcServ(node *objnode.ObjNode, log logs.Logger) *RpcServ {
	return &RpcServ{
		node: node,
		log:  log,
	}
}

// UnaryInterceptor 补全请求头并统计耗时，panic由recovery拦截器处理
func (t *RpcServ) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler) (resp interface{}, err error) {
		begin := time.Now()
		defer func() {
			metrics.RPCCallHistogram.WithLabelValues(info.FullMethod).Observe(time.Since(begin).Seconds())
		}()

		if hg, ok := req.(HeaderGetter); ok {
			setDefHeader(req, hg)
		}
		return handler(ctx, req)
	}
}

func setDefHeader(req interface{}, hg HeaderGetter) {
	if hg.GetHeader() == nil {
		switch r := req.(type) {
		case *AddRequestReq:
			r.Header = defReqHeader()
		case *GetResponseReq:
			r.Header = defReqHeader()
		case *GetStateReq:
			r.Header = defReqHeader()
		case *GetManifestReq:
			r.Header = defReqHeader()
		}
		return
	}
	if hg.GetHeader().LogId == "" {
		hg.GetHeader().LogId = utils.GenLogId()
	}
}

func defReqHeader() *ReqHeader {
	return &ReqHeader{
		LogId:    utils.GenLogId(),
		SelfName: "unknow",
	}
}

func (t *RpcServ) defRespHeader(rHeader *ReqHeader) *RespHeader {
	header := &RespHeader{
		Error:   xerror.ErrUnknown.Code,
		TraceId: utils.GetHostName(),
	}
	if rHeader != nil {
		header.LogId = rHeader.LogId
	}
	return header
}

// setError 按xerror的错误码填充响应头
func setError(header *RespHeader, err error) {
	if err == nil {
		header.Error = ErrCodeSuccess
		header.Message = ""
		return
	}
	var xe *xerror.Error
	if !errors.As(err, &xe) {
		xe = xerror.ErrUnknown.More("%v", err)
	}
	header.Error = xe.Code
	header.Message = xe.Msg
}

// lookupError 查询接口的错误，区分不存在和存储故障
func lookupError(err error) error {
	var xe *xerror.Error
	switch {
	case errors.As(err, &xe):
		return err
	case errors.Is(err, store.ErrNotFound):
		return xerror.ErrNotExist.More("%v", err)
	}
	return xerror.ErrStoreFailed.More("%v", err)
}

// 请求处理前处理，各接口个性化记录日志，没有使用拦截器
// others必须是KV格式，K为string
func (t *RpcServ) access(gctx context.Context, reqHeader *ReqHeader,
	others ...interface{}) (sctx.ReqCtx, error) {
	clientIp, err := t.getClientIP(gctx)
	if err != nil {
		t.log.Error("access proc failed because get client ip failed", "err", err)
		return nil, fmt.Errorf("get client ip failed")
	}

	rctx, err := sctx.NewReqCtx(t.node, reqHeader.LogId, clientIp)
	if err != nil {
		t.log.Error("access proc failed because create request context failed", "err", err)
		return nil, fmt.Errorf("create request context failed")
	}

	rctx.GetLog().Trace("received request", append([]interface{}{"from", reqHeader.SelfName,
		"client_ip", clientIp}, others...)...)

	return rctx, nil
}

// 请求完成后处理
// others必须是KV格式，K为string
func (t *RpcServ) ending(rctx sctx.ReqCtx, respHeader *RespHeader, others ...interface{}) {
	rctx.GetLog().Info("request done", append([]interface{}{"error", respHeader.Error,
		"cost_time", rctx.GetTimer().Print()}, others...)...)
}

func (t *RpcServ) getClientIP(gctx context.Context) (string, error) {
	pr, ok := peer.FromContext(gctx)
	if !ok {
		return "", fmt.Errorf("create peer form context failed")
	}

	if pr.Addr == nil || pr.Addr == net.Addr(nil) {
		return "", fmt.Errorf("get client_ip failed because peer.Addr is nil")
	}

	addrSlice := strings.Split(pr.Addr.String(), ":")
	return addrSlice[0], nil
}
