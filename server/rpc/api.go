package rpc

import (
	"context"

	"github.com/xuperchain/objcore/kernel/common/xerror"
	"github.com/xuperchain/objcore/kernel/protocol"
)

// AddRequest 提交请求，等待节点构造并提交响应
func (t *RpcServ) AddRequest(gctx context.Context, req *AddRequestReq) (*AddRequestResp, error) {
	resp := &AddRequestResp{Header: t.defRespHeader(req.GetHeader())}

	rctx, err := t.access(gctx, req.GetHeader())
	if err != nil {
		return resp, nil
	}
	defer func() { t.ending(rctx, resp.Header, "tx", resp.Reference) }()

	request, err := protocol.UnmarshalRequestJSON(req.Request)
	if err != nil {
		rctx.GetLog().Warn("decode request failed", "err", err)
		setError(resp.Header, xerror.ErrMalformedRequest.More("%v", err))
		return resp, nil
	}

	ref, response, err := rctx.GetNode().Submit(gctx, request)
	resp.Reference = ref.String()
	rctx.GetTimer().Mark("Submit")
	if err != nil {
		rctx.GetLog().Warn("request not accepted", "kind", request.RequestKind().String(), "err", err)
		setError(resp.Header, err)
		return resp, nil
	}
	if resp.Response, err = protocol.MarshalResponseJSON(response); err != nil {
		setError(resp.Header, xerror.ErrInternal.More("%v", err))
		return resp, nil
	}

	setError(resp.Header, nil)
	return resp, nil
}

func (t *RpcServ) GetResponse(gctx context.Context, req *GetResponseReq) (*GetResponseResp, error) {
	resp := &GetResponseResp{Header: t.defRespHeader(req.GetHeader())}

	rctx, err := t.access(gctx, req.GetHeader(), "tx", req.Reference)
	if err != nil {
		return resp, nil
	}
	defer t.ending(rctx, resp.Header)

	ref, err := protocol.ParseTransactionReference(req.Reference)
	if err != nil {
		setError(resp.Header, xerror.ErrParameter.More("%v", err))
		return resp, nil
	}
	response, err := rctx.GetNode().GetResponse(ref)
	if err != nil {
		setError(resp.Header, lookupError(err))
		return resp, nil
	}
	if resp.Response, err = protocol.MarshalResponseJSON(response); err != nil {
		setError(resp.Header, xerror.ErrInternal.More("%v", err))
		return resp, nil
	}

	setError(resp.Header, nil)
	return resp, nil
}

func (t *RpcServ) GetState(gctx context.Context, req *GetStateReq) (*GetStateResp, error) {
	resp := &GetStateResp{Header: t.defRespHeader(req.GetHeader())}

	rctx, err := t.access(gctx, req.GetHeader(), "object", req.Object)
	if err != nil {
		return resp, nil
	}
	defer t.ending(rctx, resp.Header)

	obj, err := protocol.ParseStorageReference(req.Object)
	if err != nil {
		setError(resp.Header, xerror.ErrParameter.More("%v", err))
		return resp, nil
	}
	updates, err := rctx.GetNode().GetState(obj)
	if err != nil {
		setError(resp.Header, lookupError(err))
		return resp, nil
	}

	resp.Updates = updates
	setError(resp.Header, nil)
	return resp, nil
}

func (t *RpcServ) GetManifest(gctx context.Context, req *GetManifestReq) (*GetManifestResp, error) {
	resp := &GetManifestResp{Header: t.defRespHeader(req.GetHeader())}

	rctx, err := t.access(gctx, req.GetHeader())
	if err != nil {
		return resp, nil
	}
	defer t.ending(rctx, resp.Header)

	manifest, err := rctx.GetNode().GetManifest()
	if err != nil {
		setError(resp.Header, lookupError(err))
		return resp, nil
	}

	resp.Manifest = manifest.String()
	setError(resp.Header, nil)
	return resp, nil
}
