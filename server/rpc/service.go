package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "objcore.Objcore"

// ObjcoreServer 节点对外的rpc接口
type ObjcoreServer interface {
	// AddRequest 提交请求并等待响应
	AddRequest(context.Context, *AddRequestReq) (*AddRequestResp, error)
	GetResponse(context.Context, *GetResponseReq) (*GetResponseResp, error)
	// GetState 对象的类标签以及各字段的最新值
	GetState(context.Context, *GetStateReq) (*GetStateResp, error)
	GetManifest(context.Context, *GetManifestReq) (*GetManifestResp, error)
}

func RegisterObjcoreServer(s *grpc.Server, srv ObjcoreServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func addRequestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AddRequestReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObjcoreServer).AddRequest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("AddRequest")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObjcoreServer).AddRequest(ctx, req.(*AddRequestReq))
	}
	return interceptor(ctx, in, info, handler)
}

func getResponseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetResponseReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObjcoreServer).GetResponse(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetResponse")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObjcoreServer).GetResponse(ctx, req.(*GetResponseReq))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetStateReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObjcoreServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetState")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObjcoreServer).GetState(ctx, req.(*GetStateReq))
	}
	return interceptor(ctx, in, info, handler)
}

func getManifestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetManifestReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObjcoreServer).GetManifest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetManifest")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObjcoreServer).GetManifest(ctx, req.(*GetManifestReq))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ObjcoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddRequest", Handler: addRequestHandler},
		{MethodName: "GetResponse", Handler: getResponseHandler},
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "GetManifest", Handler: getManifestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "objcore",
}

// ObjcoreClient 使用JSON编码调用节点
type ObjcoreClient struct {
	cc *grpc.ClientConn
}

func NewObjcoreClient(cc *grpc.ClientConn) *ObjcoreClient {
	return &ObjcoreClient{cc: cc}
}

func (c *ObjcoreClient) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *ObjcoreClient) AddRequest(ctx context.Context, in *AddRequestReq, opts ...grpc.CallOption) (*AddRequestResp, error) {
	out := new(AddRequestResp)
	if err := c.invoke(ctx, "AddRequest", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ObjcoreClient) GetResponse(ctx context.Context, in *GetResponseReq, opts ...grpc.CallOption) (*GetResponseResp, error) {
	out := new(GetResponseResp)
	if err := c.invoke(ctx, "GetResponse", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ObjcoreClient) GetState(ctx context.Context, in *GetStateReq, opts ...grpc.CallOption) (*GetStateResp, error) {
	out := new(GetStateResp)
	if err := c.invoke(ctx, "GetState", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ObjcoreClient) GetManifest(ctx context.Context, in *GetManifestReq, opts ...grpc.CallOption) (*GetManifestResp, error) {
	out := new(GetManifestResp)
	if err := c.invoke(ctx, "GetManifest", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
