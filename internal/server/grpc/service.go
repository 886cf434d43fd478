package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	TokenServiceName = "vipclub.auth.v1.TokenService"

	IntrospectMethod = "/" + TokenServiceName + "/Introspect"
	RevokeMethod     = "/" + TokenServiceName + "/Revoke"
)

// TokenServiceServer is implemented by GRPCServer. Both calls act on the
// token carried in the request metadata.
type TokenServiceServer interface {
	Introspect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Revoke(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// TokenServiceDesc registers TokenServiceServer without generated code;
// requests and responses are protobuf well-known types.
var TokenServiceDesc = grpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
		{MethodName: "Revoke", Handler: revokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vipclub/auth/v1/token.proto",
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IntrospectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Introspect(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func revokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Revoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RevokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Revoke(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// TokenServiceClient calls TokenService over cc.
type TokenServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTokenServiceClient(cc grpc.ClientConnInterface) *TokenServiceClient {
	return &TokenServiceClient{cc: cc}
}

func (c *TokenServiceClient) Introspect(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IntrospectMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TokenServiceClient) Revoke(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, RevokeMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
