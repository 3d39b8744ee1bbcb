package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "verifier.Verifier"

// Method names
const (
	MethodHashBtcHeader         = "HashBtcHeader"
	MethodCall                  = "Call"
	MethodSendTransaction       = "SendTransaction"
	MethodGetTransactionReceipt = "GetTransactionReceipt"
	MethodGetNonce              = "GetNonce"
	MethodGetChainInfo          = "GetChainInfo"
)

// FullMethod returns the path a client invokes for method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// VerifierServer is the server API of the verifier service.
// Messages are protobuf well-known types, so no generated code is needed.
type VerifierServer interface {
	HashBtcHeader(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Call(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	SendTransaction(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	GetTransactionReceipt(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetNonce(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	GetChainInfo(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(VerifierServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VerifierServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(VerifierServer), ctx, req.(Req))
			})
		},
	}
}

// ServiceDesc describes the verifier service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VerifierServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodHashBtcHeader, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, VerifierServer.HashBtcHeader),
		unary(MethodCall, func() *structpb.Struct { return new(structpb.Struct) }, VerifierServer.Call),
		unary(MethodSendTransaction, func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) }, VerifierServer.SendTransaction),
		unary(MethodGetTransactionReceipt, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, VerifierServer.GetTransactionReceipt),
		unary(MethodGetNonce, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, VerifierServer.GetNonce),
		unary(MethodGetChainInfo, func() *emptypb.Empty { return new(emptypb.Empty) }, VerifierServer.GetChainInfo),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "verifier.proto",
}

// RegisterVerifierServer registers srv on s
func RegisterVerifierServer(s grpc.ServiceRegistrar, srv VerifierServer) {
	s.RegisterService(&ServiceDesc, srv)
}
