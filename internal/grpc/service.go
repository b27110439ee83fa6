package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Имя канала очереди передается в метаданных вызова, поэтому сообщения
// сервиса обходятся стандартными типами protobuf.
const channelMetadataKey = "x-queue-channel"

const (
	serviceName = "integrator.queue.v1.QueueService"
	methodPush  = "/" + serviceName + "/Push"
	methodPop   = "/" + serviceName + "/Pop"
	methodPurge = "/" + serviceName + "/Purge"
	methodPing  = "/" + serviceName + "/Ping"
)

// QueueServiceServer серверная сторона сервиса очередей
type QueueServiceServer interface {
	Push(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Pop(context.Context, *durationpb.Duration) (*wrapperspb.StringValue, error)
	Purge(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterQueueServiceServer регистрирует реализацию на gRPC сервере
func RegisterQueueServiceServer(s grpc.ServiceRegistrar, srv QueueServiceServer) {
	s.RegisterService(&queueServiceDesc, srv)
}

var queueServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*QueueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
		{MethodName: "Pop", Handler: popHandler},
		{MethodName: "Purge", Handler: purgeHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "queue.proto",
}

func pushHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueServiceServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPush}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueueServiceServer).Push(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func popHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(durationpb.Duration)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueServiceServer).Pop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPop}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueueServiceServer).Pop(ctx, req.(*durationpb.Duration))
	}
	return interceptor(ctx, in, info, handler)
}

func purgeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueServiceServer).Purge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPurge}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueueServiceServer).Purge(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPing}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueueServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
