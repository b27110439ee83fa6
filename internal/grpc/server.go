package grpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/queue"
)

// QueueService отдает брокер координатора удаленным воркерам
type QueueService struct {
	broker queue.Broker
}

func NewQueueService(broker queue.Broker) *QueueService {
	return &QueueService{broker: broker}
}

func channelsFromContext(ctx context.Context) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	return md.Get(channelMetadataKey)
}

func channelFromContext(ctx context.Context) (string, error) {
	channels := channelsFromContext(ctx)
	if len(channels) != 1 || channels[0] == "" {
		return "", status.Error(codes.InvalidArgument, "exactly one "+channelMetadataKey+" is required")
	}
	return channels[0], nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, queue.ErrEmpty):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// Push добавляет сообщение в хвост канала
func (s *QueueService) Push(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	channel, err := channelFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.broker.Push(ctx, channel, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Pop ждет сообщение не дольше переданной длительности
func (s *QueueService) Pop(ctx context.Context, in *durationpb.Duration) (*wrapperspb.StringValue, error) {
	channel, err := channelFromContext(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := s.broker.Pop(ctx, channel, in.AsDuration())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(payload), nil
}

// Purge очищает все каналы, перечисленные в метаданных
func (s *QueueService) Purge(ctx context.Context, _ *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.broker.Purge(ctx, channelsFromContext(ctx)...); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *QueueService) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.broker.Ping(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Serve запускает сервис очередей на готовом слушателе
func Serve(lis net.Listener, broker queue.Broker) *grpc.Server {
	s := grpc.NewServer()
	RegisterQueueServiceServer(s, NewQueueService(broker))

	go func() {
		if err := s.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			logger.Log.Errorf("Ошибка gRPC сервиса очередей: %v", err)
		}
	}()
	return s
}

// StartGRPCServer запускает gRPC сервис очередей на указанном адресе
func StartGRPCServer(address string, broker queue.Broker) (*grpc.Server, net.Addr, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, err
	}
	s := Serve(lis, broker)
	logger.Log.Infof("gRPC сервис очередей запущен на %s", lis.Addr())
	return s, lis.Addr(), nil
}
