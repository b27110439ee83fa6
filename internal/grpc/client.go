package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// GRPCQueueClient реализует queue.Broker поверх gRPC сервиса координатора
type GRPCQueueClient struct {
	conn *grpc.ClientConn
}

// NewGRPCQueueClient подключается к сервису очередей и проверяет его доступность
func NewGRPCQueueClient(ctx context.Context, address string, opts ...grpc.DialOption) (*GRPCQueueClient, error) {
	// Трафик очередей не шифруется
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.Dial(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", protocol.ErrQueueUnavailable, address, err)
	}

	c := &GRPCQueueClient{conn: conn}
	if err := c.Ping(ctx); err != nil {
		conn.Close()
		if errors.Is(err, protocol.ErrQueueUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ping %s: %v", protocol.ErrQueueUnavailable, address, err)
	}
	return c, nil
}

func withChannels(ctx context.Context, channels ...string) context.Context {
	kv := make([]string, 0, 2*len(channels))
	for _, channel := range channels {
		kv = append(kv, channelMetadataKey, channel)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func (c *GRPCQueueClient) fromStatus(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if status.Code(err) == codes.NotFound {
		return queue.ErrEmpty
	}
	return fmt.Errorf("%w: %s: %v", protocol.ErrQueueUnavailable, op, err)
}

func (c *GRPCQueueClient) Push(ctx context.Context, channel string, payload string) error {
	out := new(emptypb.Empty)
	if err := c.conn.Invoke(withChannels(ctx, channel), methodPush, wrapperspb.String(payload), out); err != nil {
		return c.fromStatus(ctx, "push", err)
	}
	return nil
}

func (c *GRPCQueueClient) Pop(ctx context.Context, channel string, timeout time.Duration) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(withChannels(ctx, channel), methodPop, durationpb.New(timeout), out); err != nil {
		return "", c.fromStatus(ctx, "pop", err)
	}
	return out.GetValue(), nil
}

func (c *GRPCQueueClient) Purge(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	out := new(emptypb.Empty)
	if err := c.conn.Invoke(withChannels(ctx, channels...), methodPurge, &wrapperspb.StringValue{}, out); err != nil {
		return c.fromStatus(ctx, "purge", err)
	}
	return nil
}

func (c *GRPCQueueClient) Ping(ctx context.Context) error {
	out := new(emptypb.Empty)
	if err := c.conn.Invoke(ctx, methodPing, &emptypb.Empty{}, out); err != nil {
		return c.fromStatus(ctx, "ping", err)
	}
	return nil
}

// Close закрывает соединение с сервисом
func (c *GRPCQueueClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
