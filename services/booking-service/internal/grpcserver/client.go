package grpcserver

import (
	"context"

	"github.com/md-rashed-zaman/bookslot/libs/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls AvailabilityService from another process.
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(addr string, extra ...grpc.DialOption) (*Client, error) {
	conn, err := grpcx.NewClient(addr, grpcx.DialOptions{}, extra...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) CheckAvailability(ctx context.Context, req map[string]any) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCheck, req)
}

func (c *Client) FindAvailableSlots(ctx context.Context, req map[string]any) (*structpb.Struct, error) {
	return c.invoke(ctx, methodSlots, req)
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
