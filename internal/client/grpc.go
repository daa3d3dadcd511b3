package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC method names of gridpanel.v1.GridService.
const (
	methodCall   = "/gridpanel.v1.GridService/Call"
	methodHealth = "/gridpanel.v1.GridService/Health"
)

// GRPCClient implements Caller using the gRPC transport.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string

	mu      sync.Mutex
	session string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token, session string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token, session: session}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Session returns the grid session id.
func (c *GRPCClient) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// Call runs a grid endpoint.
func (c *GRPCClient) Call(ctx context.Context, gridID, endpoint string, params map[string]any, result any) error {
	plain, err := plainParams(params)
	if err != nil {
		return err
	}
	req, err := structpb.NewStruct(map[string]any{
		"grid":     gridID,
		"endpoint": endpoint,
		"session":  c.Session(),
		"params":   plain,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodCall, req, resp); err != nil {
		return err
	}
	fields := resp.GetFields()
	if sess := fields["session"].GetStringValue(); sess != "" {
		c.mu.Lock()
		if c.session == "" {
			c.session = sess
		}
		c.mu.Unlock()
	}
	return remarshal(fields["result"].AsInterface(), result)
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), methodHealth, &emptypb.Empty{}, resp); err != nil {
		return "", err
	}
	return resp.GetFields()["status"].GetStringValue(), nil
}

// plainParams reduces params to the JSON value shapes structpb accepts.
func plainParams(params map[string]any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return out, nil
}
