package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/grid"
	"github.com/alfredjeanlab/gridpanel/internal/idgen"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC service and method names.
const (
	ServiceName  = "gridpanel.v1.GridService"
	MethodCall   = "/" + ServiceName + "/Call"
	MethodHealth = "/" + ServiceName + "/Health"
)

// GridServiceServer is the gRPC surface of a GridServer. Call takes a
// struct {grid, endpoint, session, params} and returns
// {session, result}; Health returns {status}.
type GridServiceServer interface {
	Call(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// GridServiceDesc describes GridService for grpc.Server.RegisterService.
var GridServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GridServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gridpanel/v1/grid.proto",
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GridServiceServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCall}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GridServiceServer).Call(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GridServiceServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodHealth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GridServiceServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcService adapts GridServer to GridServiceServer.
type grpcService struct {
	srv *GridServer
}

// Call runs one grid endpoint.
func (g *grpcService) Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	id, _ := fields["grid"].(string)
	endpoint, _ := fields["endpoint"].(string)
	sess, _ := fields["session"].(string)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "grid is required")
	}
	if endpoint == "" {
		return nil, status.Error(codes.InvalidArgument, "endpoint is required")
	}
	if sess == "" {
		var err error
		if sess, err = idgen.Session(); err != nil {
			return nil, status.Errorf(codes.Internal, "failed to create session: %v", err)
		}
	} else if err := session.ValidateID(sess); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p := grid.Params{}
	if raw, ok := fields["params"].(map[string]any); ok {
		p = grid.Params(raw)
	}

	resp, err := g.srv.Call(ctx, id, sess, endpoint, p)
	if err != nil {
		return nil, status.Error(grpcCode(err), err.Error())
	}
	result, err := toValue(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s response: %v", endpoint, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"session": structpb.NewStringValue(sess),
		"result":  result,
	}}, nil
}

// Health reports server liveness.
func (g *grpcService) Health(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

// toValue converts an endpoint response to a protobuf value through its JSON
// form, so the wire shape matches the HTTP transport.
func toValue(v any) (*structpb.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, err
	}
	val, err := structpb.NewValue(decoded)
	if err != nil {
		return nil, fmt.Errorf("to struct value: %w", err)
	}
	return val, nil
}

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// GridService and reflection, and returns the server ready to serve.
// When authToken is non-empty every call but Health requires it.
func NewGRPCServer(gridServer *GridServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&GridServiceDesc, &grpcService{srv: gridServer})
	reflection.Register(srv)

	return srv
}
