package engagement

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "honeypot.v1.EngagementService"

const (
	methodProcessTurn  = "/" + ServiceName + "/ProcessTurn"
	methodGetSession   = "/" + ServiceName + "/GetSession"
	methodStreamEvents = "/" + ServiceName + "/StreamEvents"
)

// EngagementServer is the server API for EngagementService.
// Messages are google.protobuf.Struct documents carrying the same JSON
// shapes as the HTTP API.
type EngagementServer interface {
	ProcessTurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes EngagementService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngagementServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessTurn", Handler: processTurnHandler},
		{MethodName: "GetSession", Handler: getSessionHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
}

func processTurnHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngagementServer).ProcessTurn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodProcessTurn}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EngagementServer).ProcessTurn(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngagementServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetSession}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EngagementServer).GetSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(EngagementServer).StreamEvents(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// Client is a thin EngagementService client
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on an existing connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ProcessTurn sends one inbound turn and returns the reply document
func (c *Client) ProcessTurn(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodProcessTurn, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession fetches a session snapshot
func (c *Client) GetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetSession, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamEvents opens the live event stream
func (c *Client) StreamEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodStreamEvents, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
