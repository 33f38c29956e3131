package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "synapse.matching.v1.MatchingService"

// MatchingServer is the server API. Every method takes and returns a
// google.protobuf.Struct whose fields follow the HTTP JSON names.
type MatchingServer interface {
	NextJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordSwipe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HideMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnhideMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reapply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetApplicationStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecomputeScore(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(MatchingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = map[string]unaryMethod{
	"NextJob":              MatchingServer.NextJob,
	"RecordSwipe":          MatchingServer.RecordSwipe,
	"HideMatch":            MatchingServer.HideMatch,
	"UnhideMatch":          MatchingServer.UnhideMatch,
	"Reapply":              MatchingServer.Reapply,
	"SetApplicationStatus": MatchingServer.SetApplicationStatus,
	"RecomputeScore":       MatchingServer.RecomputeScore,
}

// methodOrder keeps the descriptor stable.
var methodOrder = []string{
	"NextJob", "RecordSwipe", "HideMatch", "UnhideMatch",
	"Reapply", "SetApplicationStatus", "RecomputeScore",
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*MatchingServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "synapse/matching/v1/matching.proto",
	}
	for _, name := range methodOrder {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, methods[name]),
		})
	}
	return desc
}

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterMatchingServer registers srv on s.
func RegisterMatchingServer(s grpc.ServiceRegistrar, srv MatchingServer) {
	s.RegisterService(serviceDesc(), srv)
}

// Client calls MatchingService methods by name.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and returns the response fields.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
