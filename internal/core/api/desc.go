package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "datex.explorer.v1.Explorer"

// Method names of the Explorer service.
const (
	MethodOpenSession  = "OpenSession"
	MethodApply        = "Apply"
	MethodNavigate     = "Navigate"
	MethodSeries       = "Series"
	MethodCatalog      = "Catalog"
	MethodCloseSession = "CloseSession"
	MethodReload       = "Reload"
)

// ExplorerServer is the server API of the Explorer service. Requests and
// responses are google.protobuf.Struct documents whose fields mirror the
// JSON encoding of the request/response types in messages.go.
type ExplorerServer interface {
	OpenSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Navigate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Series(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Catalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(ExplorerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(ExplorerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(srv.(ExplorerServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Explorer service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExplorerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodOpenSession, ExplorerServer.OpenSession),
		unary(MethodApply, ExplorerServer.Apply),
		unary(MethodNavigate, ExplorerServer.Navigate),
		unary(MethodSeries, ExplorerServer.Series),
		unary(MethodCatalog, ExplorerServer.Catalog),
		unary(MethodCloseSession, ExplorerServer.CloseSession),
		unary(MethodReload, ExplorerServer.Reload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "datex/explorer/v1/explorer.proto",
}

// RegisterExplorerServer registers srv on s.
func RegisterExplorerServer(s grpc.ServiceRegistrar, srv ExplorerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Client calls the Explorer service with typed requests.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req encoded as a Struct and decodes the reply into resp.
func (c *Client) Call(ctx context.Context, method string, req, resp interface{}, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return decode(out, resp)
}
