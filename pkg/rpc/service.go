package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the full name of the coordinator grpc service.
const ServiceName = "icecaneidb.Coordinator"

// CoordinatorServer is the server API of the coordinator service.
// Messages are protobuf well known types, so no generated code is needed.
type CoordinatorServer interface {
	// CreateTransaction registers a new txn and returns its id.
	CreateTransaction(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)

	// StartTransaction moves the txn to the ready queue.
	StartTransaction(context.Context, *wrapperspb.UInt64Value) (*emptypb.Empty, error)

	// FinishTransaction removes the txn and frees its slot if it was running.
	FinishTransaction(context.Context, *wrapperspb.UInt64Value) (*emptypb.Empty, error)

	// WaitRunning blocks until the txn was given the running slot.
	WaitRunning(context.Context, *wrapperspb.UInt64Value) (*emptypb.Empty, error)

	// TransactionState returns the lifecycle state of the txn.
	TransactionState(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.StringValue, error)

	// Stats returns the coordinator counts.
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// CoordinatorServiceDesc is the grpc service descriptor of the coordinator service.
var CoordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateTransaction", CoordinatorServer.CreateTransaction),
		unaryMethod("StartTransaction", CoordinatorServer.StartTransaction),
		unaryMethod("FinishTransaction", CoordinatorServer.FinishTransaction),
		unaryMethod("WaitRunning", CoordinatorServer.WaitRunning),
		unaryMethod("TransactionState", CoordinatorServer.TransactionState),
		unaryMethod("Stats", CoordinatorServer.Stats),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterCoordinatorServer registers the coordinator service on the grpc server.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&CoordinatorServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unaryMethod builds the method descriptor that decodes Req and dispatches to call.
func unaryMethod[Req, Resp any](name string, call func(CoordinatorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				out, err := call(srv.(CoordinatorServer), ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
