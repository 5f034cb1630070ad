package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "appointment.SchedulingService"

// SchedulingServer is the server API of appointment.SchedulingService.
// Requests and responses are google.protobuf.Struct documents.
type SchedulingServer interface {
	CreateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RescheduleAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOpenSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateAppointment", SchedulingServer.CreateAppointment),
		unaryMethod("ConfirmAppointment", SchedulingServer.ConfirmAppointment),
		unaryMethod("RescheduleAppointment", SchedulingServer.RescheduleAppointment),
		unaryMethod("CancelAppointment", SchedulingServer.CancelAppointment),
		unaryMethod("CompleteAppointment", SchedulingServer.CompleteAppointment),
		unaryMethod("GetAppointment", SchedulingServer.GetAppointment),
		unaryMethod("ListAppointments", SchedulingServer.ListAppointments),
		unaryMethod("ListOpenSlots", SchedulingServer.ListOpenSlots),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

// SchedulingClient calls appointment.SchedulingService.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

// Call invokes method with req as the request document.
func (c *SchedulingClient) Call(ctx context.Context, method string, req map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
