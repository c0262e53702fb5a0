package replicav1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName                       = "clipsync.v1.Replica"
	Replica_FetchPage_FullMethodName  = "/clipsync.v1.Replica/FetchPage"
	Replica_BatchWrite_FullMethodName = "/clipsync.v1.Replica/BatchWrite"
	Replica_DeleteOne_FullMethodName  = "/clipsync.v1.Replica/DeleteOne"
	Replica_Stats_FullMethodName      = "/clipsync.v1.Replica/Stats"
)

// ReplicaClient is the client API for the Replica service.
type ReplicaClient interface {
	FetchPage(ctx context.Context, in *FetchPageRequest, opts ...grpc.CallOption) (*FetchPageResponse, error)
	BatchWrite(ctx context.Context, in *BatchWriteRequest, opts ...grpc.CallOption) (*BatchWriteResponse, error)
	DeleteOne(ctx context.Context, in *DeleteOneRequest, opts ...grpc.CallOption) (*DeleteOneResponse, error)
	Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
}

type replicaClient struct {
	cc grpc.ClientConnInterface
}

// NewReplicaClient binds a connection. Every call is sent with the JSON codec.
func NewReplicaClient(cc grpc.ClientConnInterface) ReplicaClient {
	return &replicaClient{cc}
}

func (c *replicaClient) FetchPage(ctx context.Context, in *FetchPageRequest, opts ...grpc.CallOption) (*FetchPageResponse, error) {
	out := new(FetchPageResponse)
	if err := c.cc.Invoke(ctx, Replica_FetchPage_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaClient) BatchWrite(ctx context.Context, in *BatchWriteRequest, opts ...grpc.CallOption) (*BatchWriteResponse, error) {
	out := new(BatchWriteResponse)
	if err := c.cc.Invoke(ctx, Replica_BatchWrite_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaClient) DeleteOne(ctx context.Context, in *DeleteOneRequest, opts ...grpc.CallOption) (*DeleteOneResponse, error) {
	out := new(DeleteOneResponse)
	if err := c.cc.Invoke(ctx, Replica_DeleteOne_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.cc.Invoke(ctx, Replica_Stats_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// ReplicaServer is the server API for the Replica service.
type ReplicaServer interface {
	FetchPage(context.Context, *FetchPageRequest) (*FetchPageResponse, error)
	BatchWrite(context.Context, *BatchWriteRequest) (*BatchWriteResponse, error)
	DeleteOne(context.Context, *DeleteOneRequest) (*DeleteOneResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
}

// UnimplementedReplicaServer can be embedded for forward compatibility.
type UnimplementedReplicaServer struct{}

func (UnimplementedReplicaServer) FetchPage(context.Context, *FetchPageRequest) (*FetchPageResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FetchPage not implemented")
}
func (UnimplementedReplicaServer) BatchWrite(context.Context, *BatchWriteRequest) (*BatchWriteResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method BatchWrite not implemented")
}
func (UnimplementedReplicaServer) DeleteOne(context.Context, *DeleteOneRequest) (*DeleteOneResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteOne not implemented")
}
func (UnimplementedReplicaServer) Stats(context.Context, *StatsRequest) (*StatsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Stats not implemented")
}

// RegisterReplicaServer registers srv on s.
func RegisterReplicaServer(s grpc.ServiceRegistrar, srv ReplicaServer) {
	s.RegisterService(&Replica_ServiceDesc, srv)
}

func _Replica_FetchPage_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchPageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServer).FetchPage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Replica_FetchPage_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServer).FetchPage(ctx, req.(*FetchPageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Replica_BatchWrite_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BatchWriteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServer).BatchWrite(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Replica_BatchWrite_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServer).BatchWrite(ctx, req.(*BatchWriteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Replica_DeleteOne_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteOneRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServer).DeleteOne(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Replica_DeleteOne_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServer).DeleteOne(ctx, req.(*DeleteOneRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Replica_Stats_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Replica_Stats_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServer).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Replica_ServiceDesc describes the Replica service for grpc.ServiceRegistrar.
var Replica_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplicaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchPage", Handler: _Replica_FetchPage_Handler},
		{MethodName: "BatchWrite", Handler: _Replica_BatchWrite_Handler},
		{MethodName: "DeleteOne", Handler: _Replica_DeleteOne_Handler},
		{MethodName: "Stats", Handler: _Replica_Stats_Handler},
	},
	Streams: []grpc.StreamDesc{},
}
