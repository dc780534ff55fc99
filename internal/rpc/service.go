package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "daybook.sync.v1.SyncService"

const (
	SyncService_Ping_FullMethodName            = "/" + ServiceName + "/Ping"
	SyncService_FetchByKey_FullMethodName      = "/" + ServiceName + "/FetchByKey"
	SyncService_FetchIndex_FullMethodName      = "/" + ServiceName + "/FetchIndex"
	SyncService_FetchChanges_FullMethodName    = "/" + ServiceName + "/FetchChanges"
	SyncService_Push_FullMethodName            = "/" + ServiceName + "/Push"
	SyncService_Delete_FullMethodName          = "/" + ServiceName + "/Delete"
	SyncService_PresignUpload_FullMethodName   = "/" + ServiceName + "/PresignUpload"
	SyncService_PresignDownload_FullMethodName = "/" + ServiceName + "/PresignDownload"
	SyncService_DeleteBlob_FullMethodName      = "/" + ServiceName + "/DeleteBlob"
)

// SyncServiceClient is the client API of the sync service.
type SyncServiceClient interface {
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	FetchByKey(ctx context.Context, in *FetchByKeyRequest, opts ...grpc.CallOption) (*FetchByKeyResponse, error)
	FetchIndex(ctx context.Context, in *FetchIndexRequest, opts ...grpc.CallOption) (*FetchIndexResponse, error)
	FetchChanges(ctx context.Context, in *FetchChangesRequest, opts ...grpc.CallOption) (*FetchChangesResponse, error)
	Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
	PresignUpload(ctx context.Context, in *PresignUploadRequest, opts ...grpc.CallOption) (*PresignUploadResponse, error)
	PresignDownload(ctx context.Context, in *PresignDownloadRequest, opts ...grpc.CallOption) (*PresignDownloadResponse, error)
	DeleteBlob(ctx context.Context, in *DeleteBlobRequest, opts ...grpc.CallOption) (*DeleteBlobResponse, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSyncServiceClient returns a client that encodes calls with the JSON codec.
func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc}
}

func (c *syncServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_Ping_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) FetchByKey(ctx context.Context, in *FetchByKeyRequest, opts ...grpc.CallOption) (*FetchByKeyResponse, error) {
	out := new(FetchByKeyResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_FetchByKey_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) FetchIndex(ctx context.Context, in *FetchIndexRequest, opts ...grpc.CallOption) (*FetchIndexResponse, error) {
	out := new(FetchIndexResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_FetchIndex_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) FetchChanges(ctx context.Context, in *FetchChangesRequest, opts ...grpc.CallOption) (*FetchChangesResponse, error) {
	out := new(FetchChangesResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_FetchChanges_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	out := new(PushResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_Push_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_Delete_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) PresignUpload(ctx context.Context, in *PresignUploadRequest, opts ...grpc.CallOption) (*PresignUploadResponse, error) {
	out := new(PresignUploadResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_PresignUpload_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) PresignDownload(ctx context.Context, in *PresignDownloadRequest, opts ...grpc.CallOption) (*PresignDownloadResponse, error) {
	out := new(PresignDownloadResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_PresignDownload_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) DeleteBlob(ctx context.Context, in *DeleteBlobRequest, opts ...grpc.CallOption) (*DeleteBlobResponse, error) {
	out := new(DeleteBlobResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_DeleteBlob_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncServiceServer is the server API of the sync service.
type SyncServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	FetchByKey(context.Context, *FetchByKeyRequest) (*FetchByKeyResponse, error)
	FetchIndex(context.Context, *FetchIndexRequest) (*FetchIndexResponse, error)
	FetchChanges(context.Context, *FetchChangesRequest) (*FetchChangesResponse, error)
	Push(context.Context, *PushRequest) (*PushResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	PresignUpload(context.Context, *PresignUploadRequest) (*PresignUploadResponse, error)
	PresignDownload(context.Context, *PresignDownloadRequest) (*PresignDownloadResponse, error)
	DeleteBlob(context.Context, *DeleteBlobRequest) (*DeleteBlobResponse, error)
}

// UnimplementedSyncServiceServer answers every method with codes.Unimplemented.
type UnimplementedSyncServiceServer struct{}

func (UnimplementedSyncServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func (UnimplementedSyncServiceServer) FetchByKey(context.Context, *FetchByKeyRequest) (*FetchByKeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchByKey not implemented")
}

func (UnimplementedSyncServiceServer) FetchIndex(context.Context, *FetchIndexRequest) (*FetchIndexResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchIndex not implemented")
}

func (UnimplementedSyncServiceServer) FetchChanges(context.Context, *FetchChangesRequest) (*FetchChangesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchChanges not implemented")
}

func (UnimplementedSyncServiceServer) Push(context.Context, *PushRequest) (*PushResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Push not implemented")
}

func (UnimplementedSyncServiceServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delete not implemented")
}

func (UnimplementedSyncServiceServer) PresignUpload(context.Context, *PresignUploadRequest) (*PresignUploadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PresignUpload not implemented")
}

func (UnimplementedSyncServiceServer) PresignDownload(context.Context, *PresignDownloadRequest) (*PresignDownloadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PresignDownload not implemented")
}

func (UnimplementedSyncServiceServer) DeleteBlob(context.Context, *DeleteBlobRequest) (*DeleteBlobResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteBlob not implemented")
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

func _SyncService_Ping_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_Ping_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_FetchByKey_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchByKeyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).FetchByKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_FetchByKey_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).FetchByKey(ctx, req.(*FetchByKeyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_FetchIndex_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchIndexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).FetchIndex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_FetchIndex_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).FetchIndex(ctx, req.(*FetchIndexRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_FetchChanges_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchChangesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).FetchChanges(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_FetchChanges_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).FetchChanges(ctx, req.(*FetchChangesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_Push_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_Push_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).Push(ctx, req.(*PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_Delete_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_Delete_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_PresignUpload_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PresignUploadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).PresignUpload(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_PresignUpload_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).PresignUpload(ctx, req.(*PresignUploadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_PresignDownload_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PresignDownloadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).PresignDownload(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_PresignDownload_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).PresignDownload(ctx, req.(*PresignDownloadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_DeleteBlob_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteBlobRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).DeleteBlob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SyncService_DeleteBlob_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyncServiceServer).DeleteBlob(ctx, req.(*DeleteBlobRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SyncService_ServiceDesc is the grpc.ServiceDesc for the sync service.
var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    _SyncService_Ping_Handler,
		},
		{
			MethodName: "FetchByKey",
			Handler:    _SyncService_FetchByKey_Handler,
		},
		{
			MethodName: "FetchIndex",
			Handler:    _SyncService_FetchIndex_Handler,
		},
		{
			MethodName: "FetchChanges",
			Handler:    _SyncService_FetchChanges_Handler,
		},
		{
			MethodName: "Push",
			Handler:    _SyncService_Push_Handler,
		},
		{
			MethodName: "Delete",
			Handler:    _SyncService_Delete_Handler,
		},
		{
			MethodName: "PresignUpload",
			Handler:    _SyncService_PresignUpload_Handler,
		},
		{
			MethodName: "PresignDownload",
			Handler:    _SyncService_PresignDownload_Handler,
		},
		{
			MethodName: "DeleteBlob",
			Handler:    _SyncService_DeleteBlob_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "daybook/sync/v1/sync.json",
}
