// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pluginv1 is the gRPC protocol between the host and binary
// plugins. Messages are protobuf well-known types; payload shapes are the
// Go structs in payload.go carried as google.protobuf.Struct.
package pluginv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pluginhost.plugin.v1.Plugin"

// Full method names.
const (
	MethodDescribe = "/" + ServiceName + "/Describe"
	MethodStart    = "/" + ServiceName + "/Start"
	MethodStop     = "/" + ServiceName + "/Stop"
	MethodInvoke   = "/" + ServiceName + "/Invoke"
)

// PluginServer is implemented by the plugin process.
type PluginServer interface {
	// Describe returns a Description.
	Describe(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Start(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Stop(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// Invoke takes an InvokeRequest and returns an InvokeResponse.
	Invoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedPluginServer answers every call with codes.Unimplemented.
type UnimplementedPluginServer struct{}

func (UnimplementedPluginServer) Describe(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Describe not implemented")
}

func (UnimplementedPluginServer) Start(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Start not implemented")
}

func (UnimplementedPluginServer) Stop(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Stop not implemented")
}

func (UnimplementedPluginServer) Invoke(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Invoke not implemented")
}

// PluginClient is the host side of the service.
type PluginClient interface {
	Describe(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Start(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Stop(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Invoke(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type pluginClient struct {
	cc grpc.ClientConnInterface
}

// NewPluginClient creates a client on cc.
func NewPluginClient(cc grpc.ClientConnInterface) PluginClient {
	return &pluginClient{cc: cc}
}

func (c *pluginClient) Describe(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodDescribe, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pluginClient) Start(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MethodStart, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pluginClient) Stop(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MethodStop, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pluginClient) Invoke(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodInvoke, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterPluginServer registers srv on s.
func RegisterPluginServer(s grpc.ServiceRegistrar, srv PluginServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the Plugin service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PluginServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Describe",
			Handler: unaryHandler(MethodDescribe, func(s PluginServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Describe(ctx, in)
			}),
		},
		{
			MethodName: "Start",
			Handler: unaryHandler(MethodStart, func(s PluginServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Start(ctx, in)
			}),
		},
		{
			MethodName: "Stop",
			Handler: unaryHandler(MethodStop, func(s PluginServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Stop(ctx, in)
			}),
		},
		{
			MethodName: "Invoke",
			Handler: unaryHandler(MethodInvoke, func(s PluginServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.Invoke(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pluginhost/plugin/v1/plugin.proto",
}

// unaryHandler builds a grpc.MethodHandler that decodes a Req and calls
// fn, honoring any server interceptor.
func unaryHandler[Req any](method string, fn func(PluginServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(PluginServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(PluginServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
