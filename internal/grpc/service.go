// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package grpc exposes token issuance over gRPC as the
// secureauth.v1.Authenticator service.
//
// Messages are google.protobuf.Struct values, so the service needs no
// generated code. The descriptor below mirrors what protoc-gen-go-grpc
// would emit for:
//
//	service Authenticator {
//	  rpc GetToken(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc WhoAmI(google.protobuf.Struct) returns (google.protobuf.Struct);
//	}
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "secureauth.v1.Authenticator"

// Full method names, also used as admission routes.
const (
	GetTokenMethod = "/" + ServiceName + "/GetToken"
	WhoAmIMethod   = "/" + ServiceName + "/WhoAmI"
)

// AuthenticatorServer is the server API for the Authenticator service.
type AuthenticatorServer interface {
	GetToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAuthenticatorServer registers srv on s.
func RegisterAuthenticatorServer(s grpc.ServiceRegistrar, srv AuthenticatorServer) {
	s.RegisterService(&AuthenticatorServiceDesc, srv)
}

func getTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthenticatorServer).GetToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthenticatorServer).GetToken(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthenticatorServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthenticatorServer).WhoAmI(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AuthenticatorServiceDesc is the grpc.ServiceDesc for the Authenticator
// service.
var AuthenticatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthenticatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetToken", Handler: getTokenHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "secureauth/v1/authenticator.proto",
}
