// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package grpc

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct field names on the wire.
const (
	fieldUsername     = "username"
	fieldPassword     = "password"
	fieldSuccess      = "success"
	fieldJWTToken     = "jwt_token"
	fieldErrorMessage = "error_message"
	fieldSubject      = "subject"
	fieldRole         = "role"
	fieldExpiresAt    = "expires_at"
)

// AuthRequest is the GetToken request.
type AuthRequest struct {
	Username string
	Password string
}

// AuthReply is the GetToken response. A rejected credential is a reply
// with Success false, not an RPC error.
type AuthReply struct {
	Success      bool
	JWTToken     string
	ErrorMessage string
}

// WhoAmIReply describes the identity behind the caller's bearer token.
type WhoAmIReply struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

func stringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Struct encodes r for the wire.
func (r AuthRequest) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldUsername: structpb.NewStringValue(r.Username),
		fieldPassword: structpb.NewStringValue(r.Password),
	}}
}

// AuthRequestFromStruct decodes a GetToken request. Missing fields are empty.
func AuthRequestFromStruct(s *structpb.Struct) AuthRequest {
	return AuthRequest{
		Username: stringField(s, fieldUsername),
		Password: stringField(s, fieldPassword),
	}
}

// Struct encodes r for the wire.
func (r AuthReply) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSuccess:      structpb.NewBoolValue(r.Success),
		fieldJWTToken:     structpb.NewStringValue(r.JWTToken),
		fieldErrorMessage: structpb.NewStringValue(r.ErrorMessage),
	}}
}

// AuthReplyFromStruct decodes a GetToken response.
func AuthReplyFromStruct(s *structpb.Struct) AuthReply {
	return AuthReply{
		Success:      s.GetFields()[fieldSuccess].GetBoolValue(),
		JWTToken:     stringField(s, fieldJWTToken),
		ErrorMessage: stringField(s, fieldErrorMessage),
	}
}

// Struct encodes r for the wire. The expiry is RFC 3339 in UTC.
func (r WhoAmIReply) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSubject:   structpb.NewStringValue(r.Subject),
		fieldRole:      structpb.NewStringValue(r.Role),
		fieldExpiresAt: structpb.NewStringValue(r.ExpiresAt.UTC().Format(time.RFC3339)),
	}}
}

// WhoAmIReplyFromStruct decodes a WhoAmI response. An unparseable expiry
// is left zero.
func WhoAmIReplyFromStruct(s *structpb.Struct) WhoAmIReply {
	reply := WhoAmIReply{
		Subject: stringField(s, fieldSubject),
		Role:    stringField(s, fieldRole),
	}
	if t, err := time.Parse(time.RFC3339, stringField(s, fieldExpiresAt)); err == nil {
		reply.ExpiresAt = t
	}
	return reply
}
