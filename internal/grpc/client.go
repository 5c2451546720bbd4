// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Authenticator service.
type Client struct {
	conn *grpc.ClientConn
}

// ClientConfig holds configuration for the gRPC client.
type ClientConfig struct {
	// Address is the target server address (e.g., "localhost:9090").
	Address string

	// KeepaliveTime is how often to ping the server (default: 10s)
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for ping response (default: 5s)
	KeepaliveTimeout time.Duration

	// DialOptions are appended after the defaults.
	DialOptions []grpc.DialOption
}

// NewClient creates a client. The connection is established lazily.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Address, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Conn exposes the connection, for example to query the health service.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// GetToken requests a token. A rejected credential is a reply with Success
// false; rate limiting and outages are RPC errors.
func (c *Client) GetToken(ctx context.Context, req AuthRequest, opts ...grpc.CallOption) (AuthReply, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetTokenMethod, req.Struct(), out, opts...); err != nil {
		return AuthReply{}, fmt.Errorf("get token RPC failed: %w", err)
	}
	return AuthReplyFromStruct(out), nil
}

// WhoAmI asks who the given bearer token belongs to.
func (c *Client) WhoAmI(ctx context.Context, token string, opts ...grpc.CallOption) (WhoAmIReply, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, WhoAmIMethod, &structpb.Struct{}, out, opts...); err != nil {
		return WhoAmIReply{}, fmt.Errorf("whoami RPC failed: %w", err)
	}
	return WhoAmIReplyFromStruct(out), nil
}
