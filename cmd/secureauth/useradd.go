// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/secureauth/secureauth/internal/auth"
	authpg "github.com/secureauth/secureauth/internal/auth/postgres"
	"github.com/secureauth/secureauth/internal/config"
	"github.com/secureauth/secureauth/internal/store"
)

// userAddConfig holds configuration for the useradd command.
type userAddConfig struct {
	username string
	password string
	role     string
}

// credentialStoreFactory opens the store useradd writes to. Replaced in
// tests.
var credentialStoreFactory = func(ctx context.Context, cfg *config.Config) (auth.CredentialStore, func(), error) {
	opts := store.DefaultConnectOptions()
	if cfg.Database.ConnectTimeout > 0 {
		opts.Timeout = cfg.Database.ConnectTimeout
	}
	pool, err := store.Connect(ctx, cfg.Database.URL, opts)
	if err != nil {
		return nil, nil, err
	}
	return authpg.NewCredentialRepository(pool), pool.Close, nil
}

// NewUserAddCmd creates the useradd subcommand.
func NewUserAddCmd() *cobra.Command {
	ua := &userAddConfig{}

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user in the credential store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, (*config.Config).ValidateAdmin)
			if err != nil {
				return err
			}
			return runUserAdd(cmd, cfg, ua)
		},
	}

	cmd.Flags().StringVar(&ua.username, "username", "", "username (3-30 characters)")
	cmd.Flags().StringVar(&ua.password, "password", "", "password (8-72 bytes)")
	cmd.Flags().StringVar(&ua.role, "role", auth.RoleUser, "role: user or admin")
	_ = cmd.MarkFlagRequired("username") //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag exists
	return cmd
}

func runUserAdd(cmd *cobra.Command, cfg *config.Config, ua *userAddConfig) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	creds, closeStore, err := credentialStoreFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registrar, err := auth.NewRegistrar(creds, hasher, nil)
	if err != nil {
		return err
	}
	cred, err := registrar.Register(ctx, auth.Registration{
		Username:        ua.username,
		Password:        ua.password,
		ConfirmPassword: ua.password,
		Role:            ua.role,
	})
	if err != nil {
		return err
	}
	cmd.Printf("Created user %s with role %s\n", cred.Username, cred.Role)
	return nil
}
