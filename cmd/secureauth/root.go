// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/secureauth/secureauth/internal/config"
	"github.com/secureauth/secureauth/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the SecureAuth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secureauth",
		Short: "SecureAuth - credential verification and token issuance",
		Long: `SecureAuth verifies username/password credentials and issues signed,
short-lived bearer tokens over REST and gRPC, with admission control
in front of every attempt and cookie sessions for browsers.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: "+xdg.ConfigFile()+" if present)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewUserAddCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig layers the configuration for cmd. Without --config the XDG
// default is read if it exists.
func loadConfig(cmd *cobra.Command, validator func(*config.Config) error) (*config.Config, error) {
	opts := config.Options{
		Path:      configFile,
		Flags:     cmd.Flags(),
		Validator: validator,
	}
	if opts.Path == "" {
		opts.Path = xdg.ConfigFile()
		opts.Optional = true
	}
	return config.Load(opts)
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("secureauth %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
