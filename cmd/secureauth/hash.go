// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secureauth/secureauth/internal/auth"
)

const exitWord = "exit"

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Generate bcrypt password hashes",
		Long: `Generate bcrypt hashes suitable for the password_hash column.

Without --password the command prompts repeatedly; type "exit" to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// --bcrypt-cost is the global config flag; the hash command
			// needs no other configuration.
			cost, err := cmd.Flags().GetInt("bcrypt-cost")
			if err != nil {
				return err
			}
			hasher, err := auth.NewBcryptHasher(cost)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("password") {
				return hashOne(cmd, hasher, password)
			}
			return hashLoop(cmd, hasher)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "hash this value and exit")
	return cmd
}

func hashOne(cmd *cobra.Command, hasher auth.PasswordHasher, password string) error {
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	cmd.Println(hash)
	return nil
}

// hashLoop reads one password per line until exit or end of input.
func hashLoop(cmd *cobra.Command, hasher auth.PasswordHasher) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("Password (or \"exit\"): ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == exitWord {
			return nil
		}
		if line == "" {
			cmd.Println("Password cannot be empty.")
			continue
		}
		hash, err := hasher.Hash(line)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			continue
		}
		cmd.Printf("Hash: %s\n", hash)
	}
}
