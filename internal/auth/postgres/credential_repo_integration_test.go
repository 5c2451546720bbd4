// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

//go:build integration

package postgres_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/auth/postgres"
)

var _ = Describe("CredentialRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.CredentialRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewCredentialRepository(testPool)
		DeferCleanup(func() {
			_, err := testPool.Exec(ctx, `DELETE FROM users`)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("round-trips a credential with the default role", func() {
		cred, err := auth.NewCredential("alice", "$2a$11$abcdefghijklmnopqrstuv", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.InsertUser(ctx, cred)).To(Succeed())

		got, err := repo.LookupCredential(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("alice"))
		Expect(got.Role).To(Equal(auth.RoleUser))
		Expect(got.PasswordHash).To(Equal(cred.PasswordHash))
		Expect(got.CreatedAt).NotTo(BeZero())
	})

	It("reports an absent user as not found", func() {
		_, err := repo.LookupCredential(ctx, "nobody")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects a duplicate username", func() {
		cred, err := auth.NewCredential("bob", "hash", auth.RoleAdmin)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.InsertUser(ctx, cred)).To(Succeed())
		Expect(repo.InsertUser(ctx, cred)).To(MatchError(auth.ErrAlreadyExists))
	})

	It("treats a username that only differs in case as distinct", func() {
		cred, err := auth.NewCredential("carol", "hash", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.InsertUser(ctx, cred)).To(Succeed())

		_, err = repo.LookupCredential(ctx, "Carol")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("replaces a password hash", func() {
		cred, err := auth.NewCredential("dave", "old", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.InsertUser(ctx, cred)).To(Succeed())

		Expect(repo.UpdatePasswordHash(ctx, "dave", "new")).To(Succeed())
		got, err := repo.LookupCredential(ctx, "dave")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("new"))

		Expect(repo.UpdatePasswordHash(ctx, "ghost", "new")).To(MatchError(auth.ErrNotFound))
	})

	It("answers pings", func() {
		Expect(repo.Ping(ctx)).To(Succeed())
	})
})
