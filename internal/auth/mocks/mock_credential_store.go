// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package mocks holds testify mocks for auth interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/secureauth/secureauth/internal/auth"
)

// MockCredentialStore is a mock implementation of auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a MockCredentialStore whose expectations are
// asserted when the test ends.
func NewMockCredentialStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// LookupCredential provides a mock function.
func (m *MockCredentialStore) LookupCredential(ctx context.Context, username string) (*auth.Credential, error) {
	args := m.Called(ctx, username)
	var cred *auth.Credential
	if v := args.Get(0); v != nil {
		cred = v.(*auth.Credential)
	}
	return cred, args.Error(1)
}

// InsertUser provides a mock function.
func (m *MockCredentialStore) InsertUser(ctx context.Context, cred *auth.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

// UpdatePasswordHash provides a mock function.
func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	args := m.Called(ctx, username, passwordHash)
	return args.Error(0)
}

var _ auth.CredentialStore = (*MockCredentialStore)(nil)
