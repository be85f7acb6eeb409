// Package auth signs users in with a password or a Google account and
// admits them only when their email is on the allow-list.
package auth

import (
	"context"

	"gastos/internal/store"
)

// Authenticator verifies a credential and returns the matching account.
// Implementations can be swapped without touching the HTTP layer.
type Authenticator interface {
	// Register creates a new account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*store.User, error)

	// Authenticate returns the account when the credential matches.
	Authenticate(ctx context.Context, email, credential string) (*store.User, error)

	// ValidateCredential checks the credential meets the implementation's rules.
	ValidateCredential(credential string) error
}

// Method names how an identity signed in.
type Method string

const (
	MethodPassword Method = "password"
	MethodGoogle   Method = "google"
)

// Identity is a signed-in principal before the allow-list check.
type Identity struct {
	Email       string
	DisplayName string
	Method      Method
}
