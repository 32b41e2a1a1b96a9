// Package auth defines the credential store boundary of LoftFS. Credential
// validation is an external collaborator of the storage core: the core only
// requires that a store answer register/verify and survive restarts.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// Store persists the username to password-hash mapping.
//
// Register reports false (not an error) when the username is taken; Verify
// reports false on unknown user or wrong password. Errors are reserved for
// storage failures.
type Store interface {
	Register(ctx context.Context, username, password string) (bool, error)
	Verify(ctx context.Context, username, password string) (bool, error)
	Close() error
}

// HashPassword derives the bcrypt hash stored for a password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
