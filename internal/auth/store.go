// AngelaMos | 2026
// store.go

package auth

import (
	"context"
	"time"
)

// Credential is the authentication view of an account.
type Credential struct {
	ID                string
	UserName          string
	Email             string
	PasswordHash      string
	SecurityStamp     string
	Role              string
	FailedAccessCount int
	LockoutEnd        *time.Time
	LockoutEnabled    bool
}

type NewCredential struct {
	UserName       string
	Email          string
	PasswordHash   string
	SecurityStamp  string
	LockoutEnabled bool
}

// CredentialStore persists credentials. Lookups by user name and email are
// case-insensitive. Missing accounts are reported as core.ErrNotFound and
// unique violations on create as ErrDuplicateUserName or ErrDuplicateEmail.
type CredentialStore interface {
	CreateCredential(ctx context.Context, nc NewCredential) (*Credential, error)
	FindCredentialByID(ctx context.Context, id string) (*Credential, error)
	FindCredentialByUserName(ctx context.Context, userName string) (*Credential, error)
	FindCredentialByEmail(ctx context.Context, email string) (*Credential, error)

	// RecordFailedAccess atomically increments the failure counter and, when
	// lockout is enabled for the account and the new count is a multiple of
	// threshold, sets the lockout end to lockUntil. It returns the new count.
	RecordFailedAccess(
		ctx context.Context,
		id string,
		threshold int,
		lockUntil time.Time,
	) (int, error)
	ResetFailedAccess(ctx context.Context, id string) error

	// UpdatePasswordHash swaps in passwordHash only while the stored hash is
	// still verifiedHash. It reports false, with no error, when the password
	// changed in between.
	UpdatePasswordHash(ctx context.Context, id, verifiedHash, passwordHash string) (bool, error)
	ReplacePassword(ctx context.Context, id, passwordHash, securityStamp string) error
	UpdateSecurityStamp(ctx context.Context, id, securityStamp string) error
}
