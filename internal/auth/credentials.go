// AngelaMos | 2026
// credentials.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

// CredentialValidator checks a password against a stored credential. Unknown
// account, locked account and wrong password all produce
// ErrInvalidCredentials after a comparable amount of work.
type CredentialValidator struct {
	store   CredentialStore
	hasher  *core.Hasher
	lockout *LockoutGuard
	logger  *slog.Logger
}

func NewCredentialValidator(
	store CredentialStore,
	hasher *core.Hasher,
	lockout *LockoutGuard,
) *CredentialValidator {
	return &CredentialValidator{
		store:   store,
		hasher:  hasher,
		lockout: lockout,
		logger:  slog.Default(),
	}
}

// Validate accepts a user name or, when identifier contains '@', an email.
func (v *CredentialValidator) Validate(
	ctx context.Context,
	identifier, password string,
) (*Credential, error) {
	cred, err := v.lookup(ctx, identifier)
	if errors.Is(err, core.ErrNotFound) {
		v.hasher.BurnVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("validate credentials: %w", err)
	}

	return v.check(ctx, cred, password)
}

// ValidateByID is Validate for an already authenticated account.
func (v *CredentialValidator) ValidateByID(
	ctx context.Context,
	userID, password string,
) (*Credential, error) {
	cred, err := v.store.FindCredentialByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		v.hasher.BurnVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("validate credentials: %w", err)
	}

	return v.check(ctx, cred, password)
}

func (v *CredentialValidator) lookup(
	ctx context.Context,
	identifier string,
) (*Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, core.ErrNotFound
	}

	if strings.Contains(identifier, "@") {
		return v.store.FindCredentialByEmail(ctx, identifier)
	}
	return v.store.FindCredentialByUserName(ctx, identifier)
}

func (v *CredentialValidator) check(
	ctx context.Context,
	cred *Credential,
	password string,
) (*Credential, error) {
	if v.lockout.IsLockedOut(cred) {
		v.hasher.BurnVerify(password)
		return nil, ErrInvalidCredentials
	}

	valid, newHash, err := v.hasher.VerifyTimingSafe(password, &cred.PasswordHash)
	if err != nil && !errors.Is(err, core.ErrUnsupportedHash) {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		if recErr := v.lockout.RecordFailure(ctx, cred); recErr != nil {
			return nil, fmt.Errorf("validate credentials: %w", recErr)
		}
		return nil, ErrInvalidCredentials
	}

	if err := v.lockout.RecordSuccess(ctx, cred); err != nil {
		return nil, fmt.Errorf("validate credentials: %w", err)
	}
	cred.FailedAccessCount = 0

	if newHash != "" {
		v.upgradeHash(ctx, cred, newHash)
	}

	return cred, nil
}

// upgradeHash stores newHash only if the password verified above is still the
// current one. A reset or change that committed meanwhile wins.
func (v *CredentialValidator) upgradeHash(
	ctx context.Context,
	cred *Credential,
	newHash string,
) {
	swapped, err := v.store.UpdatePasswordHash(ctx, cred.ID, cred.PasswordHash, newHash)
	switch {
	case err != nil:
		v.logger.WarnContext(ctx, "password rehash failed",
			"user_id", cred.ID,
			"error", err,
		)
	case !swapped:
		v.logger.InfoContext(ctx, "password rehash skipped, password changed concurrently",
			"user_id", cred.ID,
		)
	default:
		cred.PasswordHash = newHash
	}
}
