// AngelaMos | 2026
// reset.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

// PasswordResetFlow replaces credentials either with a reset token or with
// the current password. A successful replacement rotates the security stamp
// and, when configured, ends every session of the account.
type PasswordResetFlow struct {
	store          CredentialStore
	hasher         *core.Hasher
	policy         PasswordPolicy
	codec          *ResetTokenCodec
	validator      *CredentialValidator
	sessions       *SessionRevoker
	notifier       ResetNotifier
	resetURL       string
	revokeSessions bool
	logger         *slog.Logger
}

type PasswordResetFlowConfig struct {
	Store          CredentialStore
	Hasher         *core.Hasher
	Policy         PasswordPolicy
	Codec          *ResetTokenCodec
	Validator      *CredentialValidator
	Sessions       *SessionRevoker
	Notifier       ResetNotifier
	ResetURL       string
	RevokeSessions bool
}

func NewPasswordResetFlow(cfg PasswordResetFlowConfig) *PasswordResetFlow {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(nil)
	}

	return &PasswordResetFlow{
		store:          cfg.Store,
		hasher:         cfg.Hasher,
		policy:         cfg.Policy,
		codec:          cfg.Codec,
		validator:      cfg.Validator,
		sessions:       cfg.Sessions,
		notifier:       notifier,
		resetURL:       cfg.ResetURL,
		revokeSessions: cfg.RevokeSessions,
		logger:         slog.Default(),
	}
}

// GenerateResetToken returns an empty token, and no error, when no account
// uses email.
func (f *PasswordResetFlow) GenerateResetToken(
	ctx context.Context,
	email string,
) (string, error) {
	issued, err := f.generate(ctx, email)
	if err != nil || issued == nil {
		return "", err
	}
	return issued.token, nil
}

// RequestReset generates a token and hands the link to the notifier. Callers
// should answer the same way whatever happens here.
func (f *PasswordResetFlow) RequestReset(ctx context.Context, email string) error {
	issued, err := f.generate(ctx, email)
	if err != nil || issued == nil {
		return err
	}

	email = issued.cred.Email
	link := resetLink(f.resetURL, email, issued.token)

	if err := f.notifier.SendPasswordReset(ctx, email, link, issued.expiresAt); err != nil {
		return fmt.Errorf("send reset link: %w", err)
	}

	return nil
}

type issuedReset struct {
	cred      *Credential
	token     string
	expiresAt time.Time
}

func (f *PasswordResetFlow) generate(
	ctx context.Context,
	email string,
) (*issuedReset, error) {
	cred, err := f.store.FindCredentialByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	token, expiresAt, err := f.codec.Encode(cred)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	return &issuedReset{cred: cred, token: token, expiresAt: expiresAt}, nil
}

// ResetPassword reports false for an unknown email or an invalid token. A new
// password that breaks policy yields a *PolicyError.
func (f *PasswordResetFlow) ResetPassword(
	ctx context.Context,
	email, token, newPassword, clientIP string,
) (bool, error) {
	cred, err := f.store.FindCredentialByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}

	if !f.codec.Verify(token, cred) {
		return false, nil
	}

	if err := f.policy.Validate(newPassword); err != nil {
		return false, err
	}

	if err := f.replace(ctx, cred, newPassword, clientIP); err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}

	return true, nil
}

// ChangePassword reports false when currentPassword does not match. Failed
// attempts count toward lockout like any other sign-in.
func (f *PasswordResetFlow) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword, clientIP string,
) (bool, error) {
	if err := f.policy.Validate(newPassword); err != nil {
		return false, err
	}

	cred, err := f.validator.ValidateByID(ctx, userID, currentPassword)
	if errors.Is(err, ErrInvalidCredentials) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("change password: %w", err)
	}

	if err := f.replace(ctx, cred, newPassword, clientIP); err != nil {
		return false, fmt.Errorf("change password: %w", err)
	}

	return true, nil
}

func (f *PasswordResetFlow) replace(
	ctx context.Context,
	cred *Credential,
	newPassword, clientIP string,
) error {
	hash, err := f.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	stamp, err := core.NewSecurityStamp()
	if err != nil {
		return err
	}

	if err := f.store.ReplacePassword(ctx, cred.ID, hash, stamp); err != nil {
		return err
	}

	// The password has changed from here on, so later failures are logged
	// rather than reported to the caller.
	ctx = context.WithoutCancel(ctx)

	if f.revokeSessions {
		if _, err := f.sessions.RevokeAllForUser(
			ctx,
			cred.ID,
			clientIP,
			RevokeReasonPassword,
		); err != nil {
			f.logger.ErrorContext(ctx, "revoke sessions after password change failed",
				"user_id", cred.ID,
				"error", err,
			)
		}
	}

	if err := f.notifier.SendPasswordChanged(ctx, cred.Email); err != nil {
		f.logger.WarnContext(ctx, "password change notice failed",
			"user_id", cred.ID,
			"error", err,
		)
	}

	return nil
}
