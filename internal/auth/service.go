// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

type ServiceConfig struct {
	Store    CredentialStore
	Tokens   Repository
	JWT      *JWTManager
	Hasher   *core.Hasher
	Denylist *core.Denylist
	Clock    core.Clock
	Policy   PasswordPolicy
	Notifier ResetNotifier
	Auth     config.AuthConfig
	JWTCfg   config.JWTConfig
}

// Service composes the credential and session components behind the HTTP
// handler and the access-token middleware.
type Service struct {
	store     CredentialStore
	jwt       *JWTManager
	hasher    *core.Hasher
	denylist  *core.Denylist
	clock     core.Clock
	policy    PasswordPolicy
	lockout   *LockoutGuard
	validator *CredentialValidator
	issuer    *TokenIssuer
	rotator   *TokenRotator
	sessions  *SessionRevoker
	reset     *PasswordResetFlow
	lockNew   bool
	logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	if cfg.Policy == (PasswordPolicy{}) {
		cfg.Policy = DefaultPasswordPolicy()
	}

	lockout := NewLockoutGuard(
		cfg.Store,
		clock,
		cfg.Auth.LockoutThreshold,
		cfg.Auth.LockoutWindow,
	)
	validator := NewCredentialValidator(cfg.Store, cfg.Hasher, lockout)
	issuer := NewTokenIssuer(cfg.Tokens, clock, cfg.JWTCfg.RefreshTokenExpire)
	sessions := NewSessionRevoker(cfg.Tokens, clock)

	codec := NewResetTokenCodec(
		[]byte(cfg.Auth.ResetSigningKey),
		cfg.JWTCfg.Issuer,
		cfg.Auth.ResetTokenExpire,
		clock,
	)

	return &Service{
		store:     cfg.Store,
		jwt:       cfg.JWT,
		hasher:    cfg.Hasher,
		denylist:  cfg.Denylist,
		clock:     clock,
		policy:    cfg.Policy,
		lockout:   lockout,
		validator: validator,
		issuer:    issuer,
		rotator: NewTokenRotator(
			cfg.Tokens,
			issuer,
			clock,
			cfg.Auth.RevokeChainOnReuse,
		),
		sessions: sessions,
		reset: NewPasswordResetFlow(PasswordResetFlowConfig{
			Store:          cfg.Store,
			Hasher:         cfg.Hasher,
			Policy:         cfg.Policy,
			Codec:          codec,
			Validator:      validator,
			Sessions:       sessions,
			Notifier:       cfg.Notifier,
			ResetURL:       cfg.Auth.ResetURL,
			RevokeSessions: cfg.Auth.RevokeSessionsOnPasswordChange,
		}),
		lockNew: cfg.Auth.LockoutForNewUsers,
		logger:  slog.Default(),
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	clientIP string,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Register")
	defer span.End()

	if strings.Contains(req.UserName, "@") {
		return nil, ErrInvalidUserName
	}

	if err := s.policy.Validate(req.Password); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, req.UserName, req.Email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	stamp, err := core.NewSecurityStamp()
	if err != nil {
		return nil, fmt.Errorf("security stamp: %w", err)
	}

	cred, err := s.store.CreateCredential(ctx, NewCredential{
		UserName:       req.UserName,
		Email:          req.Email,
		PasswordHash:   passwordHash,
		SecurityStamp:  stamp,
		LockoutEnabled: s.lockNew,
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateUserName) &&
			!errors.Is(err, ErrDuplicateEmail) {
			core.SetSpanError(ctx, err)
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", cred.ID))

	return s.startSession(ctx, cred, clientIP)
}

// ensureAvailable reports a taken user name before a taken email.
func (s *Service) ensureAvailable(
	ctx context.Context,
	userName, email string,
) error {
	_, err := s.store.FindCredentialByUserName(ctx, userName)
	if err == nil {
		return ErrDuplicateUserName
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("check user name: %w", err)
	}

	_, err = s.store.FindCredentialByEmail(ctx, email)
	if err == nil {
		return ErrDuplicateEmail
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}

	return nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	clientIP string,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Login")
	defer span.End()

	cred, err := s.validator.Validate(ctx, req.Identifier, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			core.SetSpanError(ctx, err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", cred.ID))

	return s.startSession(ctx, cred, clientIP)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, clientIP string,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Refresh")
	defer span.End()

	row, err := s.rotator.Resolve(ctx, refreshToken, clientIP)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			core.SetSpanError(ctx, err)
		}
		return nil, err
	}

	// The account is loaded before the token is consumed, so a failed lookup
	// leaves the client's token usable.
	cred, err := s.store.FindCredentialByID(ctx, row.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("refresh: %w", err)
	}

	rotation, err := s.rotator.Rotate(ctx, row, clientIP)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			core.SetSpanError(ctx, err)
		}
		return nil, err
	}

	return s.authResponse(cred, rotation.Successor)
}

// Revoke ends the session behind refreshToken, whoever owns it.
func (s *Service) Revoke(
	ctx context.Context,
	refreshToken, clientIP string,
) (bool, error) {
	return s.sessions.Revoke(ctx, refreshToken, clientIP, RevokeReasonLogout)
}

// Logout revokes the caller's refresh token, if one is given, and denies the
// presented access token for the rest of its lifetime.
func (s *Service) Logout(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
	refreshToken, clientIP string,
) error {
	ctx, span := core.StartSpan(ctx, "auth.Logout")
	defer span.End()

	if refreshToken != "" {
		if _, err := s.sessions.RevokeOwned(
			ctx,
			claims.UserID,
			refreshToken,
			clientIP,
			RevokeReasonLogout,
		); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}

	s.denyAccessToken(ctx, claims)
	return nil
}

// LogoutAll revokes every session and rotates the security stamp, which also
// invalidates access tokens already issued.
func (s *Service) LogoutAll(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
	clientIP string,
) (int64, error) {
	ctx, span := core.StartSpan(ctx, "auth.LogoutAll")
	defer span.End()

	revoked, err := s.sessions.RevokeAllForUser(
		ctx,
		claims.UserID,
		clientIP,
		RevokeReasonLogoutAll,
	)
	if err != nil {
		return 0, fmt.Errorf("logout all: %w", err)
	}

	stamp, err := core.NewSecurityStamp()
	if err != nil {
		return 0, fmt.Errorf("logout all: %w", err)
	}
	if err := s.store.UpdateSecurityStamp(ctx, claims.UserID, stamp); err != nil {
		return 0, fmt.Errorf("logout all: %w", err)
	}

	s.denyAccessToken(ctx, claims)
	return revoked, nil
}

func (s *Service) denyAccessToken(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
) {
	if s.denylist == nil || claims.TokenID == "" {
		return
	}

	ttl := claims.ExpiresAt.Sub(s.clock.Now())
	if err := s.denylist.Deny(ctx, claims.TokenID, ttl); err != nil {
		s.logger.WarnContext(ctx, "access token denylist write failed",
			"user_id", claims.UserID,
			"error", err,
		)
	}
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	rows, err := s.sessions.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSessionInfo(row))
	}
	return out, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID, clientIP string,
) error {
	return s.sessions.RevokeByID(
		ctx,
		userID,
		sessionID,
		clientIP,
		RevokeReasonLogout,
	)
}

func (s *Service) AdminRevokeSessions(
	ctx context.Context,
	userID, clientIP string,
) (int64, error) {
	ctx, span := core.StartSpan(ctx, "auth.AdminRevokeSessions",
		attribute.String("user.id", userID),
	)
	defer span.End()

	if _, err := s.store.FindCredentialByID(ctx, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return 0, core.NotFoundError("user")
		}
		return 0, fmt.Errorf("admin revoke: %w", err)
	}

	return s.sessions.RevokeAllForUser(ctx, userID, clientIP, RevokeReasonAdmin)
}

// SessionStats tallies refresh tokens across all accounts.
func (s *Service) SessionStats(ctx context.Context) (SessionCounts, error) {
	return s.sessions.Counts(ctx)
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
	clientIP string,
) (bool, error) {
	ctx, span := core.StartSpan(ctx, "auth.ChangePassword")
	defer span.End()

	return s.reset.ChangePassword(
		ctx,
		userID,
		req.CurrentPassword,
		req.NewPassword,
		clientIP,
	)
}

// ForgotPassword never reports whether the email exists. Failures are logged
// and swallowed.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	ctx, span := core.StartSpan(ctx, "auth.ForgotPassword")
	defer span.End()

	if err := s.reset.RequestReset(ctx, email); err != nil {
		core.SetSpanError(ctx, err)
		s.logger.ErrorContext(ctx, "password reset request failed",
			"error", err,
		)
	}
}

func (s *Service) ResetPassword(
	ctx context.Context,
	req ResetPasswordRequest,
	clientIP string,
) (bool, error) {
	ctx, span := core.StartSpan(ctx, "auth.ResetPassword")
	defer span.End()

	return s.reset.ResetPassword(
		ctx,
		req.Email,
		req.Token,
		req.NewPassword,
		clientIP,
	)
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	cred, err := s.store.FindCredentialByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(cred)
	return &resp, nil
}

// VerifyAccessToken accepts a token only while it is unexpired, not denied,
// and its account exists, is not locked out and still has the security stamp
// the token was minted with. The role is taken from the account, not the
// token.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}

	if s.denylist != nil {
		denied, err := s.denylist.IsDenied(ctx, claims.TokenID)
		if err != nil {
			s.logger.WarnContext(ctx, "access token denylist unavailable",
				"error", err,
			)
		}
		if denied {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	cred, err := s.store.FindCredentialByID(ctx, claims.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if s.lockout.IsLockedOut(cred) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	current := core.HashToken(cred.SecurityStamp)
	if subtle.ConstantTimeCompare([]byte(current), []byte(claims.StampHash)) != 1 {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	claims.Role = cred.Role
	return claims, nil
}

func (s *Service) startSession(
	ctx context.Context,
	cred *Credential,
	clientIP string,
) (*AuthResponse, error) {
	refresh, err := s.issuer.Issue(ctx, cred.ID, clientIP)
	if err != nil {
		return nil, err
	}

	return s.authResponse(cred, refresh)
}

func (s *Service) authResponse(
	cred *Credential,
	refresh *IssuedToken,
) (*AuthResponse, error) {
	access, err := s.jwt.CreateAccessToken(AccessTokenRequest{
		UserID:        cred.ID,
		Role:          cred.Role,
		SecurityStamp: cred.SecurityStamp,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(cred),
		Tokens: TokenResponse{
			AccessToken:      access.Token,
			RefreshToken:     refresh.Token,
			TokenType:        "Bearer",
			ExpiresIn:        int(access.ExpiresAt.Sub(s.clock.Now()) / time.Second),
			ExpiresAt:        access.ExpiresAt,
			RefreshExpiresAt: refresh.ExpiresAt,
		},
	}, nil
}
