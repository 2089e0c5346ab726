// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/core"
)

type Service struct {
	repo  Repository
	clock core.Clock
}

func NewService(repo Repository, clock core.Clock) *Service {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Service{repo: repo, clock: clock}
}

func (s *Service) CreateCredential(
	ctx context.Context,
	nc auth.NewCredential,
) (*auth.Credential, error) {
	now := s.clock.Now()

	user := &User{
		ID:                 uuid.New().String(),
		UserName:           strings.TrimSpace(nc.UserName),
		NormalizedUserName: Normalize(nc.UserName),
		Email:              strings.TrimSpace(nc.Email),
		NormalizedEmail:    Normalize(nc.Email),
		PasswordHash:       nc.PasswordHash,
		SecurityStamp:      nc.SecurityStamp,
		Role:               RoleUser,
		LockoutEnabled:     nc.LockoutEnabled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toCredential(user), nil
}

func (s *Service) FindCredentialByID(
	ctx context.Context,
	id string,
) (*auth.Credential, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCredential(user), nil
}

func (s *Service) FindCredentialByUserName(
	ctx context.Context,
	userName string,
) (*auth.Credential, error) {
	user, err := s.repo.GetByNormalizedUserName(ctx, Normalize(userName))
	if err != nil {
		return nil, err
	}
	return toCredential(user), nil
}

func (s *Service) FindCredentialByEmail(
	ctx context.Context,
	email string,
) (*auth.Credential, error) {
	user, err := s.repo.GetByNormalizedEmail(ctx, Normalize(email))
	if err != nil {
		return nil, err
	}
	return toCredential(user), nil
}

func (s *Service) RecordFailedAccess(
	ctx context.Context,
	id string,
	threshold int,
	lockUntil time.Time,
) (int, error) {
	return s.repo.IncrementFailedAccess(ctx, id, threshold, lockUntil, s.clock.Now())
}

func (s *Service) ResetFailedAccess(ctx context.Context, id string) error {
	return s.repo.ResetFailedAccess(ctx, id, s.clock.Now())
}

func (s *Service) UpdatePasswordHash(
	ctx context.Context,
	id, verifiedHash, passwordHash string,
) (bool, error) {
	return s.repo.UpdatePasswordHash(ctx, id, verifiedHash, passwordHash, s.clock.Now())
}

func (s *Service) ReplacePassword(
	ctx context.Context,
	id, passwordHash, securityStamp string,
) error {
	return s.repo.ReplacePassword(ctx, id, passwordHash, securityStamp, s.clock.Now())
}

func (s *Service) UpdateSecurityStamp(
	ctx context.Context,
	id, securityStamp string,
) error {
	return s.repo.UpdateSecurityStamp(ctx, id, securityStamp, s.clock.Now())
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	stamp, err := core.NewSecurityStamp()
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	if err := s.repo.UpdateRole(ctx, id, role, stamp, s.clock.Now()); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) UnlockUser(ctx context.Context, id string) (*User, error) {
	if err := s.repo.Unlock(ctx, id, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func toCredential(u *User) *auth.Credential {
	return &auth.Credential{
		ID:                u.ID,
		UserName:          u.UserName,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		SecurityStamp:     u.SecurityStamp,
		Role:              u.Role,
		FailedAccessCount: u.FailedAccessCount,
		LockoutEnd:        u.LockoutEnd,
		LockoutEnabled:    u.LockoutEnabled,
	}
}

var _ auth.CredentialStore = (*Service)(nil)
