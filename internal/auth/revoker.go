// AngelaMos | 2026
// revoker.go

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

// SessionRevoker ends sessions without issuing a successor.
type SessionRevoker struct {
	repo  Repository
	clock core.Clock
}

func NewSessionRevoker(repo Repository, clock core.Clock) *SessionRevoker {
	return &SessionRevoker{repo: repo, clock: clock}
}

// Revoke reports false when the token is unknown or already revoked. Expired
// tokens can still be revoked.
func (s *SessionRevoker) Revoke(
	ctx context.Context,
	token, clientIP, reason string,
) (bool, error) {
	if token == "" {
		return false, nil
	}

	row, err := s.repo.FindByHash(ctx, core.HashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke: %w", err)
	}

	return s.revokeRow(ctx, row, clientIP, reason)
}

// RevokeOwned revokes the token only if it belongs to userID.
func (s *SessionRevoker) RevokeOwned(
	ctx context.Context,
	userID, token, clientIP, reason string,
) (bool, error) {
	if token == "" {
		return false, nil
	}

	row, err := s.repo.FindByHash(ctx, core.HashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke: %w", err)
	}

	if row.UserID != userID {
		return false, nil
	}

	return s.revokeRow(ctx, row, clientIP, reason)
}

// RevokeByID revokes the session with the given row id on behalf of userID.
func (s *SessionRevoker) RevokeByID(
	ctx context.Context,
	userID, sessionID, clientIP, reason string,
) error {
	row, err := s.repo.FindByID(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if row.UserID != userID {
		return ErrSessionNotFound
	}

	revoked, err := s.revokeRow(ctx, row, clientIP, reason)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrSessionNotFound
	}

	return nil
}

func (s *SessionRevoker) RevokeAllForUser(
	ctx context.Context,
	userID, clientIP, reason string,
) (int64, error) {
	n, err := s.repo.RevokeAllForUser(ctx, userID, clientIP, reason, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	return n, nil
}

// ActiveSessions lists the user's unrevoked, unexpired tokens.
func (s *SessionRevoker) ActiveSessions(
	ctx context.Context,
	userID string,
) ([]RefreshToken, error) {
	rows, err := s.repo.ListUnrevokedForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active sessions: %w", err)
	}

	now := s.clock.Now()
	active := rows[:0]
	for _, row := range rows {
		if row.IsActive(now) {
			active = append(active, row)
		}
	}

	return active, nil
}

func (s *SessionRevoker) revokeRow(
	ctx context.Context,
	row *RefreshToken,
	clientIP, reason string,
) (bool, error) {
	if row.IsRevoked() {
		return false, nil
	}

	if reason == "" {
		reason = RevokeReasonUnspecified
	}

	err := s.repo.Revoke(ctx, row.ID, clientIP, reason, s.clock.Now())
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke: %w", err)
	}

	return true, nil
}

func (s *SessionRevoker) Counts(ctx context.Context) (SessionCounts, error) {
	return s.repo.CountByState(ctx, s.clock.Now())
}
