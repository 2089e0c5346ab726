// AngelaMos | 2026
// issuer.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// IssuedToken is the only place a refresh token's plaintext ever appears.
type IssuedToken struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

type TokenIssuer struct {
	repo  Repository
	clock core.Clock
	ttl   time.Duration
}

func NewTokenIssuer(repo Repository, clock core.Clock, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{repo: repo, clock: clock, ttl: ttl}
}

func (i *TokenIssuer) Issue(
	ctx context.Context,
	userID, clientIP string,
) (*IssuedToken, error) {
	return i.issueWith(ctx, i.repo, uuid.New().String(), userID, clientIP)
}

// issueWith stores a new token under id through repo, which may be bound to
// a caller's transaction.
func (i *TokenIssuer) issueWith(
	ctx context.Context,
	repo Repository,
	id, userID, clientIP string,
) (*IssuedToken, error) {
	plaintext, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := i.clock.Now()
	row := &RefreshToken{
		ID:          id,
		UserID:      userID,
		TokenHash:   core.HashToken(plaintext),
		ExpiresAt:   now.Add(i.ttl),
		CreatedAt:   now,
		CreatedByIP: clientIP,
	}

	if err := repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &IssuedToken{
		ID:        row.ID,
		Token:     plaintext,
		ExpiresAt: row.ExpiresAt,
	}, nil
}
