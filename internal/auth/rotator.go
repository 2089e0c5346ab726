// AngelaMos | 2026
// rotator.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

const maxChainWalk = 10_000

type Rotation struct {
	UserID    string
	PriorID   string
	Successor *IssuedToken
}

// TokenRotator exchanges a live refresh token for its successor. The old row
// is consumed and the new one inserted in one transaction, and the consume is
// a conditional write, so a token can be exchanged at most once.
type TokenRotator struct {
	repo          Repository
	issuer        *TokenIssuer
	clock         core.Clock
	revokeOnReuse bool
	logger        *slog.Logger
}

func NewTokenRotator(
	repo Repository,
	issuer *TokenIssuer,
	clock core.Clock,
	revokeOnReuse bool,
) *TokenRotator {
	return &TokenRotator{
		repo:          repo,
		issuer:        issuer,
		clock:         clock,
		revokeOnReuse: revokeOnReuse,
		logger:        slog.Default(),
	}
}

func (r *TokenRotator) Refresh(
	ctx context.Context,
	token, clientIP string,
) (*Rotation, error) {
	row, err := r.Resolve(ctx, token, clientIP)
	if err != nil {
		return nil, err
	}
	return r.Rotate(ctx, row, clientIP)
}

// Resolve returns the live row behind token without changing it. Unknown,
// expired and revoked tokens all yield ErrInvalidToken; a revoked one is
// handled as reuse first.
func (r *TokenRotator) Resolve(
	ctx context.Context,
	token, clientIP string,
) (*RefreshToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	row, err := r.repo.FindByHash(ctx, core.HashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if row.IsRevoked() {
		r.handleReuse(ctx, row, clientIP)
		return nil, ErrInvalidToken
	}

	if row.IsExpired(r.clock.Now()) {
		return nil, ErrInvalidToken
	}

	return row, nil
}

// Rotate consumes a row returned by Resolve and issues its successor.
func (r *TokenRotator) Rotate(
	ctx context.Context,
	row *RefreshToken,
	clientIP string,
) (*Rotation, error) {
	now := r.clock.Now()
	if row.IsExpired(now) {
		return nil, ErrInvalidToken
	}

	successorID := uuid.New().String()
	var successor *IssuedToken

	err := r.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.Consume(ctx, row.ID, successorID, clientIP, now); err != nil {
			return err
		}

		issued, err := r.issuer.issueWith(ctx, tx, successorID, row.UserID, clientIP)
		if err != nil {
			return err
		}
		successor = issued
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		r.logger.WarnContext(ctx, "refresh token consumed concurrently",
			"token_id", row.ID,
			"user_id", row.UserID,
			"ip", clientIP,
		)
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return &Rotation{
		UserID:    row.UserID,
		PriorID:   row.ID,
		Successor: successor,
	}, nil
}

// handleReuse reacts to a revoked token being presented again. The request
// is always rejected; with revokeOnReuse every live descendant is revoked too.
func (r *TokenRotator) handleReuse(
	ctx context.Context,
	row *RefreshToken,
	clientIP string,
) {
	r.logger.WarnContext(ctx, "revoked refresh token presented",
		"token_id", row.ID,
		"user_id", row.UserID,
		"ip", clientIP,
		"consumed", row.IsConsumed(),
	)
	core.AddSpanEvent(ctx, "refresh_token.reuse")

	if !r.revokeOnReuse || row.ReplacedByToken == nil {
		return
	}

	revoked, err := r.revokeDescendants(ctx, *row.ReplacedByToken, clientIP)
	if err != nil {
		r.logger.ErrorContext(ctx, "revoke token chain failed",
			"token_id", row.ID,
			"error", err,
		)
		return
	}

	r.logger.WarnContext(ctx, "token chain revoked after reuse",
		"token_id", row.ID,
		"user_id", row.UserID,
		"revoked", revoked,
	)
}

func (r *TokenRotator) revokeDescendants(
	ctx context.Context,
	nextID, clientIP string,
) (int, error) {
	now := r.clock.Now()
	revoked := 0

	for steps := 0; nextID != "" && steps < maxChainWalk; steps++ {
		descendant, err := r.repo.FindByID(ctx, nextID)
		if errors.Is(err, core.ErrNotFound) {
			break
		}
		if err != nil {
			return revoked, err
		}

		if !descendant.IsRevoked() {
			err := r.repo.Revoke(ctx, descendant.ID, clientIP, RevokeReasonReuse, now)
			switch {
			case err == nil:
				revoked++
			case errors.Is(err, core.ErrNotFound):
				// Rotated or revoked since we read it; re-read to follow the chain.
				descendant, err = r.repo.FindByID(ctx, descendant.ID)
				if err != nil {
					return revoked, err
				}
			default:
				return revoked, err
			}
		}

		nextID = ""
		if descendant.ReplacedByToken != nil {
			nextID = *descendant.ReplacedByToken
		}
	}

	return revoked, nil
}
