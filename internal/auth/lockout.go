// AngelaMos | 2026
// lockout.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = 15 * time.Minute
)

// LockoutGuard tracks consecutive failed sign-ins and locks an account for a
// fixed window each time the count reaches a multiple of the threshold.
type LockoutGuard struct {
	store     CredentialStore
	clock     core.Clock
	threshold int
	window    time.Duration
	logger    *slog.Logger
}

func NewLockoutGuard(
	store CredentialStore,
	clock core.Clock,
	threshold int,
	window time.Duration,
) *LockoutGuard {
	if threshold < 1 {
		threshold = DefaultLockoutThreshold
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}

	return &LockoutGuard{
		store:     store,
		clock:     clock,
		threshold: threshold,
		window:    window,
		logger:    slog.Default(),
	}
}

func (g *LockoutGuard) IsLockedOut(cred *Credential) bool {
	return cred.LockoutEnd != nil && cred.LockoutEnd.After(g.clock.Now())
}

// RecordFailure counts one failed attempt. While a lockout is active the
// count still grows but the lockout end is never moved.
func (g *LockoutGuard) RecordFailure(ctx context.Context, cred *Credential) error {
	lockUntil := g.clock.Now().Add(g.window)

	count, err := g.store.RecordFailedAccess(ctx, cred.ID, g.threshold, lockUntil)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	if cred.LockoutEnabled && count%g.threshold == 0 && !g.IsLockedOut(cred) {
		g.logger.WarnContext(ctx, "account locked out",
			"user_id", cred.ID,
			"failed_attempts", count,
			"locked_until", lockUntil,
		)
	}

	return nil
}

// RecordSuccess clears the failure count. Any lockout end already recorded is
// left alone.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, cred *Credential) error {
	if cred.FailedAccessCount == 0 {
		return nil
	}

	if err := g.store.ResetFailedAccess(ctx, cred.ID); err != nil {
		return fmt.Errorf("record success: %w", err)
	}

	return nil
}
