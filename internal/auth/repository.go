// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at,
	created_by_ip, revoked_at, revoked_by_ip, revoke_reason, replaced_by_token`

// Repository stores refresh tokens. Conditional writes report a row that was
// already revoked as core.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	Consume(
		ctx context.Context,
		id, successorID, ip string,
		now time.Time,
	) error
	Revoke(ctx context.Context, id, ip, reason string, now time.Time) error
	RevokeAllForUser(
		ctx context.Context,
		userID, ip, reason string,
		now time.Time,
	) (int64, error)
	ListUnrevokedForUser(ctx context.Context, userID string) ([]RefreshToken, error)
	CountByState(ctx context.Context, now time.Time) (SessionCounts, error)

	// WithTx runs fn against a repository bound to a single transaction.
	// Calls made inside fn must go through the repository it receives.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

type repository struct {
	db   core.DBTX
	root *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db, root: db}
}

func (r *repository) WithTx(
	ctx context.Context,
	fn func(Repository) error,
) error {
	if r.root == nil {
		return fn(r)
	}

	return core.InTx(ctx, r.root, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := r.db.Rebind(`
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, expires_at, created_at, created_by_ip
		) VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
		token.CreatedByIP,
	)
	if err != nil {
		if _, ok := core.UniqueViolation(err); ok {
			return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	return r.findOne(ctx, "token_hash", tokenHash)
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	return r.findOne(ctx, "id", id)
}

func (r *repository) findOne(
	ctx context.Context,
	column, value string,
) (*RefreshToken, error) {
	query := r.db.Rebind(`SELECT ` + refreshTokenColumns +
		` FROM refresh_tokens WHERE ` + column + ` = ?`)

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Consume is the Active to Consumed transition. The revoked_at guard makes it
// succeed for exactly one caller per row.
func (r *repository) Consume(
	ctx context.Context,
	id, successorID, ip string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = ?, revoked_by_ip = ?, replaced_by_token = ?
		WHERE id = ? AND revoked_at IS NULL`)

	return r.execOne(ctx, "consume refresh token", query,
		now, ip, successorID, id)
}

func (r *repository) Revoke(
	ctx context.Context,
	id, ip, reason string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = ?, revoked_by_ip = ?, revoke_reason = ?
		WHERE id = ? AND revoked_at IS NULL`)

	return r.execOne(ctx, "revoke refresh token", query,
		now, ip, reason, id)
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID, ip, reason string,
	now time.Time,
) (int64, error) {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = ?, revoked_by_ip = ?, revoke_reason = ?
		WHERE user_id = ? AND revoked_at IS NULL`)

	result, err := r.db.ExecContext(ctx, query, now, ip, reason, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) ListUnrevokedForUser(
	ctx context.Context,
	userID string,
) ([]RefreshToken, error) {
	query := r.db.Rebind(`
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = ? AND revoked_at IS NULL
		ORDER BY created_at DESC`)

	var tokens []RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	return tokens, nil
}

func (r *repository) CountByState(
	ctx context.Context,
	now time.Time,
) (SessionCounts, error) {
	query := r.db.Rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN revoked_at IS NULL AND expires_at > ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN revoked_at IS NULL AND expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired,
			COALESCE(SUM(CASE WHEN revoked_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS revoked
		FROM refresh_tokens`)

	var counts SessionCounts
	if err := r.db.GetContext(ctx, &counts, query, now, now); err != nil {
		return SessionCounts{}, fmt.Errorf("count refresh tokens: %w", err)
	}

	return counts, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
