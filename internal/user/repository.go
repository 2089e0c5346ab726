// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/core"
)

const userColumns = `id, username, normalized_username, email, normalized_email,
	password_hash, security_stamp, role, failed_access_count, lockout_end,
	lockout_enabled, created_at, updated_at`

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByNormalizedUserName(ctx context.Context, normalized string) (*User, error)
	GetByNormalizedEmail(ctx context.Context, normalized string) (*User, error)
	IncrementFailedAccess(
		ctx context.Context,
		id string,
		threshold int,
		lockUntil, now time.Time,
	) (int, error)
	ResetFailedAccess(ctx context.Context, id string, now time.Time) error
	UpdatePasswordHash(
		ctx context.Context,
		id, verifiedHash, passwordHash string,
		now time.Time,
	) (bool, error)
	ReplacePassword(
		ctx context.Context,
		id, passwordHash, securityStamp string,
		now time.Time,
	) error
	UpdateSecurityStamp(ctx context.Context, id, securityStamp string, now time.Time) error
	UpdateRole(ctx context.Context, id, role, securityStamp string, now time.Time) error
	Unlock(ctx context.Context, id string, now time.Time) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.UserName,
		user.NormalizedUserName,
		user.Email,
		user.NormalizedEmail,
		user.PasswordHash,
		user.SecurityStamp,
		user.Role,
		user.FailedAccessCount,
		user.LockoutEnd,
		user.LockoutEnabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := core.UniqueViolation(err); ok {
			return fmt.Errorf("create user: %w", duplicateError(constraint))
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func duplicateError(constraint string) error {
	if strings.Contains(constraint, "normalized_username") {
		return auth.ErrDuplicateUserName
	}
	if strings.Contains(constraint, "normalized_email") {
		return auth.ErrDuplicateEmail
	}
	return core.ErrDuplicateKey
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get user", "id", id)
}

func (r *repository) GetByNormalizedUserName(
	ctx context.Context,
	normalized string,
) (*User, error) {
	return r.getOne(ctx, "get user by username", "normalized_username", normalized)
}

func (r *repository) GetByNormalizedEmail(
	ctx context.Context,
	normalized string,
) (*User, error) {
	return r.getOne(ctx, "get user by email", "normalized_email", normalized)
}

func (r *repository) getOne(
	ctx context.Context,
	op, column, value string,
) (*User, error) {
	query := r.db.Rebind(
		`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`,
	)

	var user User
	err := r.db.GetContext(ctx, &user, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) IncrementFailedAccess(
	ctx context.Context,
	id string,
	threshold int,
	lockUntil, now time.Time,
) (int, error) {
	query := r.db.Rebind(`
		UPDATE users
		SET failed_access_count = failed_access_count + 1,
		    lockout_end = CASE
		        WHEN lockout_enabled
		             AND (failed_access_count + 1) % ? = 0
		             AND (lockout_end IS NULL OR lockout_end <= ?) THEN ?
		        ELSE lockout_end
		    END,
		    updated_at = ?
		WHERE id = ?
		RETURNING failed_access_count`)

	var count int
	err := r.db.GetContext(ctx, &count, query, threshold, now, lockUntil, now, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record failed access: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("record failed access: %w", err)
	}

	return count, nil
}

func (r *repository) ResetFailedAccess(
	ctx context.Context,
	id string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET failed_access_count = 0, updated_at = ?
		WHERE id = ? AND failed_access_count <> 0`)

	if _, err := r.db.ExecContext(ctx, query, now, id); err != nil {
		return fmt.Errorf("reset failed access: %w", err)
	}

	return nil
}

// Unlock ends an active lockout. The failure count is left as is; only a
// successful sign-in resets it.
func (r *repository) Unlock(ctx context.Context, id string, now time.Time) error {
	query := r.db.Rebind(`
		UPDATE users
		SET lockout_end = NULL, updated_at = ?
		WHERE id = ?`)

	return r.execOne(ctx, "unlock user", query, now, id)
}

// UpdatePasswordHash is a compare-and-swap on password_hash so an upgrade of
// an old hash cannot overwrite a password replaced after it was verified.
func (r *repository) UpdatePasswordHash(
	ctx context.Context,
	id, verifiedHash, passwordHash string,
	now time.Time,
) (bool, error) {
	query := r.db.Rebind(`
		UPDATE users
		SET password_hash = ?, updated_at = ?
		WHERE id = ? AND password_hash = ?`)

	result, err := r.db.ExecContext(ctx, query, passwordHash, now, id, verifiedHash)
	if err != nil {
		return false, fmt.Errorf("update password hash: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update password hash: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) ReplacePassword(
	ctx context.Context,
	id, passwordHash, securityStamp string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET password_hash = ?, security_stamp = ?, updated_at = ?
		WHERE id = ?`)

	return r.execOne(ctx, "replace password", query,
		passwordHash, securityStamp, now, id)
}

func (r *repository) UpdateSecurityStamp(
	ctx context.Context,
	id, securityStamp string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET security_stamp = ?, updated_at = ?
		WHERE id = ?`)

	return r.execOne(ctx, "update security stamp", query, securityStamp, now, id)
}

// UpdateRole also replaces the security stamp so tokens minted under the old
// role stop verifying.
func (r *repository) UpdateRole(
	ctx context.Context,
	id, role, securityStamp string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET role = ?, security_stamp = ?, updated_at = ?
		WHERE id = ?`)

	return r.execOne(ctx, "update role", query, role, securityStamp, now, id)
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

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"1 = 1"}
	var args []any

	if params.Search != "" {
		pattern := "%" + escapeLike(Normalize(params.Search)) + "%"
		conditions = append(conditions,
			`(normalized_email LIKE ? ESCAPE '\' OR normalized_username LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	if params.Role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, params.Role)
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := r.db.Rebind("SELECT COUNT(*) FROM users WHERE " + whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE ` + whereClause + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
