// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

const (
	RevokeReasonLogout      = "logout"
	RevokeReasonLogoutAll   = "logout all"
	RevokeReasonReuse       = "reuse detected"
	RevokeReasonPassword    = "password changed"
	RevokeReasonAdmin       = "admin"
	RevokeReasonUnspecified = "revoked"
)

// RefreshToken is one stored refresh credential. Only the digest of the
// secret is kept. Once RevokedAt is set the row never changes again.
type RefreshToken struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	TokenHash       string     `db:"token_hash"`
	ExpiresAt       time.Time  `db:"expires_at"`
	CreatedAt       time.Time  `db:"created_at"`
	CreatedByIP     string     `db:"created_by_ip"`
	RevokedAt       *time.Time `db:"revoked_at"`
	RevokedByIP     *string    `db:"revoked_by_ip"`
	RevokeReason    *string    `db:"revoke_reason"`
	ReplacedByToken *string    `db:"replaced_by_token"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsConsumed reports whether the token was spent by a rotation rather than
// an explicit revocation.
func (t *RefreshToken) IsConsumed() bool {
	return t.RevokedAt != nil && t.ReplacedByToken != nil
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// SessionCounts tallies refresh tokens by state. Consumed tokens count as
// revoked.
type SessionCounts struct {
	Active  int64 `db:"active" json:"active"`
	Expired int64 `db:"expired" json:"expired"`
	Revoked int64 `db:"revoked" json:"revoked"`
}
