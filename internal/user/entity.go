// AngelaMos | 2026
// entity.go

package user

import (
	"strings"
	"time"
)

type User struct {
	ID                 string     `db:"id"`
	UserName           string     `db:"username"`
	NormalizedUserName string     `db:"normalized_username"`
	Email              string     `db:"email"`
	NormalizedEmail    string     `db:"normalized_email"`
	PasswordHash       string     `db:"password_hash"`
	SecurityStamp      string     `db:"security_stamp"`
	Role               string     `db:"role"`
	FailedAccessCount  int        `db:"failed_access_count"`
	LockoutEnd         *time.Time `db:"lockout_end"`
	LockoutEnabled     bool       `db:"lockout_enabled"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Normalize is the lookup key for user names and emails.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
