// AngelaMos | 2026
// errors.go

package auth

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers unknown account, locked account and wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers unknown, revoked, consumed and expired refresh
	// tokens alike. The client must log in again.
	ErrInvalidToken = errors.New("invalid or expired refresh token")

	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUserName = errors.New("username already taken")
	ErrInvalidUserName   = errors.New("username must not contain '@'")
	ErrPasswordPolicy    = errors.New("password does not satisfy policy")
	ErrSessionNotFound   = errors.New("session not found")
)

// PolicyError lists every password rule a candidate failed.
type PolicyError struct {
	Violations []Violation
}

func (e *PolicyError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, string(v.Code))
	}
	return ErrPasswordPolicy.Error() + ": " + strings.Join(codes, ", ")
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPasswordPolicy
}
