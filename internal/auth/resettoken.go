// AngelaMos | 2026
// resettoken.go

package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/sessionguard/internal/core"
)

const (
	DefaultResetTokenTTL = time.Hour

	resetPurpose = "password_reset"
)

type resetClaims struct {
	Purpose string `json:"purpose"`
	Stamp   string `json:"sst"`
	jwt.RegisteredClaims
}

// ResetTokenCodec signs password reset tokens bound to an account's current
// security stamp. Any credential change rotates the stamp, so a token is
// spent by the reset it authorises.
type ResetTokenCodec struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  core.Clock
}

func NewResetTokenCodec(
	key []byte,
	issuer string,
	ttl time.Duration,
	clock core.Clock,
) *ResetTokenCodec {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenCodec{key: key, issuer: issuer, ttl: ttl, clock: clock}
}

func (c *ResetTokenCodec) Encode(cred *Credential) (string, time.Time, error) {
	now := c.clock.Now()
	expiresAt := now.Add(c.ttl)

	claims := resetClaims{
		Purpose: resetPurpose,
		Stamp:   core.HashToken(cred.SecurityStamp),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    c.issuer,
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign reset token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify reports whether token was issued for cred and is still usable.
func (c *ResetTokenCodec) Verify(token string, cred *Credential) bool {
	var claims resetClaims

	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithSubject(cred.ID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		return false
	}

	if claims.Purpose != resetPurpose {
		return false
	}

	expected := core.HashToken(cred.SecurityStamp)
	return subtle.ConstantTimeCompare([]byte(claims.Stamp), []byte(expected)) == 1
}
