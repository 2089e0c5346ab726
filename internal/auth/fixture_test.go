// AngelaMos | 2026
// fixture_test.go

package auth_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/testutil"
	"github.com/carterperez-dev/sessionguard/internal/user"
)

const (
	testPassword = "Sup3r-Secret!"
	testIP       = "203.0.113.7"
	signingKey   = "test-signing-key-0123456789abcdef"
)

type fixture struct {
	db     *sqlx.DB
	clock  *core.ManualClock
	hasher *core.Hasher
	users  *user.Service
	tokens auth.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	clock := testutil.NewClock()

	return &fixture{
		db:     db,
		clock:  clock,
		hasher: testutil.NewHasher(t),
		users:  user.NewService(user.NewRepository(db), clock),
		tokens: auth.NewRepository(db),
	}
}

// createUser stores an account with testPassword and lockout enabled.
func (f *fixture) createUser(t *testing.T) *auth.Credential {
	t.Helper()

	hash, err := f.hasher.Hash(testPassword)
	require.NoError(t, err)

	stamp, err := core.NewSecurityStamp()
	require.NoError(t, err)

	name := strings.ReplaceAll(gofakeit.Username(), "@", "")
	cred, err := f.users.CreateCredential(context.Background(), auth.NewCredential{
		UserName:       fmt.Sprintf("%s%d", name, gofakeit.Number(1000, 9999)),
		Email:          fmt.Sprintf("%d.%s", gofakeit.Number(1000, 9999), gofakeit.Email()),
		PasswordHash:   hash,
		SecurityStamp:  stamp,
		LockoutEnabled: true,
	})
	require.NoError(t, err)

	return cred
}

func (f *fixture) reload(t *testing.T, id string) *auth.Credential {
	t.Helper()

	cred, err := f.users.FindCredentialByID(context.Background(), id)
	require.NoError(t, err)
	return cred
}

func (f *fixture) tokenRow(t *testing.T, id string) *auth.RefreshToken {
	t.Helper()

	row, err := f.tokens.FindByID(context.Background(), id)
	require.NoError(t, err)
	return row
}

func (f *fixture) issuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(f.tokens, f.clock, auth.DefaultRefreshTokenTTL)
}

func (f *fixture) rotator(revokeOnReuse bool) *auth.TokenRotator {
	return auth.NewTokenRotator(f.tokens, f.issuer(), f.clock, revokeOnReuse)
}

func (f *fixture) jwtConfig(t *testing.T) config.JWTConfig {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, auth.GenerateKeyPair(priv, pub))

	return config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  auth.DefaultAccessTokenTTL,
		RefreshTokenExpire: auth.DefaultRefreshTokenTTL,
		Issuer:             "sessionguard-test",
		Audience:           "sessionguard-test-api",
	}
}

func defaultAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		LockoutThreshold:               auth.DefaultLockoutThreshold,
		LockoutWindow:                  auth.DefaultLockoutWindow,
		LockoutForNewUsers:             true,
		RevokeSessionsOnPasswordChange: true,
		ResetTokenExpire:               auth.DefaultResetTokenTTL,
		ResetSigningKey:                signingKey,
		ResetURL:                       "https://app.example.com/reset",
	}
}

func bcryptHash(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}
