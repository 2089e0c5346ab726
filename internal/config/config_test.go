// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("DATABASE_URL", "postgres://localhost/sessionguard")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTH_RESET_SIGNING_KEY", testSigningKey)
}

func TestNewAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	c, err := New("")
	require.NoError(t, err)

	assert.Equal(t, "pgx", c.Database.Driver)
	assert.Equal(t, 15*time.Minute, c.JWT.AccessTokenExpire)
	assert.Equal(t, 168*time.Hour, c.JWT.RefreshTokenExpire)
	assert.Equal(t, 5, c.Auth.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, c.Auth.LockoutWindow)
	assert.True(t, c.Auth.LockoutForNewUsers)
	assert.False(t, c.Auth.RevokeChainOnReuse)
	assert.Equal(t, time.Hour, c.Auth.ResetTokenExpire)
	assert.Equal(t, "0.0.0.0:8080", c.Server.Address())
	assert.True(t, c.IsDevelopment())
}

func TestNewEnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "3")
	t.Setenv("AUTH_LOCKOUT_WINDOW", "30m")
	t.Setenv("AUTH_REVOKE_CHAIN_ON_REUSE", "true")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("PORT", "9090")

	c, err := New("")
	require.NoError(t, err)

	assert.Equal(t, 3, c.Auth.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, c.Auth.LockoutWindow)
	assert.True(t, c.Auth.RevokeChainOnReuse)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestNewReadsYAMLFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"auth:",
		"  lockout_threshold: 7",
		"  lockout_for_new_users: false",
		"log:",
		"  level: debug",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, 7, c.Auth.LockoutThreshold)
	assert.False(t, c.Auth.LockoutForNewUsers)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing database url",
			env:  map[string]string{"DATABASE_URL": ""},
			want: "DATABASE_URL",
		},
		{
			name: "short signing key",
			env:  map[string]string{"AUTH_RESET_SIGNING_KEY": "short"},
			want: "AUTH_RESET_SIGNING_KEY",
		},
		{
			name: "unknown driver",
			env:  map[string]string{"DATABASE_DRIVER": "mysql"},
			want: "database.driver",
		},
		{
			name: "zero lockout threshold",
			env:  map[string]string{"AUTH_LOCKOUT_THRESHOLD": "0"},
			want: "lockout_threshold",
		},
		{
			name: "sqlite in production",
			env: map[string]string{
				"DATABASE_DRIVER": "sqlite",
				"ENVIRONMENT":     "production",
			},
			want: "sqlite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
