// AngelaMos | 2026
// redis_test.go

package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewDenylist(client), mr
}

func TestDenylistExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestDenylist(t)

	denied, err := d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, denied)

	require.NoError(t, d.Deny(ctx, "jti-1", 10*time.Minute))

	denied, err = d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, denied)

	mr.FastForward(11 * time.Minute)

	denied, err = d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, denied)
}

func TestDenylistSkipsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestDenylist(t)

	require.NoError(t, d.Deny(ctx, "jti-2", 0))
	require.NoError(t, d.Deny(ctx, "jti-3", -time.Second))

	assert.Empty(t, mr.Keys())
}

func TestDenylistReportsRedisFailure(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestDenylist(t)

	mr.Close()

	_, err := d.IsDenied(ctx, "jti-4")
	assert.Error(t, err)
}
