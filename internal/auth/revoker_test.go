// AngelaMos | 2026
// revoker_test.go

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/sessionguard/internal/auth"
)

func TestRevokeReportsWhetherAnythingChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.createUser(t)
	revoker := auth.NewSessionRevoker(f.tokens, f.clock)

	issued, err := f.issuer().Issue(ctx, cred.ID, testIP)
	require.NoError(t, err)

	ok, err := revoker.Revoke(ctx, issued.Token, "5.5.5.5", auth.RevokeReasonLogout)
	require.NoError(t, err)
	assert.True(t, ok)

	row := f.tokenRow(t, issued.ID)
	require.NotNil(t, row.RevokeReason)
	assert.Equal(t, auth.RevokeReasonLogout, *row.RevokeReason)
	assert.Nil(t, row.ReplacedByToken)

	ok, err = revoker.Revoke(ctx, issued.Token, "5.5.5.5", auth.RevokeReasonLogout)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = revoker.Revoke(ctx, "unknown", testIP, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = revoker.Revoke(ctx, "", testIP, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.createUser(t)
	revoker := auth.NewSessionRevoker(f.tokens, f.clock)

	issued, err := f.issuer().Issue(ctx, cred.ID, testIP)
	require.NoError(t, err)

	f.clock.Advance(auth.DefaultRefreshTokenTTL + time.Hour)

	ok, err := revoker.Revoke(ctx, issued.Token, testIP, "")
	require.NoError(t, err)
	assert.True(t, ok)

	row := f.tokenRow(t, issued.ID)
	require.NotNil(t, row.RevokeReason)
	assert.Equal(t, auth.RevokeReasonUnspecified, *row.RevokeReason)
}

func TestRevokeOwnedIgnoresOtherUsersTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t)
	bob := f.createUser(t)
	revoker := auth.NewSessionRevoker(f.tokens, f.clock)

	issued, err := f.issuer().Issue(ctx, alice.ID, testIP)
	require.NoError(t, err)

	ok, err := revoker.RevokeOwned(ctx, bob.ID, issued.Token, testIP, auth.RevokeReasonLogout)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.tokenRow(t, issued.ID).IsRevoked())

	ok, err = revoker.RevokeOwned(ctx, alice.ID, issued.Token, testIP, auth.RevokeReasonLogout)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevokeByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t)
	bob := f.createUser(t)
	revoker := auth.NewSessionRevoker(f.tokens, f.clock)

	issued, err := f.issuer().Issue(ctx, alice.ID, testIP)
	require.NoError(t, err)

	err = revoker.RevokeByID(ctx, bob.ID, issued.ID, testIP, auth.RevokeReasonLogout)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	err = revoker.RevokeByID(ctx, alice.ID, "missing-id", testIP, auth.RevokeReasonLogout)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	require.NoError(t, revoker.RevokeByID(ctx, alice.ID, issued.ID, testIP, auth.RevokeReasonLogout))

	err = revoker.RevokeByID(ctx, alice.ID, issued.ID, testIP, auth.RevokeReasonLogout)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestRevokeAllAndActiveSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t)
	bob := f.createUser(t)
	revoker := auth.NewSessionRevoker(f.tokens, f.clock)
	issuer := f.issuer()

	for range 3 {
		_, err := issuer.Issue(ctx, alice.ID, testIP)
		require.NoError(t, err)
	}
	bobs, err := issuer.Issue(ctx, bob.ID, testIP)
	require.NoError(t, err)

	short := auth.NewTokenIssuer(f.tokens, f.clock, time.Minute)
	_, err = short.Issue(ctx, alice.ID, testIP)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	active, err := revoker.ActiveSessions(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	n, err := revoker.RevokeAllForUser(ctx, alice.ID, testIP, auth.RevokeReasonLogoutAll)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	active, err = revoker.ActiveSessions(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	n, err = revoker.RevokeAllForUser(ctx, alice.ID, testIP, auth.RevokeReasonLogoutAll)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, f.tokenRow(t, bobs.ID).IsActive(f.clock.Now()))
}

func TestSessionCountsByState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred := f.createUser(t)
	revoker := auth.NewSessionRevoker(f.tokens, f.clock)

	_, err := f.issuer().Issue(ctx, cred.ID, testIP)
	require.NoError(t, err)

	f.clock.Advance(auth.DefaultRefreshTokenTTL + time.Hour)

	_, err = f.issuer().Issue(ctx, cred.ID, testIP)
	require.NoError(t, err)
	revoked, err := f.issuer().Issue(ctx, cred.ID, testIP)
	require.NoError(t, err)

	ok, err := revoker.Revoke(ctx, revoked.Token, testIP, auth.RevokeReasonLogout)
	require.NoError(t, err)
	require.True(t, ok)

	counts, err := revoker.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionCounts{Active: 1, Expired: 1, Revoked: 1}, counts)
}
