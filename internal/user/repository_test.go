// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *core.ManualClock) {
	t.Helper()

	clock := testutil.NewClock()
	return NewService(NewRepository(testutil.NewDB(t)), clock), clock
}

func createTestUser(t *testing.T, svc *Service, name, email string) *auth.Credential {
	t.Helper()

	cred, err := svc.CreateCredential(context.Background(), auth.NewCredential{
		UserName:       name,
		Email:          email,
		PasswordHash:   "$argon2id$placeholder",
		SecurityStamp:  "STAMP-1",
		LockoutEnabled: true,
	})
	require.NoError(t, err)
	return cred
}

func TestCreateCredentialNormalizesLookups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cred := createTestUser(t, svc, " Alice ", "Alice@Example.com")
	assert.Equal(t, "Alice", cred.UserName)
	assert.Equal(t, RoleUser, cred.Role)

	byName, err := svc.FindCredentialByUserName(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, byName.ID)

	byEmail, err := svc.FindCredentialByEmail(ctx, "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, byEmail.ID)

	_, err = svc.FindCredentialByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.FindCredentialByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateCredentialDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	createTestUser(t, svc, "alice", "alice@example.com")

	_, err := svc.CreateCredential(context.Background(), auth.NewCredential{
		UserName:      "ALICE",
		Email:         "different@example.com",
		PasswordHash:  "x",
		SecurityStamp: "S",
	})
	assert.ErrorIs(t, err, auth.ErrDuplicateUserName)

	_, err = svc.CreateCredential(context.Background(), auth.NewCredential{
		UserName:      "bob",
		Email:         "ALICE@example.com",
		PasswordHash:  "x",
		SecurityStamp: "S",
	})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
}

func TestRecordFailedAccessLocksOnMultiples(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	cred := createTestUser(t, svc, "alice", "alice@example.com")

	lockUntil := clock.Now().Add(15 * time.Minute)

	for i := 1; i <= 2; i++ {
		count, err := svc.RecordFailedAccess(ctx, cred.ID, 3, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	reloaded, err := svc.GetUser(ctx, cred.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.LockoutEnd)

	count, err := svc.RecordFailedAccess(ctx, cred.ID, 3, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	reloaded, err = svc.GetUser(ctx, cred.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LockoutEnd)
	assert.True(t, reloaded.LockoutEnd.Equal(lockUntil))
	assert.True(t, reloaded.IsLockedOut(clock.Now()))

	require.NoError(t, svc.ResetFailedAccess(ctx, cred.ID))
	reloaded, err = svc.GetUser(ctx, cred.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.FailedAccessCount)
	assert.NotNil(t, reloaded.LockoutEnd)

	_, err = svc.RecordFailedAccess(ctx, "missing", 3, lockUntil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordFailedAccessWhileLockedKeepsLockoutEnd(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	cred := createTestUser(t, svc, "alice", "alice@example.com")

	first := clock.Now().Add(15 * time.Minute)
	for range 3 {
		_, err := svc.RecordFailedAccess(ctx, cred.ID, 3, first)
		require.NoError(t, err)
	}

	clock.Advance(time.Minute)
	later := clock.Now().Add(15 * time.Minute)
	for i := 4; i <= 6; i++ {
		count, err := svc.RecordFailedAccess(ctx, cred.ID, 3, later)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	reloaded, err := svc.GetUser(ctx, cred.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LockoutEnd)
	assert.True(t, reloaded.LockoutEnd.Equal(first))

	clock.Advance(15 * time.Minute)
	for range 3 {
		_, err := svc.RecordFailedAccess(ctx, cred.ID, 3, later.Add(time.Hour))
		require.NoError(t, err)
	}

	reloaded, err = svc.GetUser(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, reloaded.FailedAccessCount)
	assert.True(t, reloaded.LockoutEnd.Equal(later.Add(time.Hour)))
}

func TestUpdatePasswordHashComparesVerifiedHash(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cred := createTestUser(t, svc, "alice", "alice@example.com")

	swapped, err := svc.UpdatePasswordHash(ctx, cred.ID, "stale-hash", "upgraded-hash")
	require.NoError(t, err)
	assert.False(t, swapped)

	got, err := svc.FindCredentialByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.PasswordHash, got.PasswordHash)

	swapped, err = svc.UpdatePasswordHash(ctx, cred.ID, cred.PasswordHash, "upgraded-hash")
	require.NoError(t, err)
	assert.True(t, swapped)

	got, err = svc.FindCredentialByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "upgraded-hash", got.PasswordHash)

	swapped, err = svc.UpdatePasswordHash(ctx, "missing", "upgraded-hash", "x")
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestUnlockUserClearsLockout(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	cred := createTestUser(t, svc, gofakeit.Username(), gofakeit.Email())

	_, err := svc.RecordFailedAccess(ctx, cred.ID, 1, clock.Now().Add(time.Hour))
	require.NoError(t, err)

	locked, err := svc.GetUser(ctx, cred.ID)
	require.NoError(t, err)
	require.True(t, locked.IsLockedOut(clock.Now()))

	unlocked, err := svc.UnlockUser(ctx, cred.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.IsLockedOut(clock.Now()))
	assert.Nil(t, unlocked.LockoutEnd)
	assert.Equal(t, 1, unlocked.FailedAccessCount)

	_, err = svc.UnlockUser(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReplacePasswordAndRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cred := createTestUser(t, svc, "alice", "alice@example.com")

	require.NoError(t, svc.ReplacePassword(ctx, cred.ID, "new-hash", "STAMP-2"))

	got, err := svc.FindCredentialByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, "STAMP-2", got.SecurityStamp)

	updated, err := svc.UpdateUserRole(ctx, cred.ID, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())
	assert.NotEqual(t, "STAMP-2", updated.SecurityStamp)

	_, err = svc.UpdateUserRole(ctx, cred.ID, "superuser")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.UpdateUserRole(ctx, "missing", RoleUser)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, svc.ReplacePassword(ctx, "missing", "h", "s"), core.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	for range 5 {
		createTestUser(t, svc, gofakeit.Username()+gofakeit.DigitN(4), gofakeit.DigitN(4)+gofakeit.Email())
		clock.Advance(time.Second)
	}
	target := createTestUser(t, svc, "needle_user", "needle@example.com")
	_, err := svc.UpdateUserRole(ctx, target.ID, RoleAdmin)
	require.NoError(t, err)

	users, total, err := svc.ListUsers(ctx, ListUsersParams{Page: 1, PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, users, 4)
	assert.Equal(t, target.ID, users[0].ID)

	users, total, err = svc.ListUsers(ctx, ListUsersParams{Search: "needle_"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)

	_, total, err = svc.ListUsers(ctx, ListUsersParams{Role: RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
