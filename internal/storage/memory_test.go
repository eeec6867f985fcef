package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"booking_service/internal/models"
	"booking_service/internal/storage"

	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, st storage.Storage, email string) int64 {
	t.Helper()

	id, err := st.CreateUser(context.Background(), models.User{
		Name:         "Ana",
		Email:        email,
		Role:         models.RoleAssistant,
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	return id
}

func TestMemoryStorage_Users(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()

	id := newUser(t, st, "ana@fatec.sp.gov.br")

	_, err := st.CreateUser(ctx, models.User{Email: "ana@fatec.sp.gov.br"})
	require.ErrorIs(t, err, storage.ErrUserExists)

	byEmail, err := st.GetUserByEmail(ctx, "ana@fatec.sp.gov.br")
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)

	require.NoError(t, st.UpdatePassword(ctx, id, "new-hash"))
	byID, err := st.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new-hash", byID.PasswordHash)

	_, err = st.GetUserByEmail(ctx, "nobody@fatec.sp.gov.br")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	require.ErrorIs(t, st.UpdatePassword(ctx, 999, "x"), storage.ErrUserNotFound)
}

func TestMemoryStorage_ReplaceKeepsOneActiveRow(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	userID := newUser(t, st, "ana@fatec.sp.gov.br")
	exp := time.Now().Add(time.Hour)

	_, err := st.ReplaceRefreshTokens(ctx, userID, "h1", exp)
	require.NoError(t, err)
	_, err = st.ReplaceRefreshTokens(ctx, userID, "h2", exp)
	require.NoError(t, err)

	rows := st.RefreshTokens(userID)
	require.Len(t, rows, 2)
	require.True(t, rows[0].IsRevoked)
	require.False(t, rows[1].IsRevoked)

	_, err = st.FindActiveRefreshToken(ctx, userID, "h1", time.Now())
	require.ErrorIs(t, err, storage.ErrTokenNotFound)
	row, err := st.FindActiveRefreshToken(ctx, userID, "h2", time.Now())
	require.NoError(t, err)
	require.Equal(t, rows[1].ID, row.ID)
}

func TestMemoryStorage_FindActiveIgnoresExpired(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	userID := newUser(t, st, "ana@fatec.sp.gov.br")
	now := time.Now()

	_, err := st.StoreRefreshToken(ctx, userID, "h1", now.Add(time.Minute))
	require.NoError(t, err)

	_, err = st.FindActiveRefreshToken(ctx, userID, "h1", now)
	require.NoError(t, err)
	_, err = st.FindActiveRefreshToken(ctx, userID, "h1", now.Add(2*time.Minute))
	require.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestMemoryStorage_RevokeAllActiveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	userID := newUser(t, st, "ana@fatec.sp.gov.br")

	_, err := st.StoreRefreshToken(ctx, userID, "h1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	n, err := st.RevokeAllActive(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = st.RevokeAllActive(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryStorage_RotateExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	userID := newUser(t, st, "ana@fatec.sp.gov.br")
	exp := time.Now().Add(time.Hour)

	oldID, err := st.StoreRefreshToken(ctx, userID, "old", exp)
	require.NoError(t, err)

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.RotateRefreshToken(ctx, oldID, userID, "new", exp)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Len(t, errs, racers-1)
	for _, err := range errs {
		require.ErrorIs(t, err, storage.ErrTokenNotFound)
	}

	active := 0
	for _, row := range st.RefreshTokens(userID) {
		if row.Active(time.Now()) {
			active++
		}
	}
	require.Equal(t, 1, active)
}

func TestMemoryStorage_RotateRejectsForeignRow(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	ana := newUser(t, st, "ana@fatec.sp.gov.br")
	bia := newUser(t, st, "bia@fatec.sp.gov.br")

	oldID, err := st.StoreRefreshToken(ctx, ana, "old", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = st.RotateRefreshToken(ctx, oldID, bia, "new", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, storage.ErrTokenNotFound)
	require.Empty(t, st.RefreshTokens(bia))
}

func TestMemoryStorage_PurgeExpiredRevoked(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	userID := newUser(t, st, "ana@fatec.sp.gov.br")
	now := time.Now()

	_, err := st.StoreRefreshToken(ctx, userID, "expired-revoked", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = st.RevokeAllActive(ctx, userID)
	require.NoError(t, err)
	_, err = st.StoreRefreshToken(ctx, userID, "expired-active", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = st.StoreRefreshToken(ctx, userID, "live", now.Add(time.Hour))
	require.NoError(t, err)

	n, err := st.PurgeExpiredRevoked(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows := st.RefreshTokens(userID)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotEqual(t, "expired-revoked", row.TokenHash)
	}
}

func TestMemoryStorage_DeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	userID := newUser(t, st, "ana@fatec.sp.gov.br")

	_, err := st.StoreRefreshToken(ctx, userID, "h1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, st.DeleteUser(ctx, userID))
	require.Empty(t, st.RefreshTokens(userID))

	_, err = st.GetUserByID(ctx, userID)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
	require.ErrorIs(t, st.DeleteUser(ctx, userID), storage.ErrUserNotFound)
}

func TestMemoryStorage_UpdateUser(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	anaID := newUser(t, st, "ana@fatec.sp.gov.br")
	newUser(t, st, "bruno@fatec.sp.gov.br")

	user, err := st.GetUserByID(ctx, anaID)
	require.NoError(t, err)

	user.Name = "Ana Souza"
	user.Role = models.RoleCoordinator
	require.NoError(t, st.UpdateUser(ctx, user))

	got, err := st.GetUserByID(ctx, anaID)
	require.NoError(t, err)
	require.Equal(t, "Ana Souza", got.Name)
	require.Equal(t, models.RoleCoordinator, got.Role)

	// Keeping its own email is not a conflict.
	require.NoError(t, st.UpdateUser(ctx, got))

	got.Email = "bruno@fatec.sp.gov.br"
	require.ErrorIs(t, st.UpdateUser(ctx, got), storage.ErrUserExists)

	got.ID = 999
	got.Email = "nobody@fatec.sp.gov.br"
	require.ErrorIs(t, st.UpdateUser(ctx, got), storage.ErrUserNotFound)
}
