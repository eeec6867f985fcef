package auth_test

import (
	"errors"
	"testing"
	"time"

	"booking_service/internal/auth"
	"booking_service/internal/auth/authtest"
	"booking_service/internal/models"

	"github.com/stretchr/testify/require"
)

var testUser = models.User{ID: 42, Name: "Ana", Email: "ana@example.com", Role: models.RoleCoordinator}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := authtest.NewCodec(t)

	token, exp, err := codec.IssueAccess(testUser)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(auth.DefaultAccessTTL), exp, 2*time.Second)

	claims, err := codec.VerifyAccess(token)
	require.NoError(t, err)
	require.Equal(t, testUser.ID, claims.UserID)
	require.Equal(t, testUser.Name, claims.Name)
	require.Equal(t, testUser.Email, claims.Email)
	require.Equal(t, testUser.Role, claims.Role)
	require.NotEmpty(t, claims.ID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := authtest.NewCodec(t, auth.WithRefreshTTL(72*time.Hour))

	token, exp, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(72*time.Hour), exp, 2*time.Second)

	claims, err := codec.VerifyRefresh(token)
	require.NoError(t, err)
	require.Equal(t, testUser.ID, claims.UserID)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	codec := authtest.NewCodec(t)

	a, _, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)
	b, _, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NotEqual(t, codec.Digest(a), codec.Digest(b))
}

func TestChallengeRoundTrip(t *testing.T) {
	codec := authtest.NewCodec(t)

	token, err := codec.IssueChallenge(7, "012345")
	require.NoError(t, err)

	claims, err := codec.VerifyChallenge(token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.UserID)
	require.Equal(t, "012345", claims.Code)
}

func TestTokenKindsDoNotCross(t *testing.T) {
	codec := authtest.NewCodec(t)

	access, _, err := codec.IssueAccess(testUser)
	require.NoError(t, err)
	refresh, _, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)
	challenge, err := codec.IssueChallenge(testUser.ID, "123456")
	require.NoError(t, err)

	_, err = codec.VerifyAccess(refresh)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = codec.VerifyRefresh(access)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = codec.VerifyAccess(challenge)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = codec.VerifyChallenge(access)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestExpiredTokens(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	issuer := authtest.NewCodec(t, auth.WithClock(func() time.Time { return past }))
	verifier := authtest.NewCodec(t)

	access, _, err := issuer.IssueAccess(testUser)
	require.NoError(t, err)
	_, err = verifier.VerifyAccess(access)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	challenge, err := issuer.IssueChallenge(testUser.ID, "123456")
	require.NoError(t, err)
	_, err = verifier.VerifyChallenge(challenge)
	require.ErrorIs(t, err, auth.ErrTokenExpired)

	refresh, _, err := authtest.NewCodec(t, auth.WithClock(func() time.Time { return past.Add(-8 * 24 * time.Hour) })).IssueRefresh(testUser)
	require.NoError(t, err)
	_, err = verifier.VerifyRefresh(refresh)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestMalformedTokens(t *testing.T) {
	codec := authtest.NewCodec(t)

	for _, tok := range []string{"", "   ", "abc", "a.b.c"} {
		_, err := codec.VerifyAccess(tok)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
		require.False(t, errors.Is(err, auth.ErrTokenExpired))
	}

	access, _, err := codec.IssueAccess(testUser)
	require.NoError(t, err)
	tampered := access[:len(access)-4] + "AAAA"
	if tampered == access {
		tampered = access[:len(access)-4] + "BBBB"
	}
	_, err = codec.VerifyAccess(tampered)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestDigest(t *testing.T) {
	codec := authtest.NewCodec(t)

	require.Equal(t, codec.Digest("token"), codec.Digest("token"))
	require.NotEqual(t, codec.Digest("token"), codec.Digest("token2"))
	require.Len(t, codec.Digest("token"), 64)
	require.NotContains(t, codec.Digest("token"), "token")
}

func TestNewTokenCodecRejectsBadKeys(t *testing.T) {
	keys := authtest.Keys(t)

	bad := keys
	bad.PrivateKeyPEM = "not a key"
	_, err := auth.NewTokenCodec(bad)
	require.Error(t, err)

	same := keys
	same.HashSecret = same.RefreshSecret
	_, err = auth.NewTokenCodec(same)
	require.Error(t, err)

	missing := keys
	missing.HashSecret = ""
	_, err = auth.NewTokenCodec(missing)
	require.Error(t, err)
}
