package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(&config.Config{
		JWTSecret:        "test-secret-with-enough-length",
		JWTExpiry:        15 * time.Minute,
		JWTRefreshWindow: time.Hour,
		AdminTeamID:      "admins",
	}, testutil.SetupTestDB(t))
}

func TestAuthIssueAndValidate(t *testing.T) {
	auth := newTestAuth(t)

	tok, err := auth.IssueToken("user-1", "u1@example.com", "User One")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	claims, err := auth.ValidateToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "u1@example.com", claims.Email)

	_, err = auth.IssueToken(" ", "", "")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	auth := newTestAuth(t)
	tok, err := auth.IssueToken("user-1", "", "")
	require.NoError(t, err)

	other := newTestAuth(t)
	other.secret = []byte("another-secret")

	_, err = other.ValidateToken(tok.Token)
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = auth.ValidateToken("")
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = auth.ValidateToken("not.a.token")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthExpiryAndRefresh(t *testing.T) {
	auth := newTestAuth(t)
	issued := time.Now().Add(-30 * time.Minute)
	auth.now = func() time.Time { return issued }

	tok, err := auth.IssueToken("user-1", "", "")
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ValidateToken(tok.Token)
	requireStatus(t, err, http.StatusUnauthorized)

	refreshed, err := auth.Refresh(tok.Token)
	require.NoError(t, err, "expired 15 minutes ago, inside the refresh window")
	claims, err := auth.ValidateToken(refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)

	auth.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = auth.Refresh(tok.Token)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthMemberships(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	admin, err := auth.IsAdmin(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, admin)

	require.NoError(t, auth.GrantMembership(ctx, "admins", "user-1", "owner"))
	require.NoError(t, auth.GrantMembership(ctx, "admins", "user-1"), "granting twice is a no-op")
	require.NoError(t, auth.GrantMembership(ctx, "editors", "user-1"))

	admin, err = auth.IsAdmin(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, admin)

	tok, err := auth.IssueToken("user-1", "", "")
	require.NoError(t, err)
	claims, err := auth.ValidateToken(tok.Token)
	require.NoError(t, err)

	me, err := auth.Me(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, []string{"admins", "editors"}, me.Teams)
	assert.Equal(t, []string{"owner"}, me.Roles, "roles of the first grant are kept")
	assert.True(t, me.IsAdmin)
}
