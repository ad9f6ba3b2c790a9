package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong horse"), ErrPasswordMismatch)
	assert.Error(t, CheckPassword("not-a-hash", "correct horse"))
}

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := NewTokenIssuer("secret", clock)
	user := &storage.User{ID: 42, Role: storage.RoleOrganization}

	token, expiresAt, err := issuer.Issue(user, 12*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(12*time.Hour), expiresAt)

	t.Run("valid", func(t *testing.T) {
		claims, err := issuer.Parse(token)
		require.NoError(t, err)
		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.Equal(t, storage.RoleOrganization, claims.Role)
		assert.NotEmpty(t, claims.SessionID())
		assert.Equal(t, expiresAt, claims.ExpiresAtTime())
	})

	t.Run("every token gets its own session id", func(t *testing.T) {
		other, _, err := issuer.Issue(user, 12*time.Hour)
		require.NoError(t, err)
		first, err := issuer.Parse(token)
		require.NoError(t, err)
		second, err := issuer.Parse(other)
		require.NoError(t, err)
		assert.NotEqual(t, first.SessionID(), second.SessionID())
	})

	t.Run("token without session id rejected", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "foodtrack",
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Role: storage.RoleDonor,
		}
		unnamed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = issuer.Parse(unnamed)
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated, "invalid_token"))
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer("secret", func() time.Time { return now.Add(13 * time.Hour) })
		_, err := later.Parse(token)
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated, "token_expired"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenIssuer("other", clock).Parse(token)
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated, "invalid_token"))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := issuer.Parse("")
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated, "missing_token"))
	})

	t.Run("unsigned algorithm rejected", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "foodtrack",
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Role: storage.RoleDonor,
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Parse(forged)
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated, "invalid_token"))
	})
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), lifecycle.SystemActor{})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.IsType(t, lifecycle.SystemActor{}, actor)
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "sid", Subject: "3"}}
	got, ok := SessionFromContext(WithSession(context.Background(), claims))
	require.True(t, ok)
	assert.Equal(t, "sid", got.SessionID())
}
