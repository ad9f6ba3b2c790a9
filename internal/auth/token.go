package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

const issuer = "foodtrack"

// Claims identify the user behind a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role storage.Role `json:"role"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// SessionID is the token id; logout revokes it.
func (c *Claims) SessionID() string {
	return c.ID
}

// ExpiresAtTime is the zero time when the token carries no expiry.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), now: now}
}

func (i *TokenIssuer) Issue(user *storage.User, ttl time.Duration) (string, time.Time, error) {
	issuedAt := i.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("missing_token", "authentication required")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.Unauthenticated("token_expired", "session expired, log in again")
	case err != nil:
		return nil, apperr.Unauthenticated("invalid_token", "invalid session token")
	}
	if !claims.Role.Valid() {
		return nil, apperr.Unauthenticated("invalid_token", "invalid session token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperr.Unauthenticated("invalid_token", "invalid session token")
	}
	if claims.SessionID() == "" {
		return nil, apperr.Unauthenticated("invalid_token", "invalid session token")
	}
	return &claims, nil
}
