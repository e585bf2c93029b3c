package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-valid-access-token-secret-32-chars"

func TestTokensIssueAndVerify(t *testing.T) {
	tokens := NewTokens(testSecret, "chatpulse", 5*time.Minute)

	raw, issued, err := tokens.Issue("user-123", "test@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "chatpulse", claims.Issuer)
	assert.Equal(t, issued.ID, claims.ID)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokensUniqueIDs(t *testing.T) {
	tokens := NewTokens(testSecret, "chatpulse", time.Minute)
	_, a, err := tokens.Issue("u", "u@example.com")
	require.NoError(t, err)
	_, b, err := tokens.Issue("u", "u@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokensVerifyRejects(t *testing.T) {
	tokens := NewTokens(testSecret, "chatpulse", 5*time.Minute)
	good, _, err := tokens.Issue("user-123", "test@example.com")
	require.NoError(t, err)

	expired := NewTokens(testSecret, "chatpulse", -time.Minute)
	expiredRaw, _, err := expired.Issue("user-123", "test@example.com")
	require.NoError(t, err)

	otherIssuer := NewTokens(testSecret, "someone-else", time.Minute)
	otherIssuerRaw, _, err := otherIssuer.Issue("user-123", "test@example.com")
	require.NoError(t, err)

	wrongSecret := NewTokens("wrong-secret-that-should-fail-validation", "chatpulse", time.Minute)
	wrongSecretRaw, _, err := wrongSecret.Issue("user-123", "test@example.com")
	require.NoError(t, err)

	refresh := &Claims{
		Email: "test@example.com",
		Type:  "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chatpulse",
			Subject:   "user-123",
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	refreshRaw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noneRaw, err := jwt.NewWithClaims(jwt.SigningMethodNone, refresh).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        expiredRaw,
		"wrong issuer":   otherIssuerRaw,
		"wrong secret":   wrongSecretRaw,
		"refresh type":   refreshRaw,
		"none algorithm": noneRaw,
		"garbage":        "not-a-jwt",
		"truncated":      good[:len(good)-4],
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(raw)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestTokensUseClock(t *testing.T) {
	issuedAt := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	tokens := NewTokens(testSecret, "chatpulse", time.Hour)
	tokens.now = func() time.Time { return issuedAt }

	raw, claims, err := tokens.Issue("u", "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), claims.ExpiresAt.Time)

	tokens.now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	_, err = tokens.Verify(raw)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issuedAt.Add(61 * time.Minute) }
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRequireSecret(t *testing.T) {
	tokens := NewTokens("", "chatpulse", time.Minute)
	_, _, err := tokens.Issue("u", "u@example.com")
	assert.Error(t, err)
	_, err = tokens.Verify("anything")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	ok, err := CheckPassword(hash, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-bcrypt-hash", "s3cret")
	assert.Error(t, err)
}
