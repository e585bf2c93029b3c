package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the only token type the API accepts.
const TokenTypeAccess = "access"

var (
	// ErrInvalidToken covers bad signatures, expiry, wrong issuer and
	// malformed claims.
	ErrInvalidToken = errors.New("invalid token")
	errNoSecret     = errors.New("token secret not configured")
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	Secret string
	Issuer string
	TTL    time.Duration

	now func() time.Time
}

// NewTokens creates a token issuer/verifier.
func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{Secret: secret, Issuer: issuer, TTL: ttl, now: time.Now}
}

func (t *Tokens) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Issue signs a new access token for userID. It returns the encoded token
// and its claims.
func (t *Tokens) Issue(userID, email string) (string, *Claims, error) {
	if t.Secret == "" {
		return "", nil, errNoSecret
	}

	now := t.clock()
	claims := &Claims{
		Email: email,
		Type:  TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.Issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses raw and checks signature, expiry, issuer and token type.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	if t.Secret == "" {
		return nil, errNoSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock),
	}
	if t.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(t.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", ErrInvalidToken)
	}
	if claims.Type != TokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}
