package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens.  It travels in
// the "type" claim so a refresh token can never be presented as an access
// token and vice versa.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// ErrInvalidToken is returned for any token that fails parsing, signature,
// expiry or kind checks.  Callers do not need the underlying reason.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of every token issued by the service.  The
// registered ID claim (jti) is a fresh UUID per issuance and is the key used
// by the denylist.
type Claims struct {
	Type TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token together with the identifiers callers need
// to report or revoke it.
type IssuedToken struct {
	Token string    // the serialized JWT string
	JTI   string    // unique token identifier
	Exp   time.Time // the UTC expiration time, second precision
}

// NewToken builds and signs an HS256 JWT for userID.  The expiry is
// truncated to whole seconds so Exp matches the exp claim exactly.
func NewToken(secret, userID string, kind TokenKind, ttl time.Duration) (IssuedToken, error) {
	if secret == "" || userID == "" {
		return IssuedToken{}, errors.New("secret and user id are required to sign a token")
	}
	now := time.Now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return IssuedToken{Token: signed, JTI: jti, Exp: exp}, nil
}

// ParseToken verifies signature, algorithm and expiry of raw and checks that
// it is a token of the expected kind carrying a subject and a jti.
func ParseToken(secret, raw string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Type)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalidToken)
	}
	return claims, nil
}

// ExpiresAtTime returns the exp claim as a time.Time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
