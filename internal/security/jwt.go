package security

import (
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/parley-chat/server/internal/domain"
)

// TokenSigner issues and validates HS256 access tokens with sub=userID.
type TokenSigner struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

func NewTokenSigner(secret []byte, issuer string, ttl, clockSkew time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:    secret,
		issuer:    issuer,
		ttl:       ttl,
		clockSkew: clockSkew,
	}
}

func (s *TokenSigner) TTL() time.Duration { return s.ttl }

type AccessClaims struct {
	jwt.StandardClaims
}

// Valid skips the library's zero-leeway time checks. ParseAndValidate
// verifies exp and nbf itself with the configured clock skew.
func (c *AccessClaims) Valid() error { return nil }

func (s *TokenSigner) Sign(userID string, now time.Time) (string, error) {
	claims := &AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  now.Unix(),
			NotBefore: now.Add(-s.clockSkew).Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

// ParseAndValidate checks signature, issuer and time claims (with clockSkew
// tolerance) and returns the subject user id.
func (s *TokenSigner) ParseAndValidate(tokenStr string) (string, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, domain.ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return "", domain.ErrInvalidToken
	}
	if !token.Valid {
		return "", domain.ErrInvalidToken
	}

	if !claims.VerifyIssuer(s.issuer, true) {
		return "", domain.ErrInvalidToken
	}

	now := time.Now()
	nbf := time.Unix(claims.NotBefore, 0).Add(-s.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(s.clockSkew)
	if now.Before(nbf) || now.After(exp) {
		return "", domain.ErrSessionExpired
	}

	if claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}

	return claims.Subject, nil
}
