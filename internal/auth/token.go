package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/occurrence-client/internal/domain"
)

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes the JWT payload.
type Claims struct {
	SubjectType domain.SubjectType `json:"subject_type"`
	Name        string             `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for identity.
func (tm *TokenManager) GenerateToken(identity domain.Identity, name string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		SubjectType: identity.SubjectType(),
		Name:        name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// TokenInfo is what a client can learn from a bearer token without the key.
type TokenInfo struct {
	Subject     string
	SubjectType domain.SubjectType
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the token carried an expiry that has passed.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Inspect decodes a token's claims WITHOUT verifying the signature. The
// backend's tokens are opaque to the client; this is for display only.
func Inspect(tokenStr string) (TokenInfo, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return TokenInfo{}, err
	}
	info := TokenInfo{SubjectType: claims.SubjectType}
	info.Subject, _ = claims.GetSubject()
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
