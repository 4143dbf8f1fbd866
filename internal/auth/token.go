package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// clockSkew tolerates small drift between the issuer and this service.
const clockSkew = 30 * time.Second

// TokenManager issues and validates operator JWTs.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithIssuer stamps issued tokens with iss and rejects tokens from any other issuer.
func WithIssuer(iss string) TokenOption {
	return func(tm *TokenManager) { tm.issuer = iss }
}

// NewTokenManager builds a new manager. A non-positive ttl defaults to one hour.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	tm := &TokenManager{secret: []byte(secret), ttl: ttl}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Claims describes JWT payload.
type Claims struct {
	Name string           `json:"name,omitempty"`
	Role domain.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the operator.
func (tm *TokenManager) GenerateToken(subjectID, name string, role domain.StaffRole) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    tm.issuer,
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
	parserOpts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
	}
	if tm.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
