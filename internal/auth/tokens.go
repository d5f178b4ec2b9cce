// Package auth issues and verifies the admin session tokens that gate SOP
// editing.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer    = "sop-assistant"
	adminRole = "admin"
	jtiPrefix = "admin:jti:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked or expired")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Token is a freshly issued admin session.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	ID        string    `json:"-"`
}

// TokenIssuer signs HS256 admin tokens. With a Redis client attached, each
// token id is recorded so it can be revoked before it expires.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithRevocation enables server-side revocation backed by rdb.
func (t *TokenIssuer) WithRevocation(rdb *redis.Client) *TokenIssuer {
	t.rdb = rdb
	return t
}

func (t *TokenIssuer) Issue(ctx context.Context, subject string) (*Token, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	jti := uuid.NewString()

	claims := Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, err
	}

	if t.rdb != nil {
		if err := t.rdb.Set(ctx, jtiPrefix+jti, subject, t.ttl).Err(); err != nil {
			return nil, fmt.Errorf("record token: %w", err)
		}
	}
	return &Token{Token: signed, ExpiresAt: exp, ID: jti}, nil
}

func (t *TokenIssuer) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || claims.Role != adminRole {
		return nil, ErrInvalidToken
	}

	if t.rdb != nil {
		exists, err := t.rdb.Exists(ctx, jtiPrefix+claims.ID).Result()
		if err != nil {
			return nil, fmt.Errorf("check token: %w", err)
		}
		if exists != 1 {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke drops a token id. It is a no-op without revocation enabled.
func (t *TokenIssuer) Revoke(ctx context.Context, jti string) error {
	if t.rdb == nil {
		return nil
	}
	return t.rdb.Del(ctx, jtiPrefix+jti).Err()
}
