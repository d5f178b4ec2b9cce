package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	tok, err := issuer.Issue(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if strings.Count(tok.Token, ".") != 2 || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("unexpected token %+v", tok)
	}

	claims, err := issuer.Verify(context.Background(), tok.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)
	other, _ := NewTokenIssuer(strings.Repeat("x", 32), time.Hour)
	foreign, _ := other.Issue(context.Background(), "admin")

	expiredIssuer, _ := NewTokenIssuer(testSecret, time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue(context.Background(), "admin")

	for name, token := range map[string]string{
		"garbage": "not.a.token",
		"foreign": foreign.Token,
		"expired": expired.Token,
		"empty":   "",
	} {
		if _, err := issuer.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestShortSecretRejected(t *testing.T) {
	if _, err := NewTokenIssuer("short", time.Hour); err == nil {
		t.Fatalf("expected error for a short secret")
	}
}

func TestRevocation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)
	issuer.WithRevocation(rdb)

	tok, err := issuer.Issue(ctx, "admin")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if ttl := mr.TTL(jtiPrefix + tok.ID); ttl != time.Hour {
		t.Fatalf("expected jti TTL of 1h, got %v", ttl)
	}
	if _, err := issuer.Verify(ctx, tok.Token); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if err := issuer.Revoke(ctx, tok.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := issuer.Verify(ctx, tok.Token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestPassphrase(t *testing.T) {
	p, err := NewPassphrase("open sesame", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPassphrase failed: %v", err)
	}
	if !p.Matches("open sesame") {
		t.Fatalf("expected passphrase to match")
	}
	if p.Matches("open sesame ") || p.Matches("") {
		t.Fatalf("unexpected match")
	}
	if _, err := NewPassphrase("", bcrypt.MinCost); err == nil {
		t.Fatalf("expected error for an empty passphrase")
	}
}
