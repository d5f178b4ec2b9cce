package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sop-assistant/internal/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := perform(r, http.MethodGet, "/", "", map[string]string{RequestIDHeader: "abc"})
	if w.Body.String() != "abc" || w.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("incoming request id should be kept, got %q", w.Body.String())
	}

	w = perform(r, http.MethodGet, "/", "", nil)
	if len(w.Body.String()) != 36 {
		t.Fatalf("expected a generated uuid, got %q", w.Body.String())
	}
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := perform(r, http.MethodPost, "/", "0123456789", nil); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if w := perform(r, http.MethodPost, "/", "0123", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := gin.New()
	r.Use(RateLimitMiddleware(rdb, 2, 60))
	r.GET("/api/sop/current", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if w := perform(r, http.MethodGet, "/api/sop/current", "", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := perform(r, http.MethodGet, "/api/sop/current", "", nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	mr.FastForward(61 * time.Second)
	if w := perform(r, http.MethodGet, "/api/sop/current", "", nil); w.Code != http.StatusOK {
		t.Fatalf("window should reset, got %d", w.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	r := gin.New()
	r.Use(RateLimitMiddleware(rdb, 1, 60))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		if w := perform(r, http.MethodGet, "/x", "", nil); w.Code != http.StatusOK {
			t.Fatalf("expected fail-open 200, got %d", w.Code)
		}
	}
}

type stubVerifier struct{ err error }

func (s stubVerifier) Verify(_ context.Context, token string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	claims := &auth.Claims{Role: "admin"}
	claims.Subject = token
	return claims, nil
}

func TestAdminRequired(t *testing.T) {
	build := func(v TokenVerifier) *gin.Engine {
		r := gin.New()
		r.GET("/admin", AdminRequired(v), func(c *gin.Context) {
			c.String(http.StatusOK, GetAdminClaims(c).Subject)
		})
		return r
	}

	ok := build(stubVerifier{})
	if w := perform(ok, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer tok"}); w.Code != http.StatusOK || w.Body.String() != "tok" {
		t.Fatalf("expected 200 with claims, got %d %q", w.Code, w.Body.String())
	}
	if w := perform(ok, http.MethodGet, "/admin", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}

	bad := build(stubVerifier{err: auth.ErrInvalidToken})
	if w := perform(bad, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer tok"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401, got %d", w.Code)
	}

	broken := build(stubVerifier{err: errors.New("redis down")})
	if w := perform(broken, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer tok"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("verifier error: expected 401, got %d", w.Code)
	}

	disabled := build(nil)
	if w := perform(disabled, http.MethodGet, "/admin", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled admin: expected 503, got %d", w.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"Bearer":     "",
		"":           "",
		"Bearer a b": "",
	}
	for header, want := range cases {
		if got := ExtractBearerToken(header); got != want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestRedactBody(t *testing.T) {
	got := RedactBody([]byte(`{"base64Data":"data:application/pdf;base64,AAAA","mimeType":"application/pdf","history":[]}`))
	if strings.Contains(got, "AAAA") || !strings.Contains(got, `"mimeType":"application/pdf"`) {
		t.Fatalf("unexpected redaction: %s", got)
	}
	if !strings.Contains(got, `"history":"[REDACTED 2 bytes]"`) {
		t.Fatalf("history should be redacted: %s", got)
	}
	if got := RedactBody([]byte("not json")); got != "[body 8 bytes]" {
		t.Fatalf("unexpected summary: %s", got)
	}
}

func TestRequestLoggerKeepsBody(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(true))
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, body)
	})
	w := perform(r, http.MethodPost, "/echo", `{"userInput":"hi"}`, map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "hi") {
		t.Fatalf("body should still be readable downstream, got %d %s", w.Code, w.Body.String())
	}
}
