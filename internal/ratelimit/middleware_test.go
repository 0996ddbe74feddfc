package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type stubLimiter struct {
	result Result
	lastID string
}

func (s *stubLimiter) Check(_ context.Context, identifier string) Result {
	s.lastID = identifier
	return s.result
}

func (s *stubLimiter) Allow(ctx context.Context, identifier string) bool {
	return s.Check(ctx, identifier).Allowed
}

func (s *stubLimiter) Reset(context.Context, string) error {
	return nil
}

func invokeMiddleware(t *testing.T, limiter Limiter, userAgent string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil)
	req.RemoteAddr = "192.0.2.1:52000"
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(limiter, zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec
}

func TestMiddleware_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{result: Result{Allowed: true, Remaining: 4}}
	rec := invokeMiddleware(t, limiter, "curl/8.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_DeniedRequestGets429(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{result: Result{Allowed: false, RetryAfter: 90 * time.Second}}
	rec := invokeMiddleware(t, limiter, "curl/8.5")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("Retry-After = %q, want 90", got)
	}

	var body limitExceededBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "fail" {
		t.Fatalf("status field = %q, want fail", body.Status)
	}
	if body.Data.RetryAfterSeconds != 90 {
		t.Fatalf("retry_after_seconds = %d, want 90", body.Data.RetryAfterSeconds)
	}
}

func TestMiddleware_IdentityCombinesAddressAndAgent(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{result: Result{Allowed: true}}
	invokeMiddleware(t, limiter, "Mozilla/5.0")

	want := CompositeIdentifier("192.0.2.1", "Mozilla/5.0")
	if limiter.lastID != want {
		t.Fatalf("identifier = %q, want %q", limiter.lastID, want)
	}
}

func TestMiddleware_NilLimiterPassesThrough(t *testing.T) {
	t.Parallel()

	rec := invokeMiddleware(t, nil, "curl/8.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
