package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"groundwire/internal/auth"
)

func newAdminContext(key string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	if key != "" {
		req.Header.Set(adminKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func adminProbeHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}

func TestRequireAdminKey_DisabledWithoutConfiguredHash(t *testing.T) {
	t.Parallel()

	server := &Server{logger: zerolog.Nop()}

	called := false
	c, rec := newAdminContext("whatever")
	if err := server.requireAdminKey()(adminProbeHandler(&called))(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusForbidden)
	}
	if called {
		t.Fatalf("handler must not run when admin endpoints are disabled")
	}
}

func TestRequireAdminKey_MissingHeaderUnauthorized(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("operator-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	server := &Server{logger: zerolog.Nop(), opts: Options{AdminKeyHash: hash}}

	called := false
	c, rec := newAdminContext("")
	if err := server.requireAdminKey()(adminProbeHandler(&called))(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Fatalf("handler must not run without a key")
	}
}

func TestRequireAdminKey_WrongKeyUnauthorized(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("operator-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	server := &Server{logger: zerolog.Nop(), opts: Options{AdminKeyHash: hash}}

	called := false
	c, rec := newAdminContext("guessed-key")
	if err := server.requireAdminKey()(adminProbeHandler(&called))(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Fatalf("handler must not run with a wrong key")
	}
}

func TestRequireAdminKey_ValidKeyPassesThrough(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("operator-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	server := &Server{logger: zerolog.Nop(), opts: Options{AdminKeyHash: hash}}

	called := false
	c, rec := newAdminContext("operator-key")
	if err := server.requireAdminKey()(adminProbeHandler(&called))(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
	if !called {
		t.Fatalf("expected handler to run with a valid key")
	}
}
