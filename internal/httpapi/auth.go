package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"groundwire/internal/auth"
)

const adminKeyHeader = "X-Admin-Key"

// requireAdminKey gates operator endpoints behind a shared key. The plaintext
// key arrives in the X-Admin-Key header and is checked against the configured
// bcrypt hash. With no hash configured the endpoints stay disabled.
func (s *Server) requireAdminKey() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c == nil {
				return unauthorizedResponse(c)
			}

			hash := strings.TrimSpace(s.opts.AdminKeyHash)
			if hash == "" {
				return fail(c, http.StatusForbidden, "Admin endpoints are disabled", nil)
			}

			key := strings.TrimSpace(c.Request().Header.Get(adminKeyHeader))
			if key == "" {
				return unauthorizedResponse(c)
			}

			if !auth.VerifyKey(key, hash) {
				s.logger.Warn().
					Str("path", c.Path()).
					Str("remote_ip", c.RealIP()).
					Msg("admin key rejected")
				return unauthorizedResponse(c)
			}

			return next(c)
		}
	}
}

func unauthorizedResponse(c echo.Context) error {
	if c == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	return fail(c, http.StatusUnauthorized, "Authentication required", nil)
}
