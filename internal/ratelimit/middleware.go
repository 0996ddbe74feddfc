package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type limitExceededBody struct {
	Status string            `json:"status"`
	Data   limitExceededData `json:"data"`
}

type limitExceededData struct {
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// Middleware enforces the limiter per request. Identity is the client address
// plus a digest of the user agent, so shared NATs do not pool into one bucket.
// A nil limiter disables enforcement.
func Middleware(limiter Limiter, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			identifier := CompositeIdentifier(c.RealIP(), c.Request().UserAgent())
			result := limiter.Check(c.Request().Context(), identifier)
			if result.Allowed {
				return next(c)
			}

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.Warn().
				Str("path", c.Path()).
				Int("retry_after_seconds", retryAfter).
				Msg("rate limit exceeded")

			c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			return c.JSON(http.StatusTooManyRequests, limitExceededBody{
				Status: "fail",
				Data: limitExceededData{
					Message:           "rate limit exceeded, slow down",
					RetryAfterSeconds: retryAfter,
				},
			})
		}
	}
}
