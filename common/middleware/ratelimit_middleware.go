package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/common/ratelimit"
)

// CallerFunc returns the caller identity for a request, or "" if unknown
type CallerFunc func(c echo.Context) string

// CallerRateLimitMiddleware limits one action per caller.
// Requests without a caller pass through; the handler rejects them.
// Limiter errors fail open so a Redis outage never blocks the registry.
func CallerRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, cfg ratelimit.ActionConfig, callerOf CallerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := callerOf(c)
			if caller == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckCallerLimit(c.Request().Context(), caller, cfg)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "caller_rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"caller":              caller,
						"action":              cfg.Action,
						"limit":               result.Limit,
						"window_seconds":      cfg.WindowSeconds,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
