package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/models"
)

// ErrMissingCaller is returned when a route needs a caller and none was sent
var ErrMissingCaller = errors.New("caller identity is required")

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// CallerKey is the context key for the caller identity
	CallerKey ContextKey = "caller"

	// DefaultIdentityHeader carries the caller identity when none is configured
	DefaultIdentityHeader = "X-Caller-ID"
)

// ExtractCaller reads the identity header into the request context.
// Missing identities are left unset; GetOwner and GetAsset need none.
//
// The header is trusted as-is: the registry must sit behind a transport
// that authenticates callers and sets it.
func ExtractCaller(header string) echo.MiddlewareFunc {
	if header == "" {
		header = DefaultIdentityHeader
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if caller := c.Request().Header.Get(header); caller != "" {
				c.Set(string(CallerKey), models.Principal(caller))
			}
			return next(c)
		}
	}
}

// GetCaller retrieves the caller from the request context.
// Returns the anonymous principal if not set.
func GetCaller(c echo.Context) models.Principal {
	caller, _ := c.Get(string(CallerKey)).(models.Principal)
	return caller
}

// CallerString adapts GetCaller for the shared rate limit middleware
func CallerString(c echo.Context) string {
	return GetCaller(c).String()
}

// RequireCaller ensures a caller exists in context
func RequireCaller(c echo.Context) (models.Principal, error) {
	caller := GetCaller(c)
	if caller.IsAnonymous() {
		return "", ErrMissingCaller
	}
	return caller, nil
}
