package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/middleware"
	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/common/logger"
)

// errorStatus maps registry errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, middleware.ErrMissingCaller):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUploaderMismatch),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnableToDelete),
		errors.Is(err, models.ErrIDConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnableToUpdate),
		errors.Is(err, models.ErrInvalidFilter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for err: the bare kind, never the
// wrapped cause, except for request errors the caller can fix
func errorMessage(err error) string {
	kinds := []error{
		middleware.ErrMissingCaller,
		models.ErrUploaderMismatch,
		models.ErrNotFound,
		models.ErrUnauthorized,
		models.ErrUnableToDelete,
		models.ErrIDConflict,
		models.ErrCounterMissing,
		models.ErrCounterInvalid,
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}

	if errors.Is(err, models.ErrUnableToUpdate) || errors.Is(err, models.ErrInvalidFilter) {
		return err.Error()
	}
	return "internal server error"
}

// respondError writes {"error": message}; server faults are logged
func respondError(c echo.Context, log *logger.Logger, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request().Context()).Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	return c.JSON(status, map[string]interface{}{
		"error": errorMessage(err),
	})
}
