package bizengine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Stable machine-readable error codes exposed in the JSON envelope.
const (
	codeValidation    = "VALIDATION_ERROR"
	codeSlugConflict  = "SLUG_ALREADY_EXISTS"
	codePostNotFound  = "POST_NOT_FOUND"
	codeNotFound      = "NOT_FOUND"
	codeRateLimited   = "RATE_LIMIT_EXCEEDED"
	codeEmailService  = "EMAIL_SERVICE_ERROR"
	codeUnavailable   = "SERVICE_UNAVAILABLE"
	codeInternalError = "INTERNAL_SERVER_ERROR"
)

// respondData writes the success envelope around data.
func respondData(c echo.Context, status int, data any) error {
	return c.JSON(status, map[string]any{
		"success": true,
		"data":    data,
	})
}

// respondMessage writes a success envelope carrying a human-readable message
// and optional data.
func respondMessage(c echo.Context, status int, message string, data any) error {
	body := map[string]any{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

// respondError writes the failure envelope with a stable code.
func respondError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// respondValidation writes a validation failure with field-level detail.
func respondValidation(c echo.Context, fields map[string]string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   "validation failed",
		"code":    codeValidation,
		"details": fields,
	})
}

// blogError maps service/store error kinds onto HTTP responses. Callers are
// responsible for distinguishing conflict from generic failure so clients
// can offer "try a different title" instead of a generic error.
func blogError(c echo.Context, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return respondValidation(c, ve.Fields)
	case errors.Is(err, ErrConflict):
		return respondError(c, http.StatusConflict, codeSlugConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return respondError(c, http.StatusNotFound, codePostNotFound, "post not found")
	default:
		return err
	}
}

// httpErrorHandler is the backstop for errors no handler mapped: framework
// 404s/405s, the rate limiter's 429, and anything unexpected.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound:
			_ = respondError(c, he.Code, codeNotFound, "resource not found")
		case http.StatusTooManyRequests:
			_ = respondError(c, he.Code, codeRateLimited, "too many requests from this IP, try again later")
		default:
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			code := strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
			_ = respondError(c, he.Code, code, msg)
		}
		return
	}
	a.Log.Error("unhandled error",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err))
	_ = respondError(c, http.StatusInternalServerError, codeInternalError, "internal server error")
}
