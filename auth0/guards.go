package auth0

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func forbidden(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, map[string]any{
		"success": false,
		"error":   message,
		"code":    "FORBIDDEN",
	})
}

// RequirePermission rejects requests whose token lacks the given permission.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := FromContext(c)
			if claims == nil || !claims.HasPermission(perm) {
				return forbidden(c, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireRole rejects requests whose token lacks the given role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := FromContext(c)
			if claims == nil || !claims.HasRole(role) {
				return forbidden(c, "insufficient role")
			}
			return next(c)
		}
	}
}

// RequireAnyRole rejects requests whose token carries none of the given roles.
func RequireAnyRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := FromContext(c)
			if claims != nil {
				for _, role := range roles {
					if claims.HasRole(role) {
						return next(c)
					}
				}
			}
			return forbidden(c, "insufficient role")
		}
	}
}
