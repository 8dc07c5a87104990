package bizengine

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var startedAt = time.Now()

// handleHealth reports process liveness and database reachability.
func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		a.Log.Error("health check failed", zap.Error(err))
		return respondError(c, http.StatusServiceUnavailable, codeUnavailable, "database unreachable")
	}
	return respondData(c, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(startedAt).Round(time.Second).String(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleIndex lists the API surface for anyone poking at the root URL.
func (a *App) handleIndex(c echo.Context) error {
	return respondData(c, http.StatusOK, map[string]any{
		"name": a.Config.Server.Name,
		"endpoints": map[string]string{
			"health":     "/api/health",
			"posts":      "/api/blog/posts",
			"post":       "/api/blog/posts/:slug",
			"categories": "/api/blog/categories",
			"related":    "/api/blog/posts/:slug/related",
			"contact":    "/api/contact",
			"upload":     "/api/upload/image",
			"feed":       "/feed.xml",
			"sitemap":    "/sitemap.xml",
		},
	})
}
