// Package bizengine is a backend for a small business website built with Go,
// Echo, and SQLite. It provides a blog content API, a contact form relay over
// SMTP, image uploads proxied to ImgBB, and Auth0-protected administration.
package bizengine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/bizengine/auth0"
	"github.com/eringen/bizengine/mailer"
	"github.com/eringen/bizengine/upload"
)

// App wires together the store, services, handlers, and middleware.
type App struct {
	Config     Config
	Echo       *echo.Echo
	Store      *Store
	Blog       *BlogService
	Categories *CategoryCache
	Mailer     *mailer.Dispatcher
	Log        *zap.Logger

	ContactLimiter *ContactLimiter
	verifier       *auth0.Verifier
	management     *auth0.Management
	uploads        *upload.Handler
}

// New creates an App from configuration. The logger is shared across all
// services.
func New(cfg Config, log *zap.Logger) *App {
	return &App{
		Config: cfg,
		Echo:   echo.New(),
		Log:    log,
	}
}

// Start initializes all services and runs the HTTP server until it stops.
func (a *App) Start(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("bizengine: config: %w", err)
	}

	store, err := NewStore(a.Config.Database.Path)
	if err != nil {
		return fmt.Errorf("bizengine: init store: %w", err)
	}
	a.Store = store

	a.Blog = NewBlogService(store, a.Log)
	a.Categories = NewCategoryCache(store, 5*time.Minute)
	a.ContactLimiter = NewContactLimiter(a.Config.RateLimit.ContactMax, a.Config.RateLimit.ContactWindow)

	transport := mailer.NewSMTPTransport(mailer.Config{
		Host:     a.Config.SMTP.Host,
		Port:     a.Config.SMTP.Port,
		User:     a.Config.SMTP.User,
		Pass:     a.Config.SMTP.Pass,
		From:     a.Config.SMTP.From,
		FromName: a.Config.SMTP.FromName,
	}, a.Log)
	a.Mailer = mailer.NewDispatcher(transport, a.Config.SMTP.To, a.Config.Server.Name, a.Log)

	authCfg := auth0.Config{
		Domain:       a.Config.Auth0.Domain,
		Audience:     a.Config.Auth0.Audience,
		ClientID:     a.Config.Auth0.ClientID,
		ClientSecret: a.Config.Auth0.ClientSecret,
		RolesClaim:   a.Config.Auth0.RolesClaim,
	}
	verifier, err := auth0.NewVerifier(ctx, authCfg, a.Log)
	if err != nil {
		return fmt.Errorf("bizengine: init auth: %w", err)
	}
	a.verifier = verifier
	a.management = auth0.NewManagement(authCfg, a.Log)

	a.uploads = upload.NewHandler(
		upload.NewImgBBClient(a.Config.ImgBB.APIKey, a.Config.ImgBB.Endpoint),
		a.Log)

	a.setupMiddleware()
	a.setupRoutes()

	a.Log.Info("server starting",
		zap.String("addr", a.Config.Server.Addr),
		zap.String("database", a.Config.Database.Path))
	if err := a.Echo.Start(a.Config.Server.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/", a.handleIndex)
	e.GET("/api/health", a.handleHealth)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)

	requireAuth := a.verifier.Middleware()

	blog := e.Group("/api/blog")
	blog.GET("/posts", a.handleListPosts)
	blog.GET("/posts/:slug", a.handleGetPost)
	blog.GET("/posts/:slug/related", a.handleRelatedPosts)
	blog.POST("/posts/:slug/views", a.handleIncrementViews)
	blog.GET("/categories", a.handleCategories)
	blog.POST("/posts", a.handleCreatePost, requireAuth, auth0.RequirePermission("create:posts"))
	blog.PUT("/posts/:slug", a.handleUpdatePost, requireAuth, auth0.RequirePermission("edit:posts"))
	blog.DELETE("/posts/:slug", a.handleDeletePost, requireAuth, auth0.RequirePermission("delete:posts"))
	blog.GET("/admin/posts", a.handleAdminListPosts, requireAuth, auth0.RequirePermission("read:posts"))

	contact := e.Group("/api/contact")
	contact.POST("", a.handleContact)
	contact.GET("/status", a.handleContactStatus)

	a.uploads.Register(e.Group("/api/upload"))

	authHandler := auth0.NewHandler(a.management, a.Log)
	e.GET("/api/auth/me", authHandler.HandleMe, requireAuth)

	roles := e.Group("/api/roles", requireAuth, auth0.RequireRole("admin"))
	roles.GET("", authHandler.HandleListRoles)
	roles.GET("/user/:id", authHandler.HandleUserRoles)
	roles.POST("/user/:id", authHandler.HandleAssignRoles)
	roles.DELETE("/user/:id/:roleId", authHandler.HandleRemoveRole)
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
