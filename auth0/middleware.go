package auth0

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Config holds the Auth0 tenant settings.
type Config struct {
	Domain       string
	Audience     string
	ClientID     string
	ClientSecret string
	RolesClaim   string
}

// Verifier validates RS256 bearer tokens against the tenant JWKS.
type Verifier struct {
	cfg    Config
	issuer string
	jwks   keyfunc.Keyfunc
	parser *jwt.Parser
	log    *zap.Logger
}

// NewVerifier fetches the tenant JWKS and builds a token verifier. The JWKS
// is refreshed in the background for the lifetime of ctx.
func NewVerifier(ctx context.Context, cfg Config, log *zap.Logger) (*Verifier, error) {
	issuer := fmt.Sprintf("https://%s/", cfg.Domain)
	jwksURL := issuer + ".well-known/jwks.json"

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks %s: %w", jwksURL, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	return &Verifier{cfg: cfg, issuer: issuer, jwks: jwks, parser: parser, log: log}, nil
}

// Verify parses and validates a raw bearer token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	token, err := v.parser.Parse(raw, v.jwks.Keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return decodeClaims(token, v.cfg.RolesClaim), nil
}

// Middleware returns Echo middleware that requires a valid bearer token and
// attaches the decoded claims to the request context.
func (v *Verifier) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (any, error) {
			claims, err := v.Verify(auth)
			if err != nil {
				v.log.Debug("token rejected",
					zap.String("path", c.Path()),
					zap.Error(err))
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			message := "missing or invalid authorization token"
			if strings.Contains(err.Error(), "expired") {
				message = "token has expired"
			}
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   message,
				"code":    "UNAUTHORIZED",
			})
		},
	})
}
