// Package auth0 verifies Auth0-issued bearer tokens, exposes claim guards,
// and manages user roles through the Auth0 Management API.
package auth0

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const claimsContextKey = "auth0_claims"

// Claims is the decoded token payload attached to the request context.
type Claims struct {
	Subject     string
	Email       string
	Name        string
	Permissions []string
	Roles       []string
}

// FromContext returns the verified claims for the request, or nil if the
// request carried no valid token.
func FromContext(c echo.Context) *Claims {
	claims, _ := c.Get(claimsContextKey).(*Claims)
	return claims
}

// HasPermission reports whether the token grants the given permission.
func (cl *Claims) HasPermission(perm string) bool {
	for _, p := range cl.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasRole reports whether the token carries the given role.
func (cl *Claims) HasRole(role string) bool {
	for _, r := range cl.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// decodeClaims extracts the fields we care about from a verified token.
// Permissions come from the RBAC "permissions" claim when present, otherwise
// from the space-separated "scope" claim. Roles come from the configured
// namespaced custom claim.
func decodeClaims(token *jwt.Token, rolesClaim string) *Claims {
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return &Claims{}
	}
	cl := &Claims{}
	cl.Subject, _ = mc.GetSubject()
	cl.Email, _ = mc["email"].(string)
	cl.Name, _ = mc["name"].(string)

	if perms, ok := mc["permissions"].([]any); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				cl.Permissions = append(cl.Permissions, s)
			}
		}
	} else if scope, ok := mc["scope"].(string); ok && scope != "" {
		cl.Permissions = strings.Fields(scope)
	}

	if roles, ok := mc[rolesClaim].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				cl.Roles = append(cl.Roles, s)
			}
		}
	}
	return cl
}
