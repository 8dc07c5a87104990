package auth0

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler serves the profile and role administration endpoints.
type Handler struct {
	mgmt *Management
	log  *zap.Logger
}

// NewHandler creates a Handler backed by the given Management client.
func NewHandler(mgmt *Management, log *zap.Logger) *Handler {
	return &Handler{mgmt: mgmt, log: log}
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": data})
}

func bad(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]any{"success": false, "error": message, "code": code})
}

// HandleMe returns the authenticated caller's token profile.
func (h *Handler) HandleMe(c echo.Context) error {
	claims := FromContext(c)
	if claims == nil {
		return bad(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization token")
	}
	return ok(c, map[string]any{
		"sub":         claims.Subject,
		"email":       claims.Email,
		"name":        claims.Name,
		"roles":       claims.Roles,
		"permissions": claims.Permissions,
	})
}

// HandleListRoles lists all roles in the tenant.
func (h *Handler) HandleListRoles(c echo.Context) error {
	roles, err := h.mgmt.ListRoles(c.Request().Context())
	if err != nil {
		h.log.Error("list roles failed", zap.Error(err))
		return bad(c, http.StatusBadGateway, "AUTH0_ERROR", "failed to fetch roles")
	}
	return ok(c, roles)
}

// HandleUserRoles lists the roles assigned to a user.
func (h *Handler) HandleUserRoles(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return bad(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id required")
	}
	roles, err := h.mgmt.UserRoles(c.Request().Context(), userID)
	if err != nil {
		h.log.Error("fetch user roles failed", zap.String("user", userID), zap.Error(err))
		return bad(c, http.StatusBadGateway, "AUTH0_ERROR", "failed to fetch user roles")
	}
	return ok(c, roles)
}

type assignRolesInput struct {
	Roles []string `json:"roles"`
}

// HandleAssignRoles adds roles to a user.
func (h *Handler) HandleAssignRoles(c echo.Context) error {
	userID := c.Param("id")
	var in assignRolesInput
	if err := c.Bind(&in); err != nil || userID == "" || len(in.Roles) == 0 {
		return bad(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id and a non-empty roles list are required")
	}
	if err := h.mgmt.AssignRoles(c.Request().Context(), userID, in.Roles); err != nil {
		h.log.Error("assign roles failed", zap.String("user", userID), zap.Error(err))
		return bad(c, http.StatusBadGateway, "AUTH0_ERROR", "failed to assign roles")
	}
	h.log.Info("roles assigned",
		zap.String("user", userID),
		zap.Strings("roles", in.Roles),
		zap.String("by", FromContext(c).Subject))
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "roles assigned"})
}

// HandleRemoveRole removes one role from a user.
func (h *Handler) HandleRemoveRole(c echo.Context) error {
	userID, roleID := c.Param("id"), c.Param("roleId")
	if userID == "" || roleID == "" {
		return bad(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id and role id are required")
	}
	if err := h.mgmt.RemoveRoles(c.Request().Context(), userID, []string{roleID}); err != nil {
		h.log.Error("remove role failed", zap.String("user", userID), zap.Error(err))
		return bad(c, http.StatusBadGateway, "AUTH0_ERROR", "failed to remove role")
	}
	h.log.Info("role removed",
		zap.String("user", userID),
		zap.String("role", roleID),
		zap.String("by", FromContext(c).Subject))
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "role removed"})
}
