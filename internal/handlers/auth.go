package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/middleware"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/types"
)

// AuthHandler handles the auth routes
type AuthHandler struct {
	Auth *services.AuthService
}

// AdminStatus answers the admin check
type AdminStatus struct {
	UserID  string `json:"userId"`
	TeamID  string `json:"teamId"`
	IsAdmin bool   `json:"isAdmin"`
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} services.AuthUser
// @Failure 401 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	if claims == nil {
		return types.NewAppError(fiber.StatusUnauthorized, "Authentication required", "auth.unauthorized")
	}
	user, err := h.Auth.Me(c.UserContext(), claims)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh a token
// @Description Exchange a valid, or recently expired, bearer token for a new one
// @Tags Auth
// @Produce json
// @Success 200 {object} services.TokenResponse
// @Failure 401 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	tok, err := h.Auth.Refresh(middleware.BearerToken(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(tok)
}

// Admin handles GET /api/auth/admin
// @Summary Admin check
// @Description Report whether the caller is a member of the admin team
// @Tags Auth
// @Produce json
// @Success 200 {object} AdminStatus
// @Failure 401 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /auth/admin [get]
func (h *AuthHandler) Admin(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	if claims == nil {
		return types.NewAppError(fiber.StatusUnauthorized, "Authentication required", "auth.unauthorized")
	}
	ok, err := h.Auth.IsAdmin(c.UserContext(), claims.Subject)
	if err != nil {
		return err
	}
	return c.JSON(AdminStatus{UserID: claims.Subject, TeamID: h.Auth.AdminTeam(), IsAdmin: ok})
}
