package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/types"
)

const claimsKey = "claims"

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// AdminChecker decides admin membership
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Authenticate requires a valid "Authorization: Bearer <jwt>" header and
// stores the claims in the request context
func Authenticate(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := validator.ValidateToken(BearerToken(c))
		if err != nil {
			return err
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RequireAdmin allows only members of the admin team. It must run after
// Authenticate.
func RequireAdmin(checker AdminChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return types.NewAppError(fiber.StatusUnauthorized, "Authentication required", "auth.unauthorized")
		}

		ok, err := checker.IsAdmin(c.UserContext(), claims.Subject)
		if err != nil {
			return err
		}
		if !ok {
			logging.Ctx(c.UserContext()).Warn().Str("user", claims.Subject).Str("path", c.Path()).Msg("Admin access denied")
			return types.NewAppError(fiber.StatusForbidden, "Admin team membership required", "auth.forbidden")
		}
		return c.Next()
	}
}

// Claims returns the claims stored by Authenticate, or nil
func Claims(c *fiber.Ctx) *services.Claims {
	claims, _ := c.Locals(claimsKey).(*services.Claims)
	return claims
}

// BearerToken extracts the token of an Authorization header
func BearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
