package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/utils"
)

const identityKey = "currentIdentity"

// AuthMiddleware validates JWT tokens and loads the caller identity into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperrors.Unauthorized("missing authorization header")
		}

		identity, err := parseBearer(secret, authHeader)
		if err != nil {
			return err
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// OptionalAuth loads the caller identity when a valid token is present and
// lets anonymous requests through otherwise.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			if identity, err := parseBearer(secret, authHeader); err == nil {
				c.Locals(identityKey, identity)
			}
		}
		return c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after
// AuthMiddleware.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := GetCurrentIdentity(c)
		if !ok {
			return apperrors.Unauthorized("authentication required")
		}
		if !slices.Contains(roles, identity.Role) {
			return apperrors.Forbidden("insufficient role")
		}
		return c.Next()
	}
}

func parseBearer(secret, header string) (models.Identity, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return models.Identity{}, apperrors.Unauthorized("invalid authorization header")
	}

	identity, err := utils.ParseToken(secret, strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Identity{}, apperrors.Unauthorized("invalid token")
	}
	return identity, nil
}

// GetCurrentIdentity extracts the authenticated identity from context.
func GetCurrentIdentity(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(identityKey).(models.Identity)
	return identity, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	identity, ok := GetCurrentIdentity(c)
	if !ok {
		return uuid.Nil, false
	}
	return identity.UserID, true
}
