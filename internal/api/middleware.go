package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thornboo/jincheng-campus-api/internal/auth"
)

const identityKey = "identity"

// RequireAuth verifies the bearer token and stashes the identity in
// the request locals.
func RequireAuth(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}
		ident, err := verifier.Verify(c.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(identityKey, ident)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) auth.Identity {
	ident, _ := c.Locals(identityKey).(auth.Identity)
	return ident
}
