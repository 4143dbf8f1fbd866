package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// RequireRole admits principals whose role ranks at least minimum.
// Unknown roles rank below every known role.
func RequireRole(minimum domain.StaffRole) fiber.Handler {
	need := minimum.Rank()
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.Role.Rank() < need {
			return fiber.NewError(http.StatusForbidden, "requires role "+string(minimum))
		}
		return c.Next()
	}
}
