package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated operator.
type Principal struct {
	SubjectID string
	Name      string
	Role      domain.StaffRole
}

// OperatorDirectory confirms a token subject is still an active user.
type OperatorDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens    *TokenManager
	operators OperatorDirectory
}

// NewAuthMiddleware constructs middleware. A nil operators directory trusts
// the token claims alone.
func NewAuthMiddleware(tokens *TokenManager, operators OperatorDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operators: operators}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{
		SubjectID: claims.Subject,
		Name:      claims.Name,
		Role:      claims.Role,
	}

	if m.operators != nil {
		user, err := m.operators.GetUser(c.UserContext(), claims.Subject)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("operator not found")
			}
			return apperrors.MapError(err)
		}
		if !user.Active {
			return apperrors.NewUnauthorized("operator deactivated")
		}
		if principal.Name == "" {
			principal.Name = user.Name
		}
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated operator.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
