package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

const principalKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID       string
	Role         domain.UserRole
	DepartmentID *string
}

// Middleware validates the bearer token and loads the caller.
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

func NewMiddleware(tokens *TokenManager, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Authenticate requires a valid Authorization: Bearer token and an active user.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperrors.NewUnauthorized("missing authorization header")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}

		claims, err := m.tokens.ParseToken(parts[1])
		if err != nil {
			return apperrors.NewUnauthorized("invalid or expired token")
		}

		user, err := m.users.GetByID(c.Context(), claims.UserID)
		if err != nil {
			return apperrors.NewUnauthorized("unknown user")
		}
		if !user.Active {
			return apperrors.NewForbidden("account is deactivated")
		}

		c.Locals(principalKey, &Principal{
			UserID:       user.ID,
			Role:         user.Role,
			DepartmentID: user.DepartmentID,
		})
		return c.Next()
	}
}

// CurrentPrincipal returns the authenticated caller, or nil.
func CurrentPrincipal(c *fiber.Ctx) *Principal {
	p, _ := c.Locals(principalKey).(*Principal)
	return p
}
