package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// UsersHandler manages account registration and login.
type UsersHandler struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users repository.UserRepository, tokens *auth.TokenManager) *UsersHandler {
	return &UsersHandler{users: users, tokens: tokens}
}

// Register POST /auth/register. New accounts always start as requesters;
// staff roles are granted out of band.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Email == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("username, email and a password of at least 8 characters are required", nil)
	}

	if existing, err := h.users.GetByUsername(c.Context(), username); err == nil && existing != nil {
		return apperrors.NewConflict("username already taken", nil)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
	}
	if err := h.users.Create(c.Context(), user); err != nil {
		return apperrors.MapError(err)
	}

	token, expiresAt, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: expiresAt}})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.GetByUsername(c.Context(), strings.TrimSpace(req.Username))
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return apperrors.NewForbidden("account is deactivated")
	}

	token, expiresAt, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: expiresAt}})
}
