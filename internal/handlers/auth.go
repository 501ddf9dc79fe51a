package handlers

import (
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/services"
	"github.com/example/bakery/internal/utils"
)

const minPasswordLength = 8

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	users     services.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users services.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Register creates a new customer account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.Validation("invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return apperrors.Validation("password must be at least %d characters", minPasswordLength)
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: passwordHash,
		Role:         models.RoleCliente,
	}
	if err := h.users.Create(c.UserContext(), &user); err != nil {
		return err
	}

	token, err := h.issueToken(user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	user, err := h.users.FindByEmail(c.UserContext(), strings.TrimSpace(req.Email))
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return apperrors.Unauthorized("invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return apperrors.Unauthorized("invalid credentials")
	}

	token, err := h.issueToken(user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	user, err := h.users.FindByID(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

func (h *AuthHandler) issueToken(user models.User) (string, error) {
	return utils.GenerateToken(h.jwtSecret, models.Identity{UserID: user.ID, Role: user.Role}, h.tokenTTL)
}
