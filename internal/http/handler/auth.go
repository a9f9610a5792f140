package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"clinic-queue/internal/config"
	"clinic-queue/internal/models"
	"clinic-queue/internal/store"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Email and password are required")
	}

	user, err := h.Users.UserByEmail(c.UserContext(), req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		return fail(c, fiber.StatusUnauthorized, "Wrong email or password")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("login lookup")
		return fail(c, fiber.StatusInternalServerError, "Database error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Wrong email or password")
	}

	resp := models.ToUserResponse(user)
	token, err := config.GenerateToken(user.ID, user.Name, user.Email, user.Role, resp.StationID)
	if err != nil {
		h.log.Error().Err(err).Msg("generate token")
		return fail(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	h.log.Info().Str("email", user.Email).Str("role", user.Role).Msg("login")
	return c.JSON(fiber.Map{
		"success": true,
		"data": models.LoginResponse{
			Token: token,
			User:  resp,
		},
	})
}

// Logout is client side: the token is simply dropped.
func (h *Handler) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}
