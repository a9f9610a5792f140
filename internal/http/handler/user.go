package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"clinic-queue/internal/models"
	"clinic-queue/internal/store"
)

func (h *Handler) GetAllUsers(c *fiber.Ctx) error {
	users, err := h.Users.ListUsers(c.UserContext())
	if err != nil {
		h.log.Error().Err(err).Msg("list users")
		return fail(c, fiber.StatusInternalServerError, "Failed to load users")
	}

	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.ToUserResponse(u))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
	})
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return fail(c, fiber.StatusBadRequest, "Name, email and a password of at least 8 characters are required")
	}

	switch req.Role {
	case models.RoleAdmin, models.RoleReception:
		req.StationID = nil
	case models.RoleStation:
		if req.StationID == nil {
			return fail(c, fiber.StatusBadRequest, "station_id is required for station operators")
		}
		if _, ok := h.Queue.Route().Station(*req.StationID); !ok {
			return fail(c, fiber.StatusBadRequest, "Unknown station")
		}
	default:
		return fail(c, fiber.StatusBadRequest, "Role must be admin, reception or station")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to hash password")
	}

	u := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     req.Role,
	}
	if req.StationID != nil {
		u.StationID.Int64, u.StationID.Valid = *req.StationID, true
	}

	created, err := h.Users.CreateUser(c.UserContext(), u)
	if errors.Is(err, store.ErrEmailTaken) {
		return fail(c, fiber.StatusConflict, "Email already registered")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("create user")
		return fail(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    models.ToUserResponse(created),
	})
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}

	err = h.Users.DeleteUser(c.UserContext(), id)
	if errors.Is(err, store.ErrUserNotFound) {
		return fail(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("delete user")
		return fail(c, fiber.StatusInternalServerError, "Failed to delete user")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User deleted",
	})
}
