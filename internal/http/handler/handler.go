package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"clinic-queue/internal/config"
	"clinic-queue/internal/helper"
	"clinic-queue/internal/queue"
	"clinic-queue/internal/store"
)

// Handler holds what the HTTP layer needs; routes are methods on it.
type Handler struct {
	Queue *queue.Controller
	Users store.Users
	log   zerolog.Logger
}

func New(ctl *queue.Controller, users store.Users, log zerolog.Logger) *Handler {
	return &Handler{Queue: ctl, Users: users, log: log}
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// queueError maps controller errors onto HTTP responses.
func (h *Handler) queueError(c *fiber.Ctx, err error) error {
	var thr *queue.RecallThresholdError
	switch {
	case errors.As(err, &thr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success":      false,
			"error":        err.Error(),
			"recall_count": thr.Count,
			"required":     thr.Required,
		})
	case errors.Is(err, queue.ErrNoEligibleEntry):
		return fail(c, fiber.StatusNotFound, "No one is waiting for this station")
	case errors.Is(err, queue.ErrEntryNotFound):
		return fail(c, fiber.StatusNotFound, "Queue entry not found")
	case errors.Is(err, queue.ErrUnknownStation):
		return fail(c, fiber.StatusNotFound, "Station not found")
	case errors.Is(err, queue.ErrEntryNotEligible), errors.Is(err, queue.ErrNoOpenVisit):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, queue.ErrConflict):
		return fail(c, fiber.StatusConflict, "Concurrent update, please retry")
	case errors.Is(err, queue.ErrCooldownActive):
		return fail(c, fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, queue.ErrReceptionClosed):
		return fail(c, fiber.StatusForbidden, "Reception is closed")
	}

	h.log.Error().Err(err).Str("path", c.Path()).Msg("queue operation failed")
	return fail(c, fiber.StatusInternalServerError, "Internal error")
}

// stationParam reads :stationId and checks a station operator only acts on
// the station bound to their account. When ok is false the rejection has
// already been written and the handler must return without doing anything.
func stationParam(c *fiber.Ctx) (id int64, ok bool) {
	id, err := strconv.ParseInt(c.Params("stationId"), 10, 64)
	if err != nil {
		_ = fail(c, fiber.StatusBadRequest, "Invalid station id")
		return 0, false
	}

	claims, ok := c.Locals("claims").(*config.JWTClaims)
	if !ok {
		_ = fail(c, fiber.StatusUnauthorized, "Missing session")
		return 0, false
	}
	if err := helper.CheckStationAccess(claims.Role, claims.StationID, id); err != nil {
		_ = fail(c, fiber.StatusForbidden, "You are not assigned to this station")
		return 0, false
	}
	return id, true
}

func operatorName(c *fiber.Ctx) string {
	if claims, ok := c.Locals("claims").(*config.JWTClaims); ok {
		return claims.Name
	}
	return ""
}
