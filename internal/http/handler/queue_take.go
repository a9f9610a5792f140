package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"clinic-queue/internal/config"
	"clinic-queue/internal/helper"
	"clinic-queue/internal/models"
)

type takeQueueRequest struct {
	PatientID string `json:"patient_id"`
	Urgent    bool   `json:"urgent"`
}

// TakeQueue registers a patient at reception.
func (h *Handler) TakeQueue(c *fiber.Ctx) error {
	var req takeQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		return fail(c, fiber.StatusBadRequest, "patient_id is required")
	}

	priority := models.PriorityNormal
	if req.Urgent {
		priority = models.PriorityUrgent
	}

	entry, err := h.Queue.Enqueue(c.UserContext(), req.PatientID, priority)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

func (h *Handler) GetEntry(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}

	entry, err := h.Queue.Entry(c.UserContext(), id)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

// CancelEntry closes an entry after it has been recalled enough times. Station
// operators may only cancel entries sitting at their own station.
func (h *Handler) CancelEntry(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}

	if claims, ok := c.Locals("claims").(*config.JWTClaims); ok && claims.Role == models.RoleStation {
		current, err := h.Queue.Entry(c.UserContext(), id)
		if err != nil {
			return h.queueError(c, err)
		}
		at := current.Entry.CurrentStationID
		if at == nil || helper.CheckStationAccess(claims.Role, claims.StationID, *at) != nil {
			return fail(c, fiber.StatusForbidden, "Entry is not at your station")
		}
	}

	entry, err := h.Queue.Cancel(c.UserContext(), id)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Queue entry cancelled",
		"data":    entry,
	})
}
