package handler

import (
	"github.com/gofiber/fiber/v2"
)

type callRequest struct {
	QueueNumber int64 `json:"queue_number"`
	Silent      bool  `json:"silent"`
}

type serviceRequest struct {
	QueueID int64  `json:"queue_id"`
	Notes   string `json:"notes"`
}

func (h *Handler) CallNext(c *fiber.Ctx) error {
	stationID, ok := stationParam(c)
	if !ok {
		return nil
	}

	res, err := h.Queue.CallNext(c.UserContext(), stationID, operatorName(c))
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    res,
	})
}

func (h *Handler) CallSpecific(c *fiber.Ctx) error {
	stationID, ok := stationParam(c)
	if !ok {
		return nil
	}

	var req callRequest
	if err := c.BodyParser(&req); err != nil || req.QueueNumber <= 0 {
		return fail(c, fiber.StatusBadRequest, "queue_number is required")
	}

	res, err := h.Queue.CallSpecific(c.UserContext(), stationID, req.QueueNumber, operatorName(c), req.Silent)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    res,
	})
}

func (h *Handler) Recall(c *fiber.Ctx) error {
	stationID, ok := stationParam(c)
	if !ok {
		return nil
	}

	var req callRequest
	if err := c.BodyParser(&req); err != nil || req.QueueNumber <= 0 {
		return fail(c, fiber.StatusBadRequest, "queue_number is required")
	}

	res, err := h.Queue.Recall(c.UserContext(), stationID, req.QueueNumber, operatorName(c))
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    res,
	})
}

func (h *Handler) StartService(c *fiber.Ctx) error {
	stationID, ok := stationParam(c)
	if !ok {
		return nil
	}

	var req serviceRequest
	if err := c.BodyParser(&req); err != nil || req.QueueID <= 0 {
		return fail(c, fiber.StatusBadRequest, "queue_id is required")
	}

	visit, err := h.Queue.StartService(c.UserContext(), stationID, req.QueueID)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    visit,
	})
}

func (h *Handler) CompleteService(c *fiber.Ctx) error {
	stationID, ok := stationParam(c)
	if !ok {
		return nil
	}

	var req serviceRequest
	if err := c.BodyParser(&req); err != nil || req.QueueID <= 0 {
		return fail(c, fiber.StatusBadRequest, "queue_id is required")
	}

	entry, err := h.Queue.CompleteService(c.UserContext(), stationID, req.QueueID, req.Notes)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

func (h *Handler) Waiting(c *fiber.Ctx) error {
	stationID, ok := stationParam(c)
	if !ok {
		return nil
	}

	entries, err := h.Queue.Waiting(c.UserContext(), stationID)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"total":   len(entries),
		"data":    entries,
	})
}
