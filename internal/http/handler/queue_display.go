package handler

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"clinic-queue/internal/queue"
)

// GetDisplay returns the board every call screen renders.
func (h *Handler) GetDisplay(c *fiber.Ctx) error {
	board, err := h.Queue.Board(c.UserContext())
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    board,
	})
}

func (h *Handler) GetStations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.Queue.Route().Stations(),
	})
}

// BoardSnapshot is the websocket payload pushed on connect and after events.
func BoardSnapshot(ctl *queue.Controller) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		board, err := ctl.Board(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fiber.Map{
			"type": "queue_update",
			"data": board,
		})
	}
}
