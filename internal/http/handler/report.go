package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) dayParam(c *fiber.Ctx) (string, bool) {
	day := c.Query("date", h.Queue.Today())
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return "", false
	}
	return day, true
}

func (h *Handler) DailyReport(c *fiber.Ctx) error {
	day, ok := h.dayParam(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	rep, err := h.Queue.Report(c.UserContext(), day)
	if err != nil {
		return h.queueError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rep,
	})
}

// ArchiveDay copies the finished entries of a day into the archive table.
func (h *Handler) ArchiveDay(c *fiber.Ctx) error {
	day, ok := h.dayParam(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	n, err := h.Queue.Archive(c.UserContext(), day)
	if err != nil {
		return h.queueError(c, err)
	}

	h.log.Info().Str("day", day).Int("archived", n).Msg("archive")
	return c.JSON(fiber.Map{
		"success":  true,
		"day":      day,
		"archived": n,
	})
}
