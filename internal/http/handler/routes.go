package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"clinic-queue/internal/http/middleware"
	"clinic-queue/internal/models"
	"clinic-queue/internal/realtime"
)

// RouteConfig carries the pieces Routes needs besides the handler.
type RouteConfig struct {
	Hub       *realtime.Hub
	AdminUser string
	AdminPass string
}

func Routes(app *fiber.App, h *Handler, rc RouteConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Clinic queue API running",
		})
	})

	app.Post("/api/login", h.Login)
	app.Get("/api/display", h.GetDisplay)
	app.Get("/api/stations", h.GetStations)

	if rc.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/queue", websocket.New(rc.Hub.Serve))
	}

	if rc.AdminUser != "" {
		admin := app.Group("/admin", middleware.BasicAuth(rc.AdminUser, rc.AdminPass))
		admin.Post("/archive", h.ArchiveDay)
	}

	api := app.Group("/api", middleware.JWTAuth())
	api.Post("/logout", h.Logout)

	// reception
	reception := middleware.RoleAuth(models.RoleAdmin, models.RoleReception)
	api.Post("/queue", reception, h.TakeQueue)
	api.Get("/queue/:id", h.GetEntry)
	api.Post("/queue/:id/cancel", middleware.RoleAuth(models.RoleAdmin, models.RoleReception, models.RoleStation), h.CancelEntry)

	// stations
	station := middleware.RoleAuth(models.RoleAdmin, models.RoleStation)
	api.Get("/stations/:stationId/waiting", station, h.Waiting)
	api.Post("/stations/:stationId/call-next", station, h.CallNext)
	api.Post("/stations/:stationId/call-specific", station, h.CallSpecific)
	api.Post("/stations/:stationId/recall", station, h.Recall)
	api.Post("/stations/:stationId/start", station, h.StartService)
	api.Post("/stations/:stationId/complete", station, h.CompleteService)

	// admin
	adminOnly := middleware.RoleAuth(models.RoleAdmin)
	api.Get("/reports/daily", adminOnly, h.DailyReport)
	api.Get("/users", adminOnly, h.GetAllUsers)
	api.Post("/users", adminOnly, h.CreateUser)
	api.Delete("/users/:id", adminOnly, h.DeleteUser)
}
