package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/middleware"
	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// Mount registers the /api/v1 routes. Public routes come first so the session
// middleware of the protected group never runs for them.
func Mount(app *fiber.App, sessions *service.Sessions, jwtCfg middleware.JWTConfig, appName string) {
	public := app.Group("/api/v1")

	// Health check
	public.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"app":      appName,
			"version":  "1.0.0",
			"sessions": sessions.Count(),
			"model":    sessions.ModelName(),
		})
	})

	sessionHandler := NewSessionHandler(sessions, jwtCfg)
	sessionHandler.RegisterPublic(public)
	NewTemplateHandler().Register(public)

	api := app.Group("/api/v1", middleware.JWTMiddleware(jwtCfg))

	sessionHandler.Register(api)
	NewStreamHandler(sessions).Register(api)
	NewProjectHandler(sessions).Register(api)
	NewHistoryHandler(sessions).Register(api)
}
