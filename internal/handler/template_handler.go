package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// TemplateHandler serves built-in prompt templates.
type TemplateHandler struct{}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler() *TemplateHandler {
	return &TemplateHandler{}
}

// Register sets up template routes.
func (h *TemplateHandler) Register(router fiber.Router) {
	router.Get("/templates/test", h.Test)
}

// Test returns the hello-world paste template.
func (h *TemplateHandler) Test(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":     "test-app",
		"mode":     "paste",
		"template": service.TestTemplate(),
	})
}
