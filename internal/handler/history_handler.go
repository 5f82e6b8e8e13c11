package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// HistoryHandler exposes the saved project history.
type HistoryHandler struct {
	sessions *service.Sessions
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(sessions *service.Sessions) *HistoryHandler {
	return &HistoryHandler{sessions: sessions}
}

// Register sets up history routes.
func (h *HistoryHandler) Register(router fiber.Router) {
	hist := router.Group("/history")
	hist.Get("/", h.List)
	hist.Post("/sync", h.Sync)
	hist.Post("/:id/load", h.Load)
	hist.Delete("/:id", h.Delete)
}

// List returns the history, newest first.
func (h *HistoryHandler) List(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	history := o.State().History
	return c.JSON(fiber.Map{
		"history": history,
		"count":   len(history),
	})
}

// Sync reconciles the history with the GitHub Gist copy.
func (h *HistoryHandler) Sync(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	if err := o.SyncHistory(c.Context()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(o.State()))
}

// Load opens a saved project for review.
func (h *HistoryHandler) Load(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	state, err := o.LoadFromHistory(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}

// Delete removes a saved project.
func (h *HistoryHandler) Delete(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	state, err := o.DeleteFromHistory(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}
