package handler

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/middleware"
	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// SessionHandler handles login, logout and session-level navigation.
type SessionHandler struct {
	sessions *service.Sessions
	jwtCfg   middleware.JWTConfig
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.Sessions, jwtCfg middleware.JWTConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, jwtCfg: jwtCfg}
}

// RegisterPublic sets up the login route.
func (h *SessionHandler) RegisterPublic(router fiber.Router) {
	router.Post("/session", h.Login)
}

// Register sets up session routes behind the session middleware.
func (h *SessionHandler) Register(router fiber.Router) {
	s := router.Group("/session")
	s.Get("/", h.Get)
	s.Delete("/", h.Logout)
	s.Put("/settings", h.UpdateSettings)
	s.Post("/navigate", h.Navigate)
	s.Post("/reset", h.Reset)
	s.Get("/logs", h.Logs)
	s.Post("/test-template", h.LoadTestTemplate)
}

// Login verifies the GitHub token, opens a workflow session and returns its token.
func (h *SessionHandler) Login(c fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	req.SourceHostToken = strings.TrimSpace(req.SourceHostToken)
	if req.SourceHostToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "githubToken is required"})
	}

	id, o := h.sessions.Create()
	state, err := o.Login(c.Context(), req)
	if err != nil {
		h.sessions.Remove(id)
		return respondError(c, err)
	}

	token, err := middleware.GenerateSessionToken(id, state.Credentials.SourceHostUsername, h.jwtCfg)
	if err != nil {
		h.sessions.Remove(id)
		return respondError(c, err)
	}

	slog.Info("session opened", "session_id", id, "user", state.Credentials.SourceHostUsername)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"state": viewOf(state),
	})
}

// Get returns the current session state.
func (h *SessionHandler) Get(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(o.State()))
}

// Logout clears the session and drops it.
func (h *SessionHandler) Logout(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	state, err := o.Logout()
	if err != nil {
		return respondError(c, err)
	}
	h.sessions.Remove(middleware.GetSessionContext(c).SessionID)
	return c.JSON(viewOf(state))
}

// UpdateSettings changes the Vercel token and auto-deploy flag.
func (h *SessionHandler) UpdateSettings(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		HostingToken       *string `json:"vercelToken"`
		AutoHostingEnabled *bool   `json:"useBetaDeploy"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	state, err := o.UpdateSettings(c.Context(), body.HostingToken, body.AutoHostingEnabled)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}

// Navigate moves between the editor and the review screen.
func (h *SessionHandler) Navigate(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Step domain.Step `json:"step"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	state, err := o.Navigate(body.Step)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}

// Reset starts over with an empty prompt.
func (h *SessionHandler) Reset(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	state, err := o.Reset()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}

// Logs returns the session log lines.
func (h *SessionHandler) Logs(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	logs := o.State().Logs
	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}

// LoadTestTemplate puts the hello-world template into the prompt.
func (h *SessionHandler) LoadTestTemplate(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	state, err := o.LoadTestTemplate()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}
