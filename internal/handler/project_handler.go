package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// ProjectHandler starts generation and deployment runs.
type ProjectHandler struct {
	sessions *service.Sessions
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(sessions *service.Sessions) *ProjectHandler {
	return &ProjectHandler{sessions: sessions}
}

// Register sets up project routes.
func (h *ProjectHandler) Register(router fiber.Router) {
	p := router.Group("/projects")
	p.Post("/generate", h.Generate)
	p.Post("/deploy", h.Deploy)
	p.Post("/save", h.Save)
}

// Generate starts code generation. Progress is reported via the event stream.
func (h *ProjectHandler) Generate(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}

	var body struct {
		Prompt string      `json:"prompt"`
		Mode   domain.Mode `json:"mode"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if body.Mode == "" {
		body.Mode = domain.ModeGenerate
	}
	if !body.Mode.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mode must be generate or paste"})
	}

	if err := o.StartGenerate(body.Prompt, body.Mode); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"step": domain.StepGenerating})
}

// Deploy starts publishing the reviewed project.
func (h *ProjectHandler) Deploy(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	if err := o.StartDeploy(); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"step": domain.StepDeploying})
}

// Save adds the current project to history.
func (h *ProjectHandler) Save(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}
	state, err := o.SaveProject(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewOf(state))
}
