package port

import (
	"context"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
)

// CodeGenerator abstracts the generative code backend.
// Implementations can target Gemini, Ollama, or any service with structured JSON output.
type CodeGenerator interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// Generate turns a prompt into a project. Failures are *GenerationError.
	Generate(ctx context.Context, prompt string, mode domain.Mode) (*domain.Project, error)
}
