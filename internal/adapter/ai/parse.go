package ai

import (
	"encoding/json"
	"strings"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// User-facing generation messages.
const (
	msgEmptyResponse = "I couldn't generate a response. Please try again."
	msgUnprocessable = "I failed to process the code. Please try again."
	msgEmptyPrompt   = "Please describe the app or paste some code first."
)

// decodeProject parses the model output into a validated project.
func decodeProject(text string) (*domain.Project, error) {
	text = stripFence(strings.TrimSpace(text))
	if text == "" {
		return nil, &port.GenerationError{Message: msgEmptyResponse}
	}

	var project domain.Project
	if err := json.Unmarshal([]byte(text), &project); err != nil {
		return nil, &port.GenerationError{Message: msgUnprocessable, Err: err}
	}
	if err := project.Validate(); err != nil {
		return nil, &port.GenerationError{Message: msgUnprocessable, Err: err}
	}
	return &project, nil
}

// stripFence removes a single surrounding markdown code fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func checkPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return &port.GenerationError{Message: msgEmptyPrompt, Err: port.ErrEmptyPrompt}
	}
	return nil
}
