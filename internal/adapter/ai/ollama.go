package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// OllamaEndpointConfig holds the configuration for an Ollama chat endpoint.
type OllamaEndpointConfig struct {
	BaseURL     string // e.g. http://localhost:11434 or https://api.ollama.com
	Model       string // e.g. qwen3-coder
	Token       string // Bearer token for Ollama Cloud (empty = no auth)
	Temperature float64
}

// OllamaProvider implements port.CodeGenerator using the Ollama REST API.
// The project schema is passed as the structured output format.
type OllamaProvider struct {
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed generator.
func NewOllamaProvider(chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		chat:       chat,
		httpClient: &http.Client{},
	}
}

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

// Generate sends the mode instruction and prompt and decodes the structured reply.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, mode domain.Mode) (*domain.Project, error) {
	if err := checkPrompt(prompt); err != nil {
		return nil, err
	}

	messages := []map[string]string{
		{"role": "system", "content": systemInstruction(mode)},
		{"role": "user", "content": prompt},
	}

	payload := map[string]interface{}{
		"model":    o.chat.Model,
		"messages": messages,
		"stream":   false,
		"format":   projectSchema(false),
		"options": map[string]interface{}{
			"temperature": o.chat.Temperature,
		},
	}

	start := time.Now()
	body, err := o.post(ctx, o.chat, "/api/chat", payload)
	metrics.RecordUpstreamCall("ollama", "generate", time.Since(start), err)
	if err != nil {
		slog.Error("ollama generation failed", "mode", mode, "model", o.chat.Model, "error", err)
		return nil, &port.GenerationError{Message: msgUnprocessable, Err: fmt.Errorf("ollama chat: %w", err)}
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &port.GenerationError{Message: msgUnprocessable, Err: fmt.Errorf("ollama chat decode: %w", err)}
	}

	return decodeProject(resp.Message.Content)
}

// post is a helper for POST requests to an Ollama endpoint (with optional bearer token).
func (o *OllamaProvider) post(ctx context.Context, cfg OllamaEndpointConfig, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
