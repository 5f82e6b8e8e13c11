package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// GeminiConfig holds the configuration for the Gemini generateContent endpoint.
type GeminiConfig struct {
	BaseURL     string // e.g. https://generativelanguage.googleapis.com
	Model       string // e.g. gemini-3-pro-preview
	APIKey      string
	Temperature float64
}

// GeminiProvider implements port.CodeGenerator using the Gemini REST API
// with schema-constrained JSON output.
type GeminiProvider struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGeminiProvider creates a new Gemini-backed generator.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	return &GeminiProvider{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// ModelName returns the model identifier.
func (g *GeminiProvider) ModelName() string {
	return g.cfg.Model
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction geminiContent   `json:"systemInstruction"`
	GenerationConfig  struct {
		ResponseMimeType string         `json:"responseMimeType"`
		ResponseSchema   map[string]any `json:"responseSchema"`
		Temperature      float64        `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Generate asks Gemini for a project matching the fixed schema.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, mode domain.Mode) (*domain.Project, error) {
	if err := checkPrompt(prompt); err != nil {
		return nil, err
	}
	if g.cfg.APIKey == "" {
		return nil, &port.GenerationError{Message: "Gemini API key is missing from the environment."}
	}

	var req geminiRequest
	req.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	req.SystemInstruction = geminiContent{Parts: []geminiPart{{Text: systemInstruction(mode)}}}
	req.GenerationConfig.ResponseMimeType = "application/json"
	req.GenerationConfig.ResponseSchema = projectSchema(true)
	req.GenerationConfig.Temperature = g.cfg.Temperature

	start := time.Now()
	body, err := g.post(ctx, req)
	metrics.RecordUpstreamCall("gemini", "generate", time.Since(start), err)
	if err != nil {
		slog.Error("gemini generation failed", "mode", mode, "error", err)
		return nil, &port.GenerationError{Message: msgUnprocessable, Err: err}
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &port.GenerationError{Message: msgUnprocessable, Err: fmt.Errorf("gemini decode: %w", err)}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &port.GenerationError{Message: msgEmptyResponse, Err: fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)}
	}
	if len(resp.Candidates) == 0 {
		return nil, &port.GenerationError{Message: msgEmptyResponse}
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if !p.Thought {
			text.WriteString(p.Text)
		}
	}

	return decodeProject(text.String())
}

// post sends the request to the model's generateContent method.
func (g *GeminiProvider) post(ctx context.Context, payload geminiRequest) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/v1beta/models/" + url.PathEscape(g.cfg.Model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
