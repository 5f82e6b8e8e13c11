package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

const todoProject = `{"name":"todo-app","description":"A todo list","files":[{"path":"index.html","content":"<html></html>"},{"path":"src/App.tsx","content":"export default function App() {}"}]}`

func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(geminiReply(todoProject)))
	}))
	defer srv.Close()

	g := NewGeminiProvider(GeminiConfig{BaseURL: srv.URL, Model: "gemini-test", APIKey: "k", Temperature: 0.2})
	p, err := g.Generate(context.Background(), "a todo app", domain.ModeGenerate)
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "todo-app", p.Name)
	assert.Equal(t, []string{"index.html", "src/App.tsx"}, p.Paths())

	cfg := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.InDelta(t, 0.2, cfg["temperature"], 1e-9)
	schema := cfg["responseSchema"].(map[string]any)
	assert.Equal(t, "OBJECT", schema["type"])
}

func TestGemini_PasteModeUsesPasteInstruction(t *testing.T) {
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(geminiReply(todoProject)))
	}))
	defer srv.Close()

	g := NewGeminiProvider(GeminiConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"})
	_, err := g.Generate(context.Background(), "// File: App.tsx\nexport default 1", domain.ModePaste)
	require.NoError(t, err)
	require.Len(t, gotBody.SystemInstruction.Parts, 1)
	assert.Equal(t, pasteInstruction, gotBody.SystemInstruction.Parts[0].Text)
}

func TestGemini_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"empty text", http.StatusOK, geminiReply("")},
		{"not json", http.StatusOK, geminiReply("here is your app")},
		{"missing files", http.StatusOK, geminiReply(`{"name":"x","description":"y","files":[]}`)},
		{"unsafe name", http.StatusOK, geminiReply(`{"name":"My Todo/App","description":"y","files":[{"path":"index.html","content":"x"}]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := NewGeminiProvider(GeminiConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"})
			_, err := g.Generate(context.Background(), "a todo app", domain.ModeGenerate)

			var genErr *port.GenerationError
			require.True(t, errors.As(err, &genErr))
			assert.NotEmpty(t, genErr.Message)
		})
	}
}

func TestGemini_MissingKeyAndEmptyPrompt(t *testing.T) {
	g := NewGeminiProvider(GeminiConfig{BaseURL: "http://127.0.0.1:0", Model: "m"})

	_, err := g.Generate(context.Background(), "a todo app", domain.ModeGenerate)
	var genErr *port.GenerationError
	assert.True(t, errors.As(err, &genErr))

	_, err = g.Generate(context.Background(), "   ", domain.ModeGenerate)
	assert.ErrorIs(t, err, port.ErrEmptyPrompt)
}

func TestOllama_Generate(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		reply, _ := json.Marshal(map[string]any{"message": map[string]any{"role": "assistant", "content": "```json\n" + todoProject + "\n```"}})
		_, _ = w.Write(reply)
	}))
	defer srv.Close()

	o := NewOllamaProvider(OllamaEndpointConfig{BaseURL: srv.URL, Model: "qwen", Token: "tok", Temperature: 0.2})
	p, err := o.Generate(context.Background(), "a todo app", domain.ModeGenerate)
	require.NoError(t, err)

	assert.Equal(t, "todo-app", p.Name)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, false, gotBody["stream"])
	format := gotBody["format"].(map[string]any)
	assert.Equal(t, "object", format["type"])
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFence(`{"a":1}`))
	assert.Equal(t, "", stripFence("```"))
}
