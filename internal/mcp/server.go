package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// Server implements the Model Context Protocol (MCP) server.
// It lets external agents generate projects and read the synced history
// without going through a workflow session.
type Server struct {
	generator port.CodeGenerator
	history   port.HistorySync
	addrPort  string
}

// NewServer creates a new MCP server.
func NewServer(generator port.CodeGenerator, history port.HistorySync, listenPort string) *Server {
	return &Server{
		generator: generator,
		history:   history,
		addrPort:  listenPort,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

var errInvalidParams = errors.New("invalid params")

// Handler returns the MCP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.addrPort)
	return http.ListenAndServe(":"+s.addrPort, s.Handler())
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "parse error")
		return
	}

	var result any
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "autodeploy-agent",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, codeMethodNotFound, "method not found")
		return
	}

	if err != nil {
		code := codeInternalError
		if errors.Is(err, errInvalidParams) || errors.Is(err, port.ErrEmptyPrompt) {
			code = codeInvalidParams
		}
		writeError(w, req.ID, code, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial endpoint message
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// Keep connection alive
	<-r.Context().Done()
}

func (s *Server) listTools() map[string]any {
	tools := []Tool{
		{
			Name:        "generate_project",
			Description: "Generate a deployable web project from a prompt or pasted code",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"prompt": {"type": "string", "description": "App description, or code in paste mode"},
					"mode": {"type": "string", "description": "generate or paste (default generate)"}
				},
				"required": ["prompt"]
			}`),
		},
		{
			Name:        "get_test_template",
			Description: "Return the hello-world paste template",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
		{
			Name:        "list_history",
			Description: "List the projects saved in the GitHub Gist history of a token",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"github_token": {"type": "string", "description": "GitHub token with gist scope"}
				},
				"required": ["github_token"]
			}`),
		},
	}
	return map[string]any{"tools": tools}
}

func textContent(text string) []map[string]any {
	return []map[string]any{{"type": "text", "text": text}}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	if len(req.Arguments) == 0 {
		req.Arguments = json.RawMessage("{}")
	}

	switch req.Name {
	case "generate_project":
		var args struct {
			Prompt string      `json:"prompt"`
			Mode   domain.Mode `json:"mode"`
		}
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		if strings.TrimSpace(args.Prompt) == "" {
			return nil, port.ErrEmptyPrompt
		}
		if !args.Mode.Valid() {
			args.Mode = domain.ModeGenerate
		}

		project, err := s.generator.Generate(ctx, args.Prompt, args.Mode)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content": textContent(fmt.Sprintf("Prepared %q with %d files: %s",
				project.Name, len(project.Files), strings.Join(project.Paths(), ", "))),
			"project": project,
		}, nil

	case "get_test_template":
		return map[string]any{
			"content": textContent(service.TestTemplate()),
		}, nil

	case "list_history":
		var args struct {
			Token string `json:"github_token"`
		}
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		if args.Token == "" {
			return nil, fmt.Errorf("%w: github_token is required", errInvalidParams)
		}

		records, found := s.history.Load(ctx, args.Token)
		if !found {
			return map[string]any{
				"content": textContent("No synced history found."),
				"history": []domain.SavedProjectRecord{},
			}, nil
		}
		lines := make([]string, 0, len(records))
		for _, r := range records {
			lines = append(lines, fmt.Sprintf("%s  %s", r.ID, r.Project.Name))
		}
		return map[string]any{
			"content": textContent(fmt.Sprintf("%d saved projects\n%s", len(records), strings.Join(lines, "\n"))),
			"history": records,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tool %s", errInvalidParams, req.Name)
	}
}

func writeResult(w http.ResponseWriter, id any, result any) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
