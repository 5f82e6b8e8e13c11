package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/arturoeanton/autodeploy-agent/internal/adapter/ai"
	"github.com/arturoeanton/autodeploy-agent/internal/adapter/github"
	"github.com/arturoeanton/autodeploy-agent/internal/adapter/store"
	"github.com/arturoeanton/autodeploy-agent/internal/adapter/vercel"
	"github.com/arturoeanton/autodeploy-agent/internal/handler"
	"github.com/arturoeanton/autodeploy-agent/internal/mcp"
	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/middleware"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
	"github.com/arturoeanton/autodeploy-agent/internal/service"
	"github.com/arturoeanton/autodeploy-agent/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting AutoDeploy Agent",
		"port", cfg.Port,
		"generator", cfg.GeneratorProvider,
		"store", cfg.StoreDriver,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Local state store ────────────────────────────────────────────────
	kv, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open local store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	// ── Adapters ─────────────────────────────────────────────────────────
	generator := newGenerator(cfg)
	if cfg.GeneratorProvider == config.ProviderGemini && cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY is not set, generation will fail")
	}
	slog.Info("🤖 Code generator ready", "provider", cfg.GeneratorProvider, "model", generator.ModelName())
	githubClient := github.NewClient(cfg.GitHubAPIURL)
	hosting := vercel.NewProvider(cfg.VercelAPIURL)

	// ── Services ─────────────────────────────────────────────────────────
	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	sessions := service.NewSessions(service.Dependencies{
		Generator: generator,
		Identity:  githubClient,
		Publisher: githubClient,
		Sync:      githubClient,
		Hosting:   hosting,
		Local:     service.NewLocalState(kv),
	}, sessionTTL)
	go sessions.RunSweeper(context.Background(), time.Minute)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))
	app.Use(middleware.RequestMetrics())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.Mount(app, sessions, middleware.JWTConfig{
		Secret:    cfg.SessionSecret,
		Issuer:    cfg.SessionIssuer,
		ExpiresIn: sessionTTL,
	}, cfg.AppName)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(generator, githubClient, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func openStore(cfg *config.Config) (port.KVStore, error) {
	if cfg.StoreDriver == config.DriverRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.NewRedisStore(ctx, cfg.RedisURL)
	}
	return store.NewPostgresStore(cfg.DatabaseURL)
}

func newGenerator(cfg *config.Config) port.CodeGenerator {
	if cfg.GeneratorProvider == config.ProviderOllama {
		return ai.NewOllamaProvider(ai.OllamaEndpointConfig{
			BaseURL:     cfg.OllamaChatURL,
			Model:       cfg.OllamaChatModel,
			Token:       cfg.OllamaChatToken,
			Temperature: cfg.GeneratorTemperature,
		})
	}
	return ai.NewGeminiProvider(ai.GeminiConfig{
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		APIKey:      cfg.GeminiAPIKey,
		Temperature: cfg.GeneratorTemperature,
	})
}
