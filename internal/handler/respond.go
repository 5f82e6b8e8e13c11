package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/middleware"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

// stateView is the session state as sent to clients. Tokens never leave the server.
type stateView struct {
	domain.AppState
	Username          string `json:"githubUsername"`
	AutoHosting       bool   `json:"useBetaDeploy"`
	HostingConfigured bool   `json:"hasVercelToken"`
}

func viewOf(s domain.AppState) stateView {
	return stateView{
		AppState:          s,
		Username:          s.Credentials.SourceHostUsername,
		AutoHosting:       s.Credentials.AutoHostingEnabled,
		HostingConfigured: s.Credentials.HostingToken != "",
	}
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	var (
		authErr    *port.AuthError
		genErr     *port.GenerationError
		repoErr    *port.RepoCreationError
		uploadErr  *port.UploadError
		hostingErr *port.HostingLinkError
		syncErr    *port.SyncError
	)
	switch {
	case errors.Is(err, port.ErrInvalidTransition), errors.Is(err, port.ErrNoProject):
		return fiber.StatusConflict
	case errors.Is(err, port.ErrEmptyPrompt):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrSessionNotFound), errors.As(err, &authErr):
		return fiber.StatusUnauthorized
	case errors.As(err, &genErr), errors.As(err, &repoErr), errors.As(err, &uploadErr),
		errors.As(err, &hostingErr), errors.As(err, &syncErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// sessionOf resolves the orchestrator of the authenticated session.
func sessionOf(c fiber.Ctx, sessions *service.Sessions) (*service.Orchestrator, error) {
	sc := middleware.GetSessionContext(c)
	if sc == nil {
		return nil, port.ErrSessionNotFound
	}
	return sessions.Get(sc.SessionID)
}
