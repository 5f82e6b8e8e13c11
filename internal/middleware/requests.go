package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
)

// RequestMetrics records every request in Prometheus and the debug log.
func RequestMetrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		method := c.Method()
		path := c.Path()

		err := c.Next()

		// Label by route pattern so ids in paths do not explode cardinality
		route := path
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		user := "anonymous"
		if s := GetSessionContext(c); s != nil {
			user = s.Username
		}

		duration := time.Since(start)
		metrics.RecordHTTPRequest(method, route, status, duration)
		slog.Debug("http request",
			"method", method,
			"path", path,
			"status", status,
			"user", user,
			"duration_ms", duration.Milliseconds(),
		)

		return err
	}
}
