package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/autodeploy-agent/internal/service"
)

const (
	streamHeartbeat = 15 * time.Second
	streamTimeout   = 30 * time.Minute
)

// StreamHandler pushes session activity via Server-Sent Events.
type StreamHandler struct {
	sessions *service.Sessions
}

// NewStreamHandler creates a new SSE stream handler.
func NewStreamHandler(sessions *service.Sessions) *StreamHandler {
	return &StreamHandler{sessions: sessions}
}

// Register sets up streaming routes.
func (h *StreamHandler) Register(router fiber.Router) {
	router.Get("/session/events", h.Events)
}

// Events streams log lines and step changes. The first event is the full state.
func (h *StreamHandler) Events(c fiber.Ctx) error {
	o, err := sessionOf(c, h.sessions)
	if err != nil {
		return respondError(c, err)
	}

	feed := o.Feed()
	ch := feed.Subscribe()
	initial := viewOf(o.State())

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	slog.Debug("SSE client connected", "subscribers", feed.Subscribers())

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer func() {
			feed.Unsubscribe(ch)
			slog.Debug("SSE client disconnected", "subscribers", feed.Subscribers())
		}()

		data, _ := json.Marshal(initial)
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", string(data))
		if err := w.Flush(); err != nil {
			return
		}

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		timeout := time.After(streamTimeout)

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(ev)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, string(data))
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			case <-timeout:
				slog.Debug("SSE timeout")
				return
			}
			// a failed flush means the client went away
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}
