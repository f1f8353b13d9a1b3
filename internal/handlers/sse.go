package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/logger"
)

const sseRetryMillis = 5000

// SSEHandler streams live notifications to connected browsers.
type SSEHandler struct {
	hub       *services.NotificationHub
	keepAlive time.Duration
}

func NewSSEHandler(hub *services.NotificationHub) *SSEHandler {
	return &SSEHandler{hub: hub, keepAlive: 30 * time.Second}
}

// StreamNotifications pushes the caller's new notifications as they are stored.
// Authentication runs in middleware, which also accepts ?token= for EventSource.
// GET /api/events/notifications
func (h *SSEHandler) StreamNotifications(c *gin.Context) {
	user := currentUser(c)
	clientID := uuid.NewString()
	log := logger.Get().With().Str("client_id", clientID).Uint("user_id", user.ID).Logger()

	events := h.hub.Subscribe(clientID, user.ID)
	defer h.hub.Unsubscribe(clientID)

	header := c.Writer.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// the retry hint doubles as the "stream is open" signal before any event
	if err := sse.Encode(c.Writer, sse.Event{Retry: sseRetryMillis, Event: "ready", Data: "ok"}); err != nil {
		return
	}
	c.Writer.Flush()
	log.Debug().Int("clients", h.hub.ClientCount()).Msg("notification stream opened")

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()
	ctx := c.Request.Context()
	for {
		var err error
		select {
		case <-ctx.Done():
			log.Debug().Msg("notification stream closed")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			err = sse.Encode(c.Writer, sse.Event{
				Id:    strconv.FormatUint(uint64(ev.ID), 10),
				Event: "notification",
				Data:  ev,
			})
		case <-ping.C:
			_, err = c.Writer.WriteString(": ping\n\n")
		}
		if err != nil {
			log.Debug().Err(err).Msg("notification stream write failed")
			return
		}
		c.Writer.Flush()
	}
}
