package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/internal/storage"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, queue and live streams.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.NotificationHub
	store storage.Store
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.NotificationHub, store storage.Store) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub, store: store}
}

// CheckHealth answers 503 when the database is unreachable.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	components := gin.H{
		"database":    dbStatus,
		"queue_mode":  queueMode,
		"sse_clients": h.hub.ClientCount(),
	}
	if h.store != nil {
		components["storage"] = h.store.Driver()
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "studyhub",
		"components": components,
	})
}
