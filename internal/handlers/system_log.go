package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
	cleanup          *services.CleanupScheduler
}

func NewSystemLogHandler(systemLogService *services.SystemLogService, cleanup *services.CleanupScheduler) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService, cleanup: cleanup}
}

// GET /api/admin/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := h.systemLogService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/admin/system-logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"modules": modules})
}

// Cleanup runs the nightly purge immediately, without taking the scheduler lock.
// POST /api/admin/system-logs/cleanup
func (h *SystemLogHandler) Cleanup(c *gin.Context) {
	result, err := h.cleanup.Cleanup(time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}
