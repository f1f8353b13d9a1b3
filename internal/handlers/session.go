package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func sessionParams(c *gin.Context) (studyID, sessionID uint, ok bool) {
	if studyID, ok = idParam(c, "studyId"); !ok {
		return
	}
	sessionID, ok = idParam(c, "sessionId")
	return
}

// GET /api/room/:studyId/sessions
func (h *SessionHandler) List(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	list, err := h.sessions.List(studyID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// POST /api/room/:studyId/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	var req services.SessionInput
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.sessions.Create(studyID, currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, view)
}

// POST /api/room/:studyId/sessions/:sessionId/checkin
func (h *SessionHandler) CheckIn(c *gin.Context) {
	studyID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	result, err := h.sessions.CheckIn(studyID, sessionID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// GET /api/room/:studyId/sessions/:sessionId/attendance
func (h *SessionHandler) Board(c *gin.Context) {
	studyID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	rows, err := h.sessions.Board(studyID, sessionID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, rows)
}

// GET /api/room/:studyId/sessions/:sessionId/attendance/logs
func (h *SessionHandler) Logs(c *gin.Context) {
	studyID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	logs, err := h.sessions.Logs(studyID, sessionID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, logs)
}

type attendanceRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAttendance changes an existing attendance row; a member without a row is not found.
// PUT /api/room/:studyId/sessions/:sessionId/attendance/:userId
func (h *SessionHandler) UpdateAttendance(c *gin.Context) {
	h.override(c, false)
}

// RecordAttendance creates the row when missing.
// POST /api/room/:studyId/sessions/:sessionId/attendance/:userId/update
func (h *SessionHandler) RecordAttendance(c *gin.Context) {
	h.override(c, true)
}

func (h *SessionHandler) override(c *gin.Context, upsert bool) {
	studyID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	var req attendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	status := models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		response.Error(c, response.NewValidation("status", "must be one of PRESENT, LATE, ABSENT, EXCUSED"))
		return
	}
	result, err := h.sessions.Override(studyID, sessionID, userID, status, currentUser(c), upsert)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}
