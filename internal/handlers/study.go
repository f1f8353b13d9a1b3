package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type StudyHandler struct {
	studies      *services.StudyService
	applications *services.ApplicationService
	rooms        *services.RoomService
}

func NewStudyHandler(studies *services.StudyService, applications *services.ApplicationService, rooms *services.RoomService) *StudyHandler {
	return &StudyHandler{studies: studies, applications: applications, rooms: rooms}
}

// ListPublic lists public studies, newest first. Anonymous access allowed.
// GET /api/studies
func (h *StudyHandler) ListPublic(c *gin.Context) {
	studies, err := h.studies.ListPublic()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, studies)
}

// GET /api/studies/:id
func (h *StudyHandler) Detail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.studies.Detail(id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, detail)
}

// GET /api/my/studies
func (h *StudyHandler) ListMine(c *gin.Context) {
	studies, err := h.studies.ListMine(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, studies)
}

// POST /api/my/studies
func (h *StudyHandler) Create(c *gin.Context) {
	var req services.StudyInput
	if !bindJSON(c, &req) {
		return
	}
	study, err := h.studies.Create(currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, study)
}

// PUT /api/my/studies/:id
func (h *StudyHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.StudyInput
	if !bindJSON(c, &req) {
		return
	}
	study, err := h.studies.Update(id, currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, study)
}

// POST /api/my/studies/:id/apply
func (h *StudyHandler) Apply(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&req)
	app, err := h.applications.Apply(id, currentUser(c), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, app)
}

// GET /api/my/studies/:id/applications
func (h *StudyHandler) Applications(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	list, err := h.applications.List(id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// POST /api/my/studies/:id/applications/:appId/approve
func (h *StudyHandler) Approve(c *gin.Context) {
	h.resolve(c, h.applications.Approve)
}

// POST /api/my/studies/:id/applications/:appId/reject
func (h *StudyHandler) Reject(c *gin.Context) {
	h.resolve(c, h.applications.Reject)
}

func (h *StudyHandler) resolve(c *gin.Context, action func(studyID, appID uint, actor *models.User) (*models.Application, error)) {
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}
	appID, ok := idParam(c, "appId")
	if !ok {
		return
	}
	app, err := action(studyID, appID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, app)
}

// Room is the dashboard of a study room.
// GET /api/room/:studyId
func (h *StudyHandler) Room(c *gin.Context) {
	id, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	dash, err := h.rooms.Dashboard(id, currentUser(c), time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, dash)
}

// GET /api/admin/studies
func (h *StudyHandler) ListAll(c *gin.Context) {
	studies, err := h.studies.ListAll(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, studies)
}

// POST /api/admin/studies/:id/hide
func (h *StudyHandler) Hide(c *gin.Context) {
	h.setVisibility(c, false)
}

// POST /api/admin/studies/:id/show
func (h *StudyHandler) Show(c *gin.Context) {
	h.setVisibility(c, true)
}

func (h *StudyHandler) setVisibility(c *gin.Context, public bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	study, err := h.studies.SetVisibility(id, public, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, study)
}
