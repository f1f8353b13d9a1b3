package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/my/profile
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.userService.Profile(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// PUT /api/my/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.ProfileInput
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// GET /api/admin/users
func (h *UserHandler) List(c *gin.Context) {
	var req services.UserListRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := h.userService.List(currentUser(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// PUT /api/admin/users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.SetRole(currentUser(c), id, req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// PUT /api/admin/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.SetActive(currentUser(c), id, *req.IsActive)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// GET /api/admin/dashboard
func (h *UserHandler) Dashboard(c *gin.Context) {
	d, err := h.userService.Dashboard(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, d)
}
