package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type MemberHandler struct {
	memberships *services.MembershipService
}

func NewMemberHandler(memberships *services.MembershipService) *MemberHandler {
	return &MemberHandler{memberships: memberships}
}

// GET /api/room/:studyId/members
func (h *MemberHandler) List(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	list, err := h.memberships.List(studyID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// POST /api/room/:studyId/members/:membershipId/promote
func (h *MemberHandler) Promote(c *gin.Context) {
	h.changeRole(c, h.memberships.Promote)
}

// POST /api/room/:studyId/members/:membershipId/demote
func (h *MemberHandler) Demote(c *gin.Context) {
	h.changeRole(c, h.memberships.Demote)
}

func (h *MemberHandler) changeRole(c *gin.Context, action func(studyID, membershipID uint, actor *models.User) (*services.RoleChange, error)) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	membershipID, ok := idParam(c, "membershipId")
	if !ok {
		return
	}
	change, err := action(studyID, membershipID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, change)
}

// POST /api/room/:studyId/members/:membershipId/remove
func (h *MemberHandler) Remove(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	membershipID, ok := idParam(c, "membershipId")
	if !ok {
		return
	}
	if err := h.memberships.Remove(studyID, membershipID, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"removed": membershipID})
}

// POST /api/room/:studyId/members/leave
func (h *MemberHandler) Leave(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	if err := h.memberships.Leave(studyID, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"left": studyID})
}
