// Package authz derives what a user may do inside a study from the user's site
// role and study memberships. It performs no I/O; callers load the rows.
package authz

import (
	"errors"

	"github.com/huangang/studyhub/internal/models"
)

var (
	// ErrDenied is returned when the actor lacks the capability for an action.
	ErrDenied = errors.New("permission denied")
	// ErrNotMember is returned by Leave when the actor has no membership to leave.
	ErrNotMember = errors.New("not a member of this study")
)

// Capabilities are the role flags of one user in one study.
type Capabilities struct {
	UserID            uint
	IsAuthenticated   bool
	IsMember          bool
	MembershipID      uint
	Role              models.MembershipRole // empty without a membership row
	IsLeader          bool
	IsManager         bool
	IsLeaderOrManager bool
	IsSiteAdmin       bool
	IsStudyLeader     bool // user is study.LeaderID, regardless of membership rows
}

// Evaluate computes the capabilities of user in study. memberships may contain rows of
// other studies; only the one matching study and user is considered. A nil user yields
// the zero value, which denies everything.
func Evaluate(user *models.User, study *models.Study, memberships []models.Membership) Capabilities {
	if user == nil {
		return Capabilities{}
	}
	caps := Capabilities{
		UserID:          user.ID,
		IsAuthenticated: true,
		IsSiteAdmin:     user.Role == models.UserRoleAdmin,
	}
	if study == nil {
		return caps
	}
	caps.IsStudyLeader = study.LeaderID == user.ID

	for _, m := range memberships {
		if m.StudyID != study.ID || m.UserID != user.ID {
			continue
		}
		caps.IsMember = true
		caps.MembershipID = m.ID
		caps.Role = m.Role
		caps.IsLeader = m.Role == models.RoleLeader
		caps.IsManager = m.Role == models.RoleManager
		caps.IsLeaderOrManager = caps.IsLeader || caps.IsManager
		break
	}
	return caps
}

// IsLeaderOrMember is the bare room and session access check. It does not consult the
// site role.
func IsLeaderOrMember(user *models.User, study *models.Study, hasMembership bool) bool {
	if user == nil || study == nil {
		return false
	}
	return study.LeaderID == user.ID || hasMembership
}

func (c Capabilities) CanViewRoom() bool {
	return c.IsMember || c.IsSiteAdmin
}

// CanModerate covers notices, foreign content deletion and file management.
func (c Capabilities) CanModerate() bool {
	return c.IsLeaderOrManager || c.IsSiteAdmin
}

func (c Capabilities) CanManageRoles() bool {
	return c.IsLeader || c.IsSiteAdmin
}

func (c Capabilities) CanPostNotice() bool {
	return c.CanModerate()
}

func (c Capabilities) CanEditContent(ownerID uint) bool {
	return c.IsAuthenticated && c.UserID == ownerID
}

func (c Capabilities) CanDeleteContent(ownerID uint) bool {
	return c.CanEditContent(ownerID) || c.CanModerate()
}

func (c Capabilities) CanUploadFile() bool {
	return c.CanModerate()
}

func (c Capabilities) CanDeleteFile() bool {
	return c.CanModerate()
}

// CanOverrideAttendance is decided by membership role alone; site admins get no bypass.
func (c Capabilities) CanOverrideAttendance() bool {
	return c.IsLeaderOrManager
}

// CanManageStudy covers editing the study, resolving applications, creating sessions and
// viewing the attendance board. Only the study's leader qualifies.
func (c Capabilities) CanManageStudy() bool {
	return c.IsStudyLeader
}
