package authz

import "github.com/huangang/studyhub/internal/models"

// Transition describes a role change. Changed is false for no-ops, which are not errors.
type Transition struct {
	From    models.MembershipRole `json:"from"`
	To      models.MembershipRole `json:"to"`
	Changed bool                  `json:"changed"`
}

func unchanged(role models.MembershipRole) Transition {
	return Transition{From: role, To: role}
}

// Promote moves a MEMBER to MANAGER. LEADER and MANAGER targets are left as they are.
func Promote(actor Capabilities, target models.Membership) (Transition, error) {
	if !actor.CanManageRoles() {
		return Transition{}, ErrDenied
	}
	if target.Role != models.RoleMember {
		return unchanged(target.Role), nil
	}
	return Transition{From: models.RoleMember, To: models.RoleManager, Changed: true}, nil
}

// Demote moves a MANAGER to MEMBER. LEADER and MEMBER targets are left as they are.
func Demote(actor Capabilities, target models.Membership) (Transition, error) {
	if !actor.CanManageRoles() {
		return Transition{}, ErrDenied
	}
	if target.Role != models.RoleManager {
		return unchanged(target.Role), nil
	}
	return Transition{From: models.RoleManager, To: models.RoleMember, Changed: true}, nil
}

// Remove checks whether actor may delete target. The LEADER row can never be removed,
// and nobody removes themselves this way.
func Remove(actor Capabilities, target models.Membership) error {
	if target.Role == models.RoleLeader {
		return ErrDenied
	}
	if actor.IsAuthenticated && target.UserID == actor.UserID {
		return ErrDenied
	}
	if actor.CanManageRoles() {
		return nil
	}
	if actor.IsManager && target.Role == models.RoleMember {
		return nil
	}
	return ErrDenied
}

// Leave checks whether actor may drop their own membership. The LEADER cannot leave:
// there is no leadership transfer, so the study would lose its leader.
func Leave(actor Capabilities) error {
	if !actor.IsMember {
		return ErrNotMember
	}
	if actor.IsLeader {
		return ErrDenied
	}
	return nil
}
