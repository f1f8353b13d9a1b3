package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/huangang/studyhub/internal/authz"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

type MembershipService struct {
	db *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

type MemberList struct {
	Members        []models.Membership   `json:"members"`
	MyRole         models.MembershipRole `json:"my_role,omitempty"`
	CanManageRoles bool                  `json:"can_manage_roles"`
	CanModerate    bool                  `json:"can_moderate"`
}

// RoleChange is the outcome of promote or demote.
type RoleChange struct {
	Membership *models.Membership `json:"membership"`
	authz.Transition
}

func (s *MembershipService) List(studyID uint, actor *models.User) (*MemberList, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	var members []models.Membership
	if err := s.db.Preload("User").Where("study_id = ?", study.ID).Find(&members).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := members[i].Role.Rank(), members[j].Role.Rank()
		if ri != rj {
			return ri < rj
		}
		return members[i].UserID < members[j].UserID
	})
	return &MemberList{
		Members:        members,
		MyRole:         caps.Role,
		CanManageRoles: caps.CanManageRoles(),
		CanModerate:    caps.CanModerate(),
	}, nil
}

// loadTarget finds a membership of this study. Rows of other studies are not found.
func (s *MembershipService) loadTarget(studyID, membershipID uint) (*models.Membership, error) {
	var m models.Membership
	err := s.db.Where("id = ? AND study_id = ?", membershipID, studyID).First(&m).Error
	if isRecordNotFound(err) {
		return nil, notFound("membership")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MembershipService) Promote(studyID, membershipID uint, actor *models.User) (*RoleChange, error) {
	return s.changeRole(studyID, membershipID, actor, authz.Promote)
}

func (s *MembershipService) Demote(studyID, membershipID uint, actor *models.User) (*RoleChange, error) {
	return s.changeRole(studyID, membershipID, actor, authz.Demote)
}

func (s *MembershipService) changeRole(studyID, membershipID uint, actor *models.User, policy func(authz.Capabilities, models.Membership) (authz.Transition, error)) (*RoleChange, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageRoles() {
		return nil, ErrForbidden
	}
	target, err := s.loadTarget(study.ID, membershipID)
	if err != nil {
		return nil, err
	}
	tr, err := policy(caps, *target)
	if err != nil {
		return nil, err
	}
	if !tr.Changed {
		return &RoleChange{Membership: target, Transition: tr}, nil
	}

	// Guard on the current role so a LEADER row can never be rewritten here.
	res := s.db.Model(&models.Membership{}).
		Where("id = ? AND role = ?", target.ID, tr.From).
		Update("role", tr.To)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// changed underneath us; report the current state as a no-op
		current, err := s.loadTarget(study.ID, target.ID)
		if err != nil {
			return nil, err
		}
		return &RoleChange{Membership: current, Transition: authz.Transition{From: current.Role, To: current.Role}}, nil
	}
	target.Role = tr.To

	uid := actor.ID
	LogInfo("membership", "role_change", fmt.Sprintf("Membership %d: %s -> %s", target.ID, tr.From, tr.To), &uid, "", "",
		map[string]interface{}{"study_id": study.ID, "user_id": target.UserID})
	return &RoleChange{Membership: target, Transition: tr}, nil
}

func (s *MembershipService) Remove(studyID, membershipID uint, actor *models.User) error {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return err
	}
	if !caps.CanModerate() {
		return ErrForbidden
	}
	target, err := s.loadTarget(study.ID, membershipID)
	if err != nil {
		return err
	}
	if err := authz.Remove(caps, *target); err != nil {
		return err
	}
	if err := s.db.Where("id = ? AND role <> ?", target.ID, models.RoleLeader).Delete(&models.Membership{}).Error; err != nil {
		return err
	}
	logger.Info().Uint("study_id", study.ID).Uint("user_id", target.UserID).Uint("actor_id", actor.ID).Msg("member removed")
	return nil
}

func (s *MembershipService) Leave(studyID uint, actor *models.User) error {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return err
	}
	if err := authz.Leave(caps); err != nil {
		if errors.Is(err, authz.ErrNotMember) {
			return notFound("membership")
		}
		return err
	}
	if err := s.db.Where("id = ? AND role <> ?", caps.MembershipID, models.RoleLeader).Delete(&models.Membership{}).Error; err != nil {
		return err
	}
	logger.Info().Uint("study_id", study.ID).Uint("user_id", actor.ID).Msg("member left")
	return nil
}
