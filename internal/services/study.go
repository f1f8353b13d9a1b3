package services

import (
	"strings"
	"time"

	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/utils"
	"gorm.io/gorm"
)

const (
	defaultStudyTitle       = "Untitled study"
	defaultStudyDescription = "No description yet."
	defaultMaxMembers       = 10
)

type StudyService struct {
	db *gorm.DB
}

func NewStudyService(db *gorm.DB) *StudyService {
	return &StudyService{db: db}
}

type StudyInput struct {
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description"`
	Category    string `json:"category" binding:"max=50"`
	StudyMode   string `json:"study_mode" binding:"max=30"`
	Location    string `json:"location" binding:"max=200"`
	MaxMembers  int    `json:"max_members"`
	IsPublic    *bool  `json:"is_public"`
}

func (in *StudyInput) apply(study *models.Study) {
	study.Title = utils.SanitizeText(in.Title)
	if study.Title == "" {
		study.Title = defaultStudyTitle
	}
	study.Description = utils.SanitizeHTML(in.Description)
	if study.Description == "" {
		study.Description = defaultStudyDescription
	}
	study.Category = strings.TrimSpace(in.Category)
	study.StudyMode = strings.ToUpper(strings.TrimSpace(in.StudyMode))
	study.Location = strings.TrimSpace(in.Location)
	study.MaxMembers = in.MaxMembers
	if study.MaxMembers < 1 {
		study.MaxMembers = defaultMaxMembers
	}
	if in.IsPublic != nil {
		study.IsPublic = *in.IsPublic
	}
}

type StudyDetail struct {
	Study                 *models.Study `json:"study"`
	MemberCount           int64         `json:"member_count"`
	IsMember              bool          `json:"is_member"`
	HasPendingApplication bool          `json:"has_pending_application"`
}

// MyStudy is one entry of the actor's study list.
type MyStudy struct {
	Study *models.Study         `json:"study"`
	Role  models.MembershipRole `json:"role"`
}

func (s *StudyService) ListPublic() ([]models.Study, error) {
	var studies []models.Study
	err := s.db.Preload("Leader").
		Where("is_public = ?", true).
		Order("created_at DESC, id DESC").
		Find(&studies).Error
	return studies, err
}

// Detail returns a study page. actor may be nil for anonymous visitors. Hidden studies
// are visible only to members and site admins.
func (s *StudyService) Detail(studyID uint, actor *models.User) (*StudyDetail, error) {
	var study models.Study
	if err := s.db.Preload("Leader").First(&study, studyID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("study")
		}
		return nil, err
	}
	detail := &StudyDetail{Study: &study}
	if err := s.db.Model(&models.Membership{}).Where("study_id = ?", study.ID).Count(&detail.MemberCount).Error; err != nil {
		return nil, err
	}

	if actor != nil {
		caps, err := capabilities(s.db, actor, &study)
		if err != nil {
			return nil, err
		}
		detail.IsMember = caps.IsMember
		var pending int64
		if err := s.db.Model(&models.Application{}).
			Where("study_id = ? AND applicant_id = ? AND status = ?", study.ID, actor.ID, models.ApplicationPending).
			Count(&pending).Error; err != nil {
			return nil, err
		}
		detail.HasPendingApplication = pending > 0
		if !study.IsPublic && !caps.CanViewRoom() {
			return nil, notFound("study")
		}
	} else if !study.IsPublic {
		return nil, notFound("study")
	}
	return detail, nil
}

// Create stores the study and the creator's LEADER membership in one transaction.
func (s *StudyService) Create(actor *models.User, in StudyInput) (*models.Study, error) {
	study := &models.Study{LeaderID: actor.ID, IsPublic: true}
	in.apply(study)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(study).Error; err != nil {
			return err
		}
		return tx.Create(&models.Membership{
			StudyID:  study.ID,
			UserID:   actor.ID,
			Role:     models.RoleLeader,
			JoinedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	uid := actor.ID
	LogInfo("study", "create", "Study created: "+study.Title, &uid, "", "", map[string]interface{}{"study_id": study.ID})
	return study, nil
}

func (s *StudyService) Update(studyID uint, actor *models.User, in StudyInput) (*models.Study, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageStudy() {
		return nil, ErrForbidden
	}
	in.apply(study)
	if err := s.db.Model(study).Select("title", "description", "category", "study_mode", "location", "max_members", "is_public").Updates(study).Error; err != nil {
		return nil, err
	}
	return study, nil
}

// ListMine returns the studies the actor belongs to, led studies first.
func (s *StudyService) ListMine(actor *models.User) ([]MyStudy, error) {
	var rows []models.Membership
	if err := s.db.Preload("Study").Preload("Study.Leader").
		Where("user_id = ?", actor.ID).
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]MyStudy, 0, len(rows))
	for _, role := range []models.MembershipRole{models.RoleLeader, models.RoleManager, models.RoleMember} {
		for _, m := range rows {
			if m.Role == role && m.Study != nil {
				out = append(out, MyStudy{Study: m.Study, Role: m.Role})
			}
		}
	}
	return out, nil
}

// --- site admin ---

func (s *StudyService) ListAll(actor *models.User) ([]models.Study, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var studies []models.Study
	err := s.db.Preload("Leader").Order("created_at DESC, id DESC").Find(&studies).Error
	return studies, err
}

func (s *StudyService) SetVisibility(studyID uint, public bool, actor *models.User) (*models.Study, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	study, err := loadStudy(s.db, studyID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(study).Update("is_public", public).Error; err != nil {
		return nil, err
	}
	study.IsPublic = public
	return study, nil
}
