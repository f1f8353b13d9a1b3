package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangang/studyhub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewApplicationService(db *gorm.DB, notifier *NotificationService) *ApplicationService {
	return &ApplicationService{db: db, notifier: notifier}
}

type ApplicationList struct {
	Pending []models.Application `json:"pending"`
	All     []models.Application `json:"all"`
}

func pendingKey(studyID, applicantID uint) *string {
	k := fmt.Sprintf("%d:%d", studyID, applicantID)
	return &k
}

// Apply files a join request. Members and users with an open request get ErrConflict;
// the unique pending key turns a concurrent duplicate into the same error.
func (s *ApplicationService) Apply(studyID uint, actor *models.User, message string) (*models.Application, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	if caps.IsMember || caps.IsStudyLeader {
		return nil, conflict("already a member of this study")
	}
	if !study.IsPublic {
		return nil, notFound("study")
	}

	var pending int64
	if err := s.db.Model(&models.Application{}).
		Where("study_id = ? AND applicant_id = ? AND status = ?", study.ID, actor.ID, models.ApplicationPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, conflict("an application is already pending")
	}

	app := &models.Application{
		StudyID:     study.ID,
		ApplicantID: actor.ID,
		Message:     strings.TrimSpace(message),
		Status:      models.ApplicationPending,
		AppliedAt:   time.Now(),
		PendingKey:  pendingKey(study.ID, actor.ID),
	}
	if err := s.db.Create(app).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("an application is already pending")
		}
		return nil, err
	}

	s.notifier.ApplicationSubmitted(study, actor)
	return app, nil
}

// List returns the study's applications, newest first. Study leader only.
func (s *ApplicationService) List(studyID uint, actor *models.User) (*ApplicationList, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageStudy() {
		return nil, ErrForbidden
	}
	var all []models.Application
	if err := s.db.Preload("Applicant").Where("study_id = ?", study.ID).Order("id DESC").Find(&all).Error; err != nil {
		return nil, err
	}
	out := &ApplicationList{All: all, Pending: make([]models.Application, 0)}
	for _, a := range all {
		if a.Status == models.ApplicationPending {
			out.Pending = append(out.Pending, a)
		}
	}
	return out, nil
}

// Approve accepts a pending application and adds the applicant as MEMBER.
func (s *ApplicationService) Approve(studyID, appID uint, actor *models.User) (*models.Application, error) {
	return s.resolve(studyID, appID, actor, models.ApplicationApproved)
}

func (s *ApplicationService) Reject(studyID, appID uint, actor *models.User) (*models.Application, error) {
	return s.resolve(studyID, appID, actor, models.ApplicationRejected)
}

func (s *ApplicationService) resolve(studyID, appID uint, actor *models.User, status models.ApplicationStatus) (*models.Application, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageStudy() {
		return nil, ErrForbidden
	}

	var app models.Application
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND study_id = ?", appID, study.ID).First(&app).Error; err != nil {
			if isRecordNotFound(err) {
				return notFound("application")
			}
			return err
		}
		if app.Status != models.ApplicationPending {
			return conflict("application already " + strings.ToLower(string(app.Status)))
		}

		if status == models.ApplicationApproved {
			if err := admit(tx, study, app.ApplicantID); err != nil {
				return err
			}
		}

		now := time.Now()
		processedBy := actor.ID
		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", app.ID, models.ApplicationPending).
			Updates(map[string]interface{}{
				"status":          status,
				"processed_at":    now,
				"processed_by_id": processedBy,
				"pending_key":     nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("application was resolved concurrently")
		}
		app.Status = status
		app.ProcessedAt = &now
		app.ProcessedByID = &processedBy
		app.PendingKey = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	uid := actor.ID
	LogInfo("application", strings.ToLower(string(status)), fmt.Sprintf("Application %d %s", app.ID, strings.ToLower(string(status))), &uid, "", "",
		map[string]interface{}{"study_id": study.ID, "applicant_id": app.ApplicantID})
	s.notifier.ApplicationResolved(study, &app)
	return &app, nil
}

// admit creates a MEMBER row unless one exists, honouring the study's capacity.
func admit(tx *gorm.DB, study *models.Study, userID uint) error {
	var existing int64
	if err := tx.Model(&models.Membership{}).Where("study_id = ? AND user_id = ?", study.ID, userID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	var members int64
	if err := tx.Model(&models.Membership{}).Where("study_id = ?", study.ID).Count(&members).Error; err != nil {
		return err
	}
	if study.MaxMembers > 0 && members >= int64(study.MaxMembers) {
		return ErrStudyFull
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Membership{
		StudyID:  study.ID,
		UserID:   userID,
		Role:     models.RoleMember,
		JoinedAt: time.Now(),
	}).Error
}
