package services

import (
	"errors"
	"strings"

	"github.com/huangang/studyhub/internal/authz"
	"github.com/huangang/studyhub/internal/models"
	"gorm.io/gorm"
)

func loadStudy(db *gorm.DB, studyID uint) (*models.Study, error) {
	var study models.Study
	if err := db.First(&study, studyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("study")
		}
		return nil, err
	}
	return &study, nil
}

// userMemberships loads the actor's membership rows for one study. At most one exists.
func userMemberships(db *gorm.DB, studyID, userID uint) ([]models.Membership, error) {
	var rows []models.Membership
	err := db.Where("study_id = ? AND user_id = ?", studyID, userID).Find(&rows).Error
	return rows, err
}

func capabilities(db *gorm.DB, actor *models.User, study *models.Study) (authz.Capabilities, error) {
	if actor == nil {
		return authz.Capabilities{}, nil
	}
	rows, err := userMemberships(db, study.ID, actor.ID)
	if err != nil {
		return authz.Capabilities{}, err
	}
	return authz.Evaluate(actor, study, rows), nil
}

// studyAccess loads the study and the actor's capabilities in it.
func studyAccess(db *gorm.DB, actor *models.User, studyID uint) (*models.Study, authz.Capabilities, error) {
	study, err := loadStudy(db, studyID)
	if err != nil {
		return nil, authz.Capabilities{}, err
	}
	caps, err := capabilities(db, actor, study)
	if err != nil {
		return nil, authz.Capabilities{}, err
	}
	return study, caps, nil
}

// roomAccess is studyAccess for operations that require CanViewRoom.
func roomAccess(db *gorm.DB, actor *models.User, studyID uint) (*models.Study, authz.Capabilities, error) {
	study, caps, err := studyAccess(db, actor, studyID)
	if err != nil {
		return nil, caps, err
	}
	if !caps.CanViewRoom() {
		return nil, caps, ErrForbidden
	}
	return study, caps, nil
}

func memberIDs(db *gorm.DB, studyID uint, roles ...models.MembershipRole) ([]uint, error) {
	q := db.Model(&models.Membership{}).Where("study_id = ?", studyID)
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	var ids []uint
	err := q.Order("id").Pluck("user_id", &ids).Error
	return ids, err
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// drivers without error translation
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
