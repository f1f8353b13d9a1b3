package services

import (
	"time"

	"github.com/huangang/studyhub/internal/metrics"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

// AttendanceResult reports what a recorder call did.
type AttendanceResult struct {
	Attendance *models.Attendance      `json:"attendance"`
	OldStatus  models.AttendanceStatus `json:"old_status,omitempty"`
	NewStatus  models.AttendanceStatus `json:"new_status"`
	Created    bool                    `json:"created"`
	Changed    bool                    `json:"changed"`
}

// AttendanceRecorder applies status changes to attendance rows. A change writes the row,
// appends one change-log entry and notifies the target; an unchanged status does nothing.
// Callers are responsible for authorization and for matching session to study.
type AttendanceRecorder struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewAttendanceRecorder(db *gorm.DB, notifier *NotificationService) *AttendanceRecorder {
	return &AttendanceRecorder{db: db, notifier: notifier}
}

// Update changes an existing row and reports not found when there is none.
func (r *AttendanceRecorder) Update(study *models.Study, session *models.StudySession, targetID uint, status models.AttendanceStatus, actor *models.User) (*AttendanceResult, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown attendance status")
	}
	att, err := r.find(session.ID, targetID)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, notFound("attendance")
	}
	return r.transition(study, session, att, status, actor)
}

// Record creates the row when absent, otherwise behaves like Update. A created row gets
// no change-log entry and notifies with the new status on both sides.
func (r *AttendanceRecorder) Record(study *models.Study, session *models.StudySession, targetID uint, status models.AttendanceStatus, actor *models.User) (*AttendanceResult, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown attendance status")
	}
	att, err := r.find(session.ID, targetID)
	if err != nil {
		return nil, err
	}
	if att != nil {
		return r.transition(study, session, att, status, actor)
	}

	now := time.Now()
	att = &models.Attendance{
		SessionID: session.ID,
		UserID:    targetID,
		Status:    status,
		CheckedAt: &now,
	}
	if err := r.db.Create(att).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// lost a race with a concurrent create; treat the winner's row as existing
		existing, ferr := r.find(session.ID, targetID)
		if ferr != nil || existing == nil {
			return nil, err
		}
		return r.transition(study, session, existing, status, actor)
	}

	metrics.Default().AttendanceChanges.WithLabelValues("created").Inc()
	r.notifier.AttendanceChanged(study, session, targetID, actor.ID, status, status)
	return &AttendanceResult{Attendance: att, OldStatus: status, NewStatus: status, Created: true, Changed: true}, nil
}

func (r *AttendanceRecorder) find(sessionID, userID uint) (*models.Attendance, error) {
	var att models.Attendance
	err := r.db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&att).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *AttendanceRecorder) transition(study *models.Study, session *models.StudySession, att *models.Attendance, status models.AttendanceStatus, actor *models.User) (*AttendanceResult, error) {
	old := att.Status
	if old == status {
		metrics.Default().AttendanceChanges.WithLabelValues("unchanged").Inc()
		return &AttendanceResult{Attendance: att, OldStatus: old, NewStatus: status}, nil
	}

	now := time.Now()
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(att).Updates(map[string]interface{}{
			"status":     status,
			"checked_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.AttendanceChangeLog{
			SessionID:    session.ID,
			TargetUserID: att.UserID,
			ChangedByID:  actor.ID,
			OldStatus:    old,
			NewStatus:    status,
			ChangedAt:    now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	att.Status = status
	att.CheckedAt = &now

	logger.Info().
		Uint("study_id", study.ID).
		Uint("session_id", session.ID).
		Uint("user_id", att.UserID).
		Uint("actor_id", actor.ID).
		Str("from", string(old)).
		Str("to", string(status)).
		Msg("attendance changed")

	metrics.Default().AttendanceChanges.WithLabelValues("changed").Inc()
	r.notifier.AttendanceChanged(study, session, att.UserID, actor.ID, old, status)
	return &AttendanceResult{Attendance: att, OldStatus: old, NewStatus: status, Changed: true}, nil
}
