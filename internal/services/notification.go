package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/studyhub/internal/metrics"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService turns domain events into notification rows and serves the inbox.
// Fan-out is best-effort: failures are logged and counted, never returned, so the
// triggering write always stands.
type NotificationService struct {
	db  *gorm.DB
	hub *NotificationHub
}

func NewNotificationService(db *gorm.DB, hub *NotificationHub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

func studyLabel(study *models.Study) string {
	if t := strings.TrimSpace(study.Title); t != "" {
		return t
	}
	return "study"
}

func (s *NotificationService) ApplicationSubmitted(study *models.Study, applicant *models.User) {
	recipients, err := memberIDs(s.db, study.ID, models.RoleLeader, models.RoleManager)
	if err != nil {
		s.failed(models.NotifyApplicationSubmitted, study.ID, err)
		return
	}
	s.fanOut(models.NotifyApplicationSubmitted, study.ID, recipients, applicant.ID,
		fmt.Sprintf("[%s] New application from %s", studyLabel(study), applicant.DisplayName()),
		fmt.Sprintf("/my/studies/%d/applications", study.ID))
}

// ApplicationResolved notifies the applicant of an approved or rejected application.
func (s *NotificationService) ApplicationResolved(study *models.Study, app *models.Application) {
	switch app.Status {
	case models.ApplicationApproved:
		s.fanOut(models.NotifyApplicationApproved, study.ID, []uint{app.ApplicantID}, 0,
			fmt.Sprintf("[%s] Your application was approved.", studyLabel(study)),
			fmt.Sprintf("/room/%d", study.ID))
	case models.ApplicationRejected:
		s.fanOut(models.NotifyApplicationRejected, study.ID, []uint{app.ApplicantID}, 0,
			fmt.Sprintf("[%s] Your application was rejected.", studyLabel(study)),
			fmt.Sprintf("/studies/%d", study.ID))
	}
}

func (s *NotificationService) PostCreated(study *models.Study, post *models.Post, author *models.User) {
	recipients, err := memberIDs(s.db, study.ID)
	if err != nil {
		s.failed(models.NotifyPostCreated, study.ID, err)
		return
	}
	s.fanOut(models.NotifyPostCreated, study.ID, recipients, author.ID,
		fmt.Sprintf("[%s] New post: %s", studyLabel(study), post.Title),
		fmt.Sprintf("/room/%d/board/%d", study.ID, post.ID))
}

func (s *NotificationService) CommentCreated(study *models.Study, post *models.Post, commenter *models.User) {
	s.fanOut(models.NotifyCommentCreated, study.ID, []uint{post.WriterID}, commenter.ID,
		fmt.Sprintf("[%s] New comment on your post.", studyLabel(study)),
		fmt.Sprintf("/room/%d/board/%d", study.ID, post.ID))
}

// AttendanceChanged notifies target. actorID is excluded, so self check-in is silent.
func (s *NotificationService) AttendanceChanged(study *models.Study, session *models.StudySession, targetID, actorID uint, oldStatus, newStatus models.AttendanceStatus) {
	s.fanOut(models.NotifyAttendanceChanged, study.ID, []uint{targetID}, actorID,
		fmt.Sprintf("[%s] %s attendance changed: %s -> %s", studyLabel(study), session.Title, oldStatus, newStatus),
		fmt.Sprintf("/room/%d/sessions", study.ID))
}

func (s *NotificationService) FileUploaded(study *models.Study, uploader *models.User, originalFilename string) {
	recipients, err := memberIDs(s.db, study.ID)
	if err != nil {
		s.failed(models.NotifyFileUploaded, study.ID, err)
		return
	}
	name := strings.TrimSpace(originalFilename)
	if name == "" {
		name = "new file"
	}
	s.fanOut(models.NotifyFileUploaded, study.ID, recipients, uploader.ID,
		fmt.Sprintf("[%s] New file uploaded: %s", studyLabel(study), name),
		fmt.Sprintf("/room/%d/files", study.ID))
}

// fanOut stores one notification per recipient except exclude (0 excludes nobody).
func (s *NotificationService) fanOut(typ models.NotificationType, studyID uint, recipients []uint, exclude uint, message, link string) {
	now := time.Now()
	batch := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		if id == 0 || id == exclude {
			continue
		}
		batch = append(batch, models.Notification{
			UserID:    id,
			StudyID:   studyID,
			Type:      typ,
			Message:   truncate(message, 500),
			LinkURL:   link,
			CreatedAt: now,
		})
	}
	if len(batch) == 0 {
		return
	}

	if err := s.db.Create(&batch).Error; err != nil {
		s.failed(typ, studyID, err)
		return
	}
	metrics.Default().NotificationsCreated.WithLabelValues(string(typ)).Add(float64(len(batch)))

	if s.hub == nil {
		return
	}
	for i := range batch {
		s.hub.Publish(batch[i].UserID, eventFromNotification(&batch[i]))
	}
}

func (s *NotificationService) failed(typ models.NotificationType, studyID uint, err error) {
	metrics.Default().NotificationFailures.WithLabelValues(string(typ)).Inc()
	logger.Error().Err(err).
		Str("event", string(typ)).
		Uint("study_id", studyID).
		Msg("notification fan-out failed")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// --- inbox ---

func (s *NotificationService) List(user *models.User) ([]models.Notification, error) {
	var items []models.Notification
	err := s.db.Where("user_id = ?", user.ID).Order("created_at DESC, id DESC").Find(&items).Error
	return items, err
}

func (s *NotificationService) ListUnread(user *models.User) ([]models.Notification, error) {
	var items []models.Notification
	err := s.db.Where("user_id = ? AND is_read = ?", user.ID, false).Order("created_at DESC, id DESC").Find(&items).Error
	return items, err
}

func (s *NotificationService) UnreadCount(user *models.User) (int64, error) {
	if user == nil {
		return 0, nil
	}
	var n int64
	err := s.db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", user.ID, false).Count(&n).Error
	return n, err
}

// MarkAsRead marks one of the user's notifications read. Reading an already read
// notification performs no write. Other users' notifications are reported as not found.
func (s *NotificationService) MarkAsRead(id uint, user *models.User) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("id = ? AND user_id = ?", id, user.ID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("notification")
		}
		return nil, err
	}
	if n.Read {
		return &n, nil
	}
	if err := s.db.Model(&n).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	n.Read = true
	return &n, nil
}

func (s *NotificationService) MarkAllAsRead(user *models.User) (int64, error) {
	res := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
