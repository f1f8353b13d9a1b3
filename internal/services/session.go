package services

import (
	"math"
	"strings"
	"time"

	"github.com/huangang/studyhub/internal/authz"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

type SessionService struct {
	db       *gorm.DB
	recorder *AttendanceRecorder
	holidays *HolidayCalendar
}

func NewSessionService(db *gorm.DB, recorder *AttendanceRecorder, holidays *HolidayCalendar) *SessionService {
	return &SessionService{db: db, recorder: recorder, holidays: holidays}
}

type SessionView struct {
	models.StudySession
	MyStatus  models.AttendanceStatus `json:"my_status,omitempty"`
	IsHoliday bool                    `json:"is_holiday"`
}

type SessionList struct {
	Sessions       []SessionView `json:"sessions"`
	Total          int           `json:"total"`
	Present        int           `json:"present"`
	AttendanceRate int           `json:"attendance_rate"`
	CanManage      bool          `json:"can_manage"`
}

type SessionInput struct {
	Title       string    `json:"title" binding:"required,notblank,max=200"`
	Description string    `json:"description"`
	SessionAt   time.Time `json:"session_at" binding:"required"`
	Location    string    `json:"location" binding:"max=200"`
}

// AttendanceRow is one member on the leader's attendance board. Status is empty when
// the member has no row for the session.
type AttendanceRow struct {
	UserID    uint                    `json:"user_id"`
	Name      string                  `json:"name"`
	Role      models.MembershipRole   `json:"role"`
	Status    models.AttendanceStatus `json:"status"`
	CheckedAt *time.Time              `json:"checked_at,omitempty"`
}

// access applies the bare leader-or-member check used by every session page.
func (s *SessionService) access(studyID uint, actor *models.User) (*models.Study, authz.Capabilities, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, caps, err
	}
	if !authz.IsLeaderOrMember(actor, study, caps.IsMember) {
		return nil, caps, ErrForbidden
	}
	return study, caps, nil
}

func (s *SessionService) loadSession(studyID, sessionID uint) (*models.StudySession, error) {
	var session models.StudySession
	err := s.db.Where("id = ? AND study_id = ?", sessionID, studyID).First(&session).Error
	if isRecordNotFound(err) {
		return nil, notFound("session")
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) List(studyID uint, actor *models.User) (*SessionList, error) {
	study, caps, err := s.access(studyID, actor)
	if err != nil {
		return nil, err
	}

	var sessions []models.StudySession
	if err := s.db.Where("study_id = ?", study.ID).Order("session_at ASC, id ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}
	mine := make(map[uint]models.AttendanceStatus)
	if len(ids) > 0 {
		var rows []models.Attendance
		if err := s.db.Where("user_id = ? AND session_id IN ?", actor.ID, ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, a := range rows {
			mine[a.SessionID] = a.Status
		}
	}

	out := &SessionList{
		Sessions:  make([]SessionView, 0, len(sessions)),
		Total:     len(sessions),
		CanManage: caps.CanManageStudy(),
	}
	for _, sess := range sessions {
		status := mine[sess.ID]
		if status == models.AttendancePresent {
			out.Present++
		}
		out.Sessions = append(out.Sessions, SessionView{
			StudySession: sess,
			MyStatus:     status,
			IsHoliday:    s.holidays.IsHoliday(sess.SessionAt),
		})
	}
	if out.Total > 0 {
		out.AttendanceRate = int(math.Round(float64(out.Present) * 100 / float64(out.Total)))
	}
	return out, nil
}

func (s *SessionService) Create(studyID uint, actor *models.User, in SessionInput) (*SessionView, error) {
	study, caps, err := s.access(studyID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageStudy() {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if in.SessionAt.IsZero() {
		return nil, invalid("session_at", "is required")
	}

	session := &models.StudySession{
		StudyID:     study.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		SessionAt:   in.SessionAt,
		Location:    strings.TrimSpace(in.Location),
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	logger.Info().Uint("study_id", study.ID).Uint("session_id", session.ID).Msg("session created")
	return &SessionView{StudySession: *session, IsHoliday: s.holidays.IsHoliday(session.SessionAt)}, nil
}

// CheckIn records PRESENT for the actor. It never notifies the actor about it.
func (s *SessionService) CheckIn(studyID, sessionID uint, actor *models.User) (*AttendanceResult, error) {
	study, _, err := s.access(studyID, actor)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(study.ID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.recorder.Record(study, session, actor.ID, models.AttendancePresent, actor)
}

// Board lists every member's status for a session. Study leader only.
func (s *SessionService) Board(studyID, sessionID uint, actor *models.User) ([]AttendanceRow, error) {
	study, caps, err := s.access(studyID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageStudy() {
		return nil, ErrForbidden
	}
	session, err := s.loadSession(study.ID, sessionID)
	if err != nil {
		return nil, err
	}

	var members []models.Membership
	if err := s.db.Preload("User").Where("study_id = ?", study.ID).Order("id").Find(&members).Error; err != nil {
		return nil, err
	}
	var rows []models.Attendance
	if err := s.db.Where("session_id = ?", session.ID).Find(&rows).Error; err != nil {
		return nil, err
	}
	byUser := make(map[uint]models.Attendance, len(rows))
	for _, a := range rows {
		byUser[a.UserID] = a
	}

	board := make([]AttendanceRow, 0, len(members))
	for _, m := range members {
		row := AttendanceRow{UserID: m.UserID, Role: m.Role}
		if m.User != nil {
			row.Name = m.User.DisplayName()
		}
		if a, ok := byUser[m.UserID]; ok {
			row.Status = a.Status
			row.CheckedAt = a.CheckedAt
		}
		board = append(board, row)
	}
	return board, nil
}

// Logs returns the change log of a session, newest first. Leader or manager only.
func (s *SessionService) Logs(studyID, sessionID uint, actor *models.User) ([]models.AttendanceChangeLog, error) {
	study, caps, err := s.access(studyID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanOverrideAttendance() {
		return nil, ErrForbidden
	}
	session, err := s.loadSession(study.ID, sessionID)
	if err != nil {
		return nil, err
	}
	var logs []models.AttendanceChangeLog
	err = s.db.Preload("TargetUser").Preload("ChangedBy").
		Where("session_id = ?", session.ID).
		Order("changed_at DESC, id DESC").
		Find(&logs).Error
	return logs, err
}

// Override sets a member's status on their behalf. upsert selects Record over Update.
func (s *SessionService) Override(studyID, sessionID, targetUserID uint, status models.AttendanceStatus, actor *models.User, upsert bool) (*AttendanceResult, error) {
	study, caps, err := s.access(studyID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanOverrideAttendance() {
		return nil, ErrForbidden
	}
	session, err := s.loadSession(study.ID, sessionID)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.Model(&models.Membership{}).Where("study_id = ? AND user_id = ?", study.ID, targetUserID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, notFound("member")
	}

	if upsert {
		return s.recorder.Record(study, session, targetUserID, status, actor)
	}
	return s.recorder.Update(study, session, targetUserID, status, actor)
}
