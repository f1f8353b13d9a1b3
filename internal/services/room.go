package services

import (
	"math"
	"time"

	"github.com/huangang/studyhub/internal/models"
	"gorm.io/gorm"
)

const dashboardPreviewSize = 3

type RoomService struct {
	db    *gorm.DB
	board *BoardService
}

func NewRoomService(db *gorm.DB, board *BoardService) *RoomService {
	return &RoomService{db: db, board: board}
}

// RoomDashboard is the landing page of a study room. AttendanceRate is nil when the
// viewer has no membership or the study has no sessions.
type RoomDashboard struct {
	Study          *models.Study         `json:"study"`
	MyRole         models.MembershipRole `json:"my_role,omitempty"`
	NextSession    *models.StudySession  `json:"next_session"`
	TotalSessions  int64                 `json:"total_sessions"`
	AttendedCount  int64                 `json:"attended_count"`
	AttendanceRate *float64              `json:"attendance_rate"`
	Notices        []models.Post         `json:"notices"`
	Posts          []models.Post         `json:"posts"`
	Files          []models.StudyFile    `json:"files"`
	FileCount      int64                 `json:"file_count"`
}

func (s *RoomService) Dashboard(studyID uint, actor *models.User, now time.Time) (*RoomDashboard, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	d := &RoomDashboard{Study: study, MyRole: caps.Role}

	var next models.StudySession
	err = s.db.Where("study_id = ? AND session_at >= ?", study.ID, now).Order("session_at ASC, id ASC").First(&next).Error
	switch {
	case err == nil:
		d.NextSession = &next
	case !isRecordNotFound(err):
		return nil, err
	}

	if err := s.db.Model(&models.StudySession{}).Where("study_id = ?", study.ID).Count(&d.TotalSessions).Error; err != nil {
		return nil, err
	}
	if caps.IsMember && d.TotalSessions > 0 {
		if err := s.db.Model(&models.Attendance{}).
			Joins("JOIN study_sessions ON study_sessions.id = attendances.session_id").
			Where("study_sessions.study_id = ? AND attendances.user_id = ? AND attendances.status IN ?",
				study.ID, actor.ID, models.AttendedStatuses()).
			Count(&d.AttendedCount).Error; err != nil {
			return nil, err
		}
		rate := math.Round(float64(d.AttendedCount)*1000/float64(d.TotalSessions)) / 10
		d.AttendanceRate = &rate
	}

	if d.Notices, err = s.board.latestPosts(study.ID, models.PostNotice, dashboardPreviewSize); err != nil {
		return nil, err
	}
	if d.Posts, err = s.board.latestPosts(study.ID, models.PostNormal, dashboardPreviewSize); err != nil {
		return nil, err
	}

	d.Files = make([]models.StudyFile, 0)
	if err := s.db.Preload("Uploader").Where("study_id = ?", study.ID).
		Order("uploaded_at DESC, id DESC").Limit(dashboardPreviewSize).Find(&d.Files).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.StudyFile{}).Where("study_id = ?", study.ID).Count(&d.FileCount).Error; err != nil {
		return nil, err
	}
	return d, nil
}
