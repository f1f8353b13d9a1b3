package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

const dateLayout = "2006-01-02"

// auditSink is where LogInfo and friends persist. A nil db turns them into log lines only.
var auditSink struct {
	sync.RWMutex
	db *gorm.DB
}

func InitSystemLogger(db *gorm.DB) {
	auditSink.Lock()
	auditSink.db = db
	auditSink.Unlock()
}

func LogInfo(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	record(LevelInfo, module, action, message, userID, ip, userAgent, extra)
}

func LogWarning(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	record(LevelWarning, module, action, message, userID, ip, userAgent, extra)
}

func LogError(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	record(LevelError, module, action, message, userID, ip, userAgent, extra)
}

func record(level, module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	row := models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		Extra:     encodeExtra(extra),
		CreatedAt: time.Now(),
	}
	mirror(&row)

	auditSink.RLock()
	db := auditSink.db
	auditSink.RUnlock()
	if db == nil {
		return
	}
	if err := db.Create(&row).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("system log row not saved")
	}
}

func encodeExtra(extra interface{}) string {
	if extra == nil {
		return ""
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return ""
	}
	return string(b)
}

// mirror writes the entry to the process log at debug, or higher for failures.
func mirror(row *models.SystemLog) {
	var ev *zerolog.Event
	switch row.Level {
	case LevelError:
		ev = logger.Error()
	case LevelWarning:
		ev = logger.Warn()
	default:
		ev = logger.Debug()
	}
	if row.UserID != nil {
		ev = ev.Uint("user_id", *row.UserID)
	}
	ev.Str("module", row.Module).Str("action", row.Action).Msg(row.Message)
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

// SystemLogListRequest filters the admin log view. Dates are YYYY-MM-DD and both ends
// are inclusive.
type SystemLogListRequest struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (r *SystemLogListRequest) scopes() ([]func(*gorm.DB) *gorm.DB, error) {
	var scopes []func(*gorm.DB) *gorm.DB
	eq := func(col, v string) {
		if v != "" {
			scopes = append(scopes, func(q *gorm.DB) *gorm.DB { return q.Where(col+" = ?", v) })
		}
	}
	like := func(col, v string) {
		if v != "" {
			scopes = append(scopes, func(q *gorm.DB) *gorm.DB { return q.Where(col+" LIKE ?", "%"+v+"%") })
		}
	}
	eq("level", r.Level)
	eq("module", r.Module)
	like("action", r.Action)
	like("message", r.Search)

	if r.StartDate != "" {
		from, err := time.ParseInLocation(dateLayout, r.StartDate, time.Local)
		if err != nil {
			return nil, invalid("start_date", "must be YYYY-MM-DD")
		}
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB { return q.Where("created_at >= ?", from) })
	}
	if r.EndDate != "" {
		to, err := time.ParseInLocation(dateLayout, r.EndDate, time.Local)
		if err != nil {
			return nil, invalid("end_date", "must be YYYY-MM-DD")
		}
		next := to.AddDate(0, 0, 1)
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB { return q.Where("created_at < ?", next) })
	}
	return scopes, nil
}

// normalizePage defaults to page 1 of 20 and caps page size at 100.
func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	page, size := normalizePage(req.Page, req.PageSize)
	scopes, err := req.scopes()
	if err != nil {
		return nil, err
	}

	resp := &SystemLogListResponse{Page: page, PageSize: size, Items: []models.SystemLog{}}
	q := s.db.Model(&models.SystemLog{}).Scopes(scopes...)
	if err := q.Count(&resp.Total).Error; err != nil {
		return nil, err
	}
	if resp.Total == 0 {
		return resp, nil
	}
	err = q.Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&resp.Items).Error
	return resp, err
}

// GetModules lists every module that has written at least one entry, sorted.
func (s *SystemLogService) GetModules() ([]string, error) {
	modules := []string{}
	err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error
	return modules, err
}

// CleanupOldLogs deletes logs older than retentionDays and returns how many went.
// A non-positive retention keeps everything.
func (s *SystemLogService) CleanupOldLogs(retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	res := s.db.Where("created_at < ?", now.AddDate(0, 0, -retentionDays)).Delete(&models.SystemLog{})
	return res.RowsAffected, res.Error
}
