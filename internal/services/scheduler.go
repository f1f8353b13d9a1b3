package services

import (
	"os"
	"time"

	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const cleanupLockName = "nightly_cleanup"

// CleanupResult counts the rows removed by one cleanup run.
type CleanupResult struct {
	Verifications int64 `json:"verifications"`
	ResetTokens   int64 `json:"reset_tokens"`
	RefreshTokens int64 `json:"refresh_tokens"`
	SystemLogs    int64 `json:"system_logs"`
	Locks         int64 `json:"locks"`
}

// CleanupScheduler purges expired tokens and old system logs once a day. With several
// instances running, a scheduler_locks row per date makes sure only one of them does the work.
type CleanupScheduler struct {
	db            *gorm.DB
	logs          *SystemLogService
	schedule      string
	retentionDays int
	instance      string
	cron          *cron.Cron
}

func NewCleanupScheduler(db *gorm.DB, cfg *config.AppConfig) *CleanupScheduler {
	host, _ := os.Hostname()
	return &CleanupScheduler{
		db:            db,
		logs:          NewSystemLogService(db),
		schedule:      cfg.CleanupSchedule,
		retentionDays: cfg.LogRetentionDays,
		instance:      host,
	}
}

func (s *CleanupScheduler) Start() error {
	if s.schedule == "" {
		logger.Info().Msg("[Cleanup] no schedule configured, scheduler disabled")
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(time.Now()); err != nil {
			logger.Error().Err(err).Msg("[Cleanup] run failed")
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	logger.Infof("[Cleanup] scheduler started (cron: %s)", s.schedule)
	return nil
}

func (s *CleanupScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce runs the cleanup for now's date unless another instance already claimed it.
// A nil result with a nil error means the date was already handled.
func (s *CleanupScheduler) RunOnce(now time.Time) (*CleanupResult, error) {
	acquired, err := s.acquire(now)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Debug().Str("date", now.Format("2006-01-02")).Msg("[Cleanup] already handled")
		return nil, nil
	}

	result, err := s.Cleanup(now)
	if err != nil {
		LogError("scheduler", "cleanup", err.Error(), nil, "", "", nil)
		return nil, err
	}
	logger.Info().
		Int64("verifications", result.Verifications).
		Int64("reset_tokens", result.ResetTokens).
		Int64("refresh_tokens", result.RefreshTokens).
		Int64("system_logs", result.SystemLogs).
		Msg("[Cleanup] done")
	LogInfo("scheduler", "cleanup", "nightly cleanup finished", nil, "", "", result)
	return result, nil
}

func (s *CleanupScheduler) acquire(now time.Time) (bool, error) {
	lock := &models.SchedulerLock{
		LockName:  cleanupLockName,
		LockKey:   now.Format("2006-01-02"),
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := s.db.Create(lock).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Cleanup removes one-time tokens that are used or expired, refresh tokens past their
// expiry, system logs older than the retention window and stale scheduler locks.
func (s *CleanupScheduler) Cleanup(now time.Time) (*CleanupResult, error) {
	result := &CleanupResult{}

	res := s.db.Where("used_at IS NOT NULL OR expires_at < ?", now).Delete(&models.EmailVerification{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.Verifications = res.RowsAffected

	res = s.db.Where("used_at IS NOT NULL OR expires_at < ?", now).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.ResetTokens = res.RowsAffected

	res = s.db.Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.RefreshTokens = res.RowsAffected

	logs, err := s.logs.CleanupOldLogs(s.retentionDays, now)
	if err != nil {
		return nil, err
	}
	result.SystemLogs = logs

	// keep a week of locks around for inspection
	res = s.db.Where("expires_at < ?", now.AddDate(0, 0, -7)).Delete(&models.SchedulerLock{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.Locks = res.RowsAffected
	return result, nil
}
