// Package testutil opens throwaway databases and seeds fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/huangang/studyhub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named shared-cache DSN so every pooled connection sees the same database.
	dsn := fmt.Sprintf("file:studyhub_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts an active, verified local user. The email doubles as username.
func CreateUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:         email,
		Username:      email,
		Name:          email,
		Role:          role,
		AuthType:      "local",
		EmailVerified: true,
		IsActive:      true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// CreateStudy inserts a public study led by leader together with its LEADER membership.
func CreateStudy(t *testing.T, db *gorm.DB, title string, leader *models.User, maxMembers int) *models.Study {
	t.Helper()
	study := &models.Study{
		Title:      title,
		MaxMembers: maxMembers,
		IsPublic:   true,
		LeaderID:   leader.ID,
	}
	if err := db.Create(study).Error; err != nil {
		t.Fatalf("create study %s: %v", title, err)
	}
	AddMember(t, db, study, leader, models.RoleLeader)
	return study
}

func AddMember(t *testing.T, db *gorm.DB, study *models.Study, user *models.User, role models.MembershipRole) *models.Membership {
	t.Helper()
	m := &models.Membership{
		StudyID:  study.ID,
		UserID:   user.ID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("add member %d to study %d: %v", user.ID, study.ID, err)
	}
	return m
}

func CreateSession(t *testing.T, db *gorm.DB, study *models.Study, title string, at time.Time) *models.StudySession {
	t.Helper()
	s := &models.StudySession{
		StudyID:   study.ID,
		Title:     title,
		SessionAt: at,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create session %s: %v", title, err)
	}
	return s
}

// CountNotifications counts notification rows for userID, optionally filtered by type.
func CountNotifications(t *testing.T, db *gorm.DB, userID uint, typ models.NotificationType) int64 {
	t.Helper()
	q := db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return n
}
