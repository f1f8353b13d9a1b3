package services

import (
	"errors"
	"testing"

	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/testutil"
	"gorm.io/gorm"
)

// room is a study with one user per role plus an outsider and a site admin.
type room struct {
	db       *gorm.DB
	study    *models.Study
	leader   *models.User
	manager  *models.User
	member   *models.User
	outsider *models.User
	admin    *models.User

	leaderRow  *models.Membership
	managerRow *models.Membership
	memberRow  *models.Membership
}

func newRoom(t *testing.T) *room {
	t.Helper()
	db := testutil.NewDB(t)
	r := &room{db: db}
	r.leader = testutil.CreateUser(t, db, "leader@example.com", models.UserRoleUser)
	r.manager = testutil.CreateUser(t, db, "manager@example.com", models.UserRoleUser)
	r.member = testutil.CreateUser(t, db, "member@example.com", models.UserRoleUser)
	r.outsider = testutil.CreateUser(t, db, "outsider@example.com", models.UserRoleUser)
	r.admin = testutil.CreateUser(t, db, "admin@example.com", models.UserRoleAdmin)

	r.study = testutil.CreateStudy(t, db, "Go", r.leader, 10)
	var leaderRow models.Membership
	if err := db.Where("study_id = ? AND user_id = ?", r.study.ID, r.leader.ID).First(&leaderRow).Error; err != nil {
		t.Fatalf("load leader membership: %v", err)
	}
	r.leaderRow = &leaderRow
	r.managerRow = testutil.AddMember(t, db, r.study, r.manager, models.RoleManager)
	r.memberRow = testutil.AddMember(t, db, r.study, r.member, models.RoleMember)
	return r
}

func (r *room) notifier() *NotificationService {
	return NewNotificationService(r.db, NewNotificationHub())
}

func (r *room) count(t *testing.T, user *models.User, typ models.NotificationType) int64 {
	t.Helper()
	return testutil.CountNotifications(t, r.db, user.ID, typ)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func isForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func asValidation(err error, target **ValidationError) bool {
	return errors.As(err, target)
}
