package services

import (
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/testutil"
	"github.com/huangang/studyhub/internal/utils"
	"gorm.io/gorm"
)

// recordingQueue keeps enqueued emails for inspection.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*EmailTask
}

func (q *recordingQueue) Enqueue(task *EmailTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) lastToken(t *testing.T, kind string) string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.tasks) - 1; i >= 0; i-- {
		if q.tasks[i].Kind != kind {
			continue
		}
		u, err := url.Parse(q.tasks[i].Link)
		if err != nil {
			t.Fatalf("parse link %q: %v", q.tasks[i].Link, err)
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no %s email queued", kind)
	return ""
}

func newAuthService(t *testing.T) (*AuthService, *gorm.DB, *recordingQueue) {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := config.DefaultConfig()
	q := &recordingQueue{}
	return NewAuthService(db, cfg, q), db, q
}

func signupRequest(email string) *SignupRequest {
	return &SignupRequest{Email: email, Password: "secret1", ConfirmPassword: "secret1", Name: "Alice"}
}

func TestAuthService_SignupVerifyLogin(t *testing.T) {
	svc, db, q := newAuthService(t)

	user, err := svc.Signup(signupRequest("  Alice@Example.com "))
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if user.Email != "alice@example.com" || user.EmailVerified || user.Role != models.UserRoleUser {
		t.Errorf("user = %+v", user)
	}

	_, err = svc.Login(&LoginRequest{Email: "alice@example.com", Password: "secret1"}, "", "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Login() before verification error = %v, expected forbidden", err)
	}

	token := q.lastToken(t, EmailKindVerify)
	if len(token) != 32 {
		t.Errorf("token = %q, expected 32 hex chars", token)
	}
	verified, err := svc.VerifyEmail(token)
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if !verified.EmailVerified {
		t.Error("user should be verified")
	}
	var vErr *ValidationError
	if _, err := svc.VerifyEmail(token); !errors.As(err, &vErr) {
		t.Errorf("second VerifyEmail() error = %v, expected validation error", err)
	}

	res, err := svc.Login(&LoginRequest{Email: "ALICE@example.com", Password: "secret1"}, "1.2.3.4", "go-test")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := utils.ParseToken(res.AccessToken)
	if err != nil || claims.UserID != user.ID || claims.Role != "USER" {
		t.Errorf("claims = %+v, err = %v", claims, err)
	}
	var stored models.User
	db.First(&stored, user.ID)
	if stored.LastLogin == nil {
		t.Error("last login should be recorded")
	}

	if _, err := svc.Login(&LoginRequest{Email: "alice@example.com", Password: "wrong!"}, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrong password error = %v", err)
	}
}

func TestAuthService_SignupValidation(t *testing.T) {
	svc, _, _ := newAuthService(t)

	mismatch := signupRequest("a@example.com")
	mismatch.ConfirmPassword = "other"
	var vErr *ValidationError
	if _, err := svc.Signup(mismatch); !errors.As(err, &vErr) || vErr.Field != "confirm_password" {
		t.Errorf("mismatch error = %v", err)
	}

	blank := signupRequest("a@example.com")
	blank.Name = "   "
	if _, err := svc.Signup(blank); !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Errorf("blank name error = %v", err)
	}

	if _, err := svc.Signup(signupRequest("a@example.com")); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if _, err := svc.Signup(signupRequest("A@example.com")); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Signup() error = %v, expected conflict", err)
	}
}

func TestAuthService_ExpiredVerification(t *testing.T) {
	svc, db, q := newAuthService(t)
	svc.Signup(signupRequest("late@example.com"))
	token := q.lastToken(t, EmailKindVerify)

	db.Model(&models.EmailVerification{}).Where("token_hash = ?", utils.HashToken(token)).
		Update("expires_at", time.Now().Add(-time.Minute))
	if _, err := svc.VerifyEmail(token); err == nil {
		t.Error("expired token should be rejected")
	}
	if _, err := svc.VerifyEmail("nope"); err == nil {
		t.Error("unknown token should be rejected")
	}
}

func verifiedUser(t *testing.T, svc *AuthService, q *recordingQueue, email string) *models.User {
	t.Helper()
	if _, err := svc.Signup(signupRequest(email)); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	u, err := svc.VerifyEmail(q.lastToken(t, EmailKindVerify))
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	return u
}

func TestAuthService_RefreshRotation(t *testing.T) {
	svc, db, q := newAuthService(t)
	verifiedUser(t, svc, q, "r@example.com")

	login, err := svc.Login(&LoginRequest{Email: "r@example.com", Password: "secret1"}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	rotated, err := svc.Refresh(login.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Error("refresh token should rotate")
	}

	var old models.RefreshToken
	db.Where("token_hash = ?", utils.HashToken(login.RefreshToken)).First(&old)
	if old.RevokedAt == nil || old.ReplacedByTokenID == nil {
		t.Errorf("old token = %+v, expected revoked and replaced", old)
	}
	if _, err := svc.Refresh(login.RefreshToken, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("reuse of rotated token error = %v", err)
	}

	if err := svc.RevokeRefreshToken(rotated.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	if _, err := svc.Refresh(rotated.RefreshToken, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("revoked token error = %v", err)
	}
}

func TestAuthService_ForgotAndResetPassword(t *testing.T) {
	svc, db, q := newAuthService(t)
	user := verifiedUser(t, svc, q, "f@example.com")
	login, _ := svc.Login(&LoginRequest{Email: "f@example.com", Password: "secret1"}, "", "")

	if err := svc.ForgotPassword("ghost@example.com"); err != nil {
		t.Errorf("unknown email error = %v, expected nil", err)
	}
	if len(q.tasks) != 1 {
		t.Errorf("unknown email queued a message")
	}

	if err := svc.ForgotPassword("F@example.com"); err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}
	token := q.lastToken(t, EmailKindReset)

	if err := svc.ResetPassword(&ResetPasswordRequest{Token: token, NewPassword: "newpass", ConfirmPassword: "other"}); err == nil {
		t.Error("mismatched confirmation should fail")
	}
	if err := svc.ResetPassword(&ResetPasswordRequest{Token: token, NewPassword: "newpass"}); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if err := svc.ResetPassword(&ResetPasswordRequest{Token: token, NewPassword: "again1"}); err == nil {
		t.Error("reset token should be single-use")
	}

	if _, err := svc.Login(&LoginRequest{Email: "f@example.com", Password: "newpass"}, "", ""); err != nil {
		t.Errorf("login with new password error = %v", err)
	}
	var live int64
	db.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked_at IS NULL AND token_hash = ?", user.ID, utils.HashToken(login.RefreshToken)).Count(&live)
	if live != 0 {
		t.Error("reset should revoke existing refresh tokens")
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc, _, q := newAuthService(t)
	user := verifiedUser(t, svc, q, "c@example.com")

	var vErr *ValidationError
	if err := svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "bad", NewPassword: "newpass"}); !errors.As(err, &vErr) {
		t.Errorf("wrong old password error = %v", err)
	}
	if err := svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "secret1", NewPassword: "newpass"}); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.Login(&LoginRequest{Email: "c@example.com", Password: "newpass"}, "", ""); err != nil {
		t.Errorf("login after change error = %v", err)
	}
}

func TestAuthService_DisabledUser(t *testing.T) {
	svc, db, q := newAuthService(t)
	user := verifiedUser(t, svc, q, "d@example.com")
	db.Model(user).Update("is_active", false)
	if _, err := svc.Login(&LoginRequest{Email: "d@example.com", Password: "secret1"}, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("disabled login error = %v", err)
	}
}

func TestAuthService_CreateAdminIfNotExists(t *testing.T) {
	svc, db, _ := newAuthService(t)
	if err := svc.CreateAdminIfNotExists("root@example.com", "admin123"); err != nil {
		t.Fatalf("CreateAdminIfNotExists() error = %v", err)
	}
	if err := svc.CreateAdminIfNotExists("other@example.com", "admin123"); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	var admins []models.User
	db.Where("role = ?", models.UserRoleAdmin).Find(&admins)
	if len(admins) != 1 || admins[0].Email != "root@example.com" || !admins[0].EmailVerified {
		t.Errorf("admins = %+v", admins)
	}
	if _, err := svc.Login(&LoginRequest{Email: "root@example.com", Password: "admin123"}, "", ""); err != nil {
		t.Errorf("admin login error = %v", err)
	}
}

func TestAuthService_LDAPDisabled(t *testing.T) {
	svc, _, _ := newAuthService(t)
	if svc.IsLDAPEnabled() {
		t.Error("LDAP should be disabled by default")
	}
	if _, err := svc.Login(&LoginRequest{Email: "alice", Password: "x", AuthType: "ldap"}, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("ldap login error = %v", err)
	}
	var vErr *ValidationError
	if _, err := svc.Login(&LoginRequest{Email: "alice", Password: "x", AuthType: "kerberos"}, "", ""); !errors.As(err, &vErr) {
		t.Errorf("unknown auth type error = %v", err)
	}
}
