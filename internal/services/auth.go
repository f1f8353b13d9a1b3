package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/metrics"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/utils"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

const (
	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"
)

var (
	errBadCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	errUserDisabled   = fmt.Errorf("%w: user is disabled", ErrUnauthorized)
	errInvalidToken   = invalid("token", "invalid or expired token")
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	appConfig   *config.AppConfig
	queue       TaskQueue
}

func NewAuthService(db *gorm.DB, cfg *config.Config, queue TaskQueue) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(&cfg.LDAP),
		jwtConfig:   &cfg.JWT,
		appConfig:   &cfg.App,
		queue:       queue,
	}
}

type SignupRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Name            string `json:"name" binding:"required,notblank,max=100"`
	Nickname        string `json:"nickname" binding:"max=100"`
	Phone           string `json:"phone" binding:"max=30"`
	Intro           string `json:"intro"`
}

// LoginRequest takes an email for local accounts and a directory username for LDAP.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	AccessToken     string       `json:"token"`
	AccessExpireAt  time.Time    `json:"expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user"`

	refreshID uint
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an unverified local account and mails a verification link.
func (s *AuthService) Signup(req *SignupRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, invalid("confirm_password", "passwords do not match")
	}
	name := utils.SanitizeText(req.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}

	var existing int64
	if err := s.db.Unscoped().Model(&models.User{}).Where("email = ? OR username = ?", email, email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, conflict("email already registered")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:    email,
		Username: email,
		Password: hashed,
		Name:     name,
		Nickname: utils.SanitizeText(req.Nickname),
		Phone:    strings.TrimSpace(req.Phone),
		Intro:    utils.SanitizeText(req.Intro),
		Role:     models.UserRoleUser,
		AuthType: AuthTypeLocal,
		IsActive: true,
	}

	plain, hash := utils.NewOpaqueToken()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.EmailVerification{OneTimeToken: models.OneTimeToken{
			UserID:    user.ID,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(s.tokenTTL()),
		}}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("email already registered")
		}
		return nil, err
	}

	link := s.link("/api/auth/verify-email", plain)
	s.sendMail(EmailKindVerify, user.Email, "Verify your StudyHub email",
		fmt.Sprintf("Hello %s,\n\nConfirm your email address within %s:\n%s\n", user.Name, s.tokenTTL(), link), link)
	uid := user.ID
	LogInfo("auth", "signup", "User signed up: "+user.Email, &uid, "", "", nil)
	return user, nil
}

// VerifyEmail consumes a verification token and marks its user verified.
func (s *AuthService) VerifyEmail(token string) (*models.User, error) {
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var v models.EmailVerification
		userID, err := consumeToken(tx, &v, token)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("email_verified", true).Error; err != nil {
			return err
		}
		return tx.First(&user, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// consumeToken marks a one-time token used. Unknown, used and expired tokens all fail the same way.
func consumeToken(tx *gorm.DB, row interface{}, token string) (uint, error) {
	if strings.TrimSpace(token) == "" {
		return 0, errInvalidToken
	}
	if err := tx.Where("token_hash = ?", utils.HashToken(token)).First(row).Error; err != nil {
		if isRecordNotFound(err) {
			return 0, errInvalidToken
		}
		return 0, err
	}
	var ott *models.OneTimeToken
	switch r := row.(type) {
	case *models.EmailVerification:
		ott = &r.OneTimeToken
	case *models.PasswordResetToken:
		ott = &r.OneTimeToken
	default:
		return 0, fmt.Errorf("unsupported token row %T", row)
	}
	now := time.Now()
	if !ott.Usable(now) {
		return 0, errInvalidToken
	}
	res := tx.Model(row).Where("used_at IS NULL").Update("used_at", now)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errInvalidToken
	}
	return ott.UserID, nil
}

// Login authenticates a user and issues an access token plus a refresh token.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var (
		user *models.User
		err  error
	)
	switch strings.ToLower(req.AuthType) {
	case "", AuthTypeLocal:
		user, err = s.localAuth(req.Email, req.Password)
	case AuthTypeLDAP:
		user, err = s.ldapAuth(req.Email, req.Password)
	default:
		return nil, invalid("auth_type", "invalid auth type")
	}
	if err != nil {
		LogWarning("auth", "login_failed", err.Error(), nil, clientIP, userAgent, map[string]string{"login": req.Email})
		return nil, err
	}

	result, err := s.issueTokens(s.db, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Model(user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	}
	return result, nil
}

func (s *AuthService) issueTokens(db *gorm.DB, user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	accessHours := s.accessHours()
	token, err := utils.GenerateToken(user.ID, user.Username, string(user.Role), accessHours)
	if err != nil {
		return nil, err
	}

	plain, hash := utils.NewOpaqueToken()
	now := time.Now()
	refresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   hash,
		ExpiresAt:   now.Add(time.Duration(s.refreshHours()) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := db.Create(&refresh).Error; err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    plain,
		RefreshExpireAt: refresh.ExpiresAt,
		User:            user,
		refreshID:       refresh.ID,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and replaced.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token required", ErrUnauthorized)
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", utils.HashToken(refreshToken)).First(&stored).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errUserDisabled
	}

	var result *LoginResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if result, err = s.issueTokens(tx, &user, clientIP, userAgent); err != nil {
			return err
		}
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           time.Now(),
				"replaced_by_token_id": result.refreshID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) accessHours() int {
	if s.jwtConfig.ExpireHour > 0 {
		return s.jwtConfig.ExpireHour
	}
	return 24
}

func (s *AuthService) refreshHours() int {
	if s.jwtConfig.RefreshExpireHour > 0 {
		return s.jwtConfig.RefreshExpireHour
	}
	return 720
}

func (s *AuthService) tokenTTL() time.Duration {
	if s.appConfig.TokenExpireHour > 0 {
		return time.Duration(s.appConfig.TokenExpireHour) * time.Hour
	}
	return time.Hour
}

func (s *AuthService) link(path, token string) string {
	return strings.TrimRight(s.appConfig.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// sendMail hands an email to the task queue. Failures are logged, never returned.
func (s *AuthService) sendMail(kind, to, subject, body, link string) {
	result := "ok"
	defer func() { metrics.Default().EmailsQueued.WithLabelValues(kind, result).Inc() }()

	if s.queue == nil {
		result = "dropped"
		logger.Warn().Str("kind", kind).Str("link", link).Msg("[Email] no task queue, email dropped")
		return
	}
	if err := s.queue.Enqueue(&EmailTask{Kind: kind, To: to, Subject: subject, Body: body, Link: link}); err != nil {
		result = "error"
		logger.Error().Err(err).Str("kind", kind).Msg("[Email] enqueue failed")
	}
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND auth_type = ?", normalizeEmail(email), AuthTypeLocal).First(&user).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, errBadCredentials
	}
	if !user.IsActive {
		return nil, errUserDisabled
	}
	if !user.EmailVerified {
		return nil, fmt.Errorf("%w: email address not verified", ErrForbidden)
	}
	return &user, nil
}

func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if ldapUser.Username == "" {
		ldapUser.Username = username
	}
	email := normalizeEmail(ldapUser.Email)
	if email == "" {
		email = strings.ToLower(ldapUser.Username) + "@ldap.local"
	}
	name := ldapUser.Name
	if name == "" {
		name = ldapUser.Username
	}

	var user models.User
	err = s.db.Where("username = ? AND auth_type = ?", ldapUser.Username, AuthTypeLDAP).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Username:      ldapUser.Username,
			Email:         email,
			Name:          name,
			Role:          models.UserRoleUser,
			AuthType:      AuthTypeLDAP,
			EmailVerified: true,
			IsActive:      true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			if isUniqueViolation(err) {
				return nil, conflict("a local account already uses this email or username")
			}
			return nil, err
		}
		return &user, nil
	} else if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, errUserDisabled
	}
	if err := s.db.Model(&user).Updates(map[string]interface{}{"email": email, "name": name}).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to sync LDAP profile")
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.AuthType != AuthTypeLocal {
		return invalid("auth_type", "LDAP users cannot change password here")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return invalid("old_password", "incorrect old password")
	}
	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password", hashed).Error
}

// ForgotPassword mails a reset link. Unknown addresses are only logged so callers
// cannot probe which emails are registered.
func (s *AuthService) ForgotPassword(email string) error {
	email = normalizeEmail(email)
	var user models.User
	err := s.db.Where("email = ? AND auth_type = ?", email, AuthTypeLocal).First(&user).Error
	if isRecordNotFound(err) {
		logger.Warn().Str("email", email).Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	plain, hash := utils.NewOpaqueToken()
	if err := s.db.Create(&models.PasswordResetToken{OneTimeToken: models.OneTimeToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.tokenTTL()),
	}}).Error; err != nil {
		return err
	}

	link := s.link("/reset-password", plain)
	s.sendMail(EmailKindReset, user.Email, "Reset your StudyHub password",
		fmt.Sprintf("Hello %s,\n\nReset your password within %s:\n%s\n\nIgnore this email if you did not ask for it.\n", user.Name, s.tokenTTL(), link), link)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes every
// refresh token of the user.
func (s *AuthService) ResetPassword(req *ResetPasswordRequest) error {
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		return invalid("confirm_password", "passwords do not match")
	}
	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row models.PasswordResetToken
		userID, err := consumeToken(tx, &row, req.Token)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password", hashed).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", time.Now()).Error
	})
}

// CreateAdminIfNotExists creates the default admin account when no ADMIN exists.
func (s *AuthService) CreateAdminIfNotExists(email, password string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := s.CreateAdmin(email, password)
	return err
}

// CreateAdmin creates a verified ADMIN account, or promotes the existing account with
// that email.
func (s *AuthService) CreateAdmin(email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("email", "email and password are required")
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if err := s.db.Model(&user).Updates(map[string]interface{}{
			"role": models.UserRoleAdmin, "password": hashed, "email_verified": true, "is_active": true,
		}).Error; err != nil {
			return nil, err
		}
	case isRecordNotFound(err):
		user = models.User{
			Email:         email,
			Username:      email,
			Password:      hashed,
			Name:          "Administrator",
			Role:          models.UserRoleAdmin,
			AuthType:      AuthTypeLocal,
			EmailVerified: true,
			IsActive:      true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	logger.Info().Str("email", email).Msg("admin account ready")
	return &user, nil
}
