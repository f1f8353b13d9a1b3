package services

import (
	"fmt"
	"strings"

	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/utils"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type ProfileInput struct {
	Name     string `json:"name" binding:"required,notblank,max=100"`
	Nickname string `json:"nickname" binding:"max=100"`
	Phone    string `json:"phone" binding:"max=30"`
	Intro    string `json:"intro"`
}

type UserListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Search   string `form:"search"`
	Role     string `form:"role"`
}

type UserListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.User `json:"items"`
}

// AdminDashboard holds the site-wide counters shown to administrators.
type AdminDashboard struct {
	Users               int64 `json:"users"`
	Admins              int64 `json:"admins"`
	UnverifiedUsers     int64 `json:"unverified_users"`
	Studies             int64 `json:"studies"`
	PublicStudies       int64 `json:"public_studies"`
	Memberships         int64 `json:"memberships"`
	PendingApplications int64 `json:"pending_applications"`
}

func (s *UserService) Profile(actor *models.User) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, actor.ID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(actor *models.User, in ProfileInput) (*models.User, error) {
	name := utils.SanitizeText(in.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	updates := map[string]interface{}{
		"name":     name,
		"nickname": utils.SanitizeText(in.Nickname),
		"phone":    strings.TrimSpace(in.Phone),
		"intro":    utils.SanitizeText(in.Intro),
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", actor.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Profile(actor)
}

// --- site admin ---

func (s *UserService) List(actor *models.User, req *UserListRequest) (*UserListResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	query := s.db.Model(&models.User{})
	if q := strings.TrimSpace(req.Search); q != "" {
		like := "%" + q + "%"
		query = query.Where("email LIKE ? OR name LIKE ? OR nickname LIKE ?", like, like, like)
	}
	if req.Role != "" {
		query = query.Where("role = ?", models.ParseUserRole(req.Role))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var users []models.User
	if err := query.Order("id DESC").Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize).Find(&users).Error; err != nil {
		return nil, err
	}
	return &UserListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: users}, nil
}

func (s *UserService) loadUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// SetRole maps "ADMIN" (any case) to ADMIN and anything else to USER. Admins cannot
// change their own role.
func (s *UserService) SetRole(actor *models.User, userID uint, role string) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if actor.ID == userID {
		return nil, invalid("role", "you cannot change your own role")
	}
	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	newRole := models.ParseUserRole(role)
	if user.Role != newRole {
		if err := s.db.Model(user).Update("role", newRole).Error; err != nil {
			return nil, err
		}
		uid := actor.ID
		LogInfo("admin", "set_role", fmt.Sprintf("User %d role: %s -> %s", user.ID, user.Role, newRole), &uid, "", "", nil)
		user.Role = newRole
	}
	return user, nil
}

// SetActive enables or disables an account. Disabled accounts cannot log in or refresh.
func (s *UserService) SetActive(actor *models.User, userID uint, active bool) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if actor.ID == userID {
		return nil, invalid("is_active", "you cannot deactivate yourself")
	}
	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}

func (s *UserService) Dashboard(actor *models.User) (*AdminDashboard, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	d := &AdminDashboard{}
	counts := []struct {
		dst   *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&d.Users, &models.User{}, "", nil},
		{&d.Admins, &models.User{}, "role = ?", []interface{}{models.UserRoleAdmin}},
		{&d.UnverifiedUsers, &models.User{}, "email_verified = ?", []interface{}{false}},
		{&d.Studies, &models.Study{}, "", nil},
		{&d.PublicStudies, &models.Study{}, "is_public = ?", []interface{}{true}},
		{&d.Memberships, &models.Membership{}, "", nil},
		{&d.PendingApplications, &models.Application{}, "status = ?", []interface{}{models.ApplicationPending}},
	}
	for _, c := range counts {
		q := s.db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return d, nil
}
