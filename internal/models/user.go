package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a site account. Local accounts sign in by email, LDAP accounts by username.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Email         string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username      string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password      string         `gorm:"size:255" json:"-"` // empty for LDAP users
	Name          string         `gorm:"size:100;not null" json:"name"`
	Nickname      string         `gorm:"size:100" json:"nickname"`
	Phone         string         `gorm:"size:30" json:"phone"`
	Intro         string         `gorm:"type:text" json:"intro"`
	Role          UserRole       `gorm:"size:20;default:USER" json:"role"`
	AuthType      string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	EmailVerified bool           `json:"email_verified"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	LastLogin     *time.Time     `json:"last_login"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}

// DisplayName prefers the nickname and falls back to the legal name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	return u.Name
}
