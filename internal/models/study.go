package models

import "time"

type Study struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:50" json:"category"`
	StudyMode   string    `gorm:"size:30" json:"study_mode"` // ONLINE, OFFLINE, HYBRID
	Location    string    `gorm:"size:200" json:"location"`
	MaxMembers  int       `gorm:"not null" json:"max_members"`
	IsPublic    bool      `gorm:"index" json:"is_public"`
	LeaderID    uint      `gorm:"index;not null" json:"leader_id"`
	Leader      *User     `gorm:"foreignKey:LeaderID" json:"leader,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Study) TableName() string { return "studies" }

// Membership is a user's role inside a study. Exactly one LEADER row exists per study.
type Membership struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	StudyID   uint           `gorm:"uniqueIndex:idx_membership_study_user;not null" json:"study_id"`
	Study     *Study         `gorm:"foreignKey:StudyID" json:"study,omitempty"`
	UserID    uint           `gorm:"uniqueIndex:idx_membership_study_user;index;not null" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      MembershipRole `gorm:"size:20;not null" json:"role"`
	JoinedAt  time.Time      `json:"joined_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Membership) TableName() string { return "memberships" }

type Application struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	StudyID       uint              `gorm:"index;not null" json:"study_id"`
	Study         *Study            `gorm:"foreignKey:StudyID" json:"study,omitempty"`
	ApplicantID   uint              `gorm:"index;not null" json:"applicant_id"`
	Applicant     *User             `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
	Message       string            `gorm:"type:text" json:"message"`
	Status        ApplicationStatus `gorm:"size:20;index;not null" json:"status"`
	AppliedAt     time.Time         `json:"applied_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty"`
	ProcessedByID *uint             `json:"processed_by_id,omitempty"`
	// PendingKey is "<study>:<applicant>" while PENDING and NULL afterwards.
	// The unique index allows one open application per pair.
	PendingKey *string   `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Application) TableName() string { return "applications" }
