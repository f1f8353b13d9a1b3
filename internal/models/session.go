package models

import "time"

type StudySession struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudyID     uint      `gorm:"index;not null" json:"study_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	SessionAt   time.Time `gorm:"index;not null" json:"session_at"`
	Location    string    `gorm:"size:200" json:"location"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (StudySession) TableName() string { return "study_sessions" }

type Attendance struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	SessionID uint             `gorm:"uniqueIndex:idx_attendance_session_user;not null" json:"session_id"`
	UserID    uint             `gorm:"uniqueIndex:idx_attendance_session_user;index;not null" json:"user_id"`
	User      *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status    AttendanceStatus `gorm:"size:20;not null" json:"status"`
	CheckedAt *time.Time       `json:"checked_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Attendance) TableName() string { return "attendances" }

// AttendanceChangeLog is append-only. Rows are written only when a status actually changes.
type AttendanceChangeLog struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	SessionID    uint             `gorm:"index;not null" json:"session_id"`
	TargetUserID uint             `gorm:"index;not null" json:"target_user_id"`
	TargetUser   *User            `gorm:"foreignKey:TargetUserID" json:"target_user,omitempty"`
	ChangedByID  uint             `gorm:"not null" json:"changed_by_id"`
	ChangedBy    *User            `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
	OldStatus    AttendanceStatus `gorm:"size:20;not null" json:"old_status"`
	NewStatus    AttendanceStatus `gorm:"size:20;not null" json:"new_status"`
	ChangedAt    time.Time        `gorm:"index" json:"changed_at"`
}

func (AttendanceChangeLog) TableName() string { return "attendance_change_logs" }
