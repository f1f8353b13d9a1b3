package models

import "time"

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"index:idx_notification_user_read;not null" json:"user_id"`
	StudyID   uint             `gorm:"index" json:"study_id"`
	Type      NotificationType `gorm:"size:40;not null" json:"type"`
	Message   string           `gorm:"size:500;not null" json:"message"`
	LinkURL   string           `gorm:"size:255" json:"link_url"`
	Read      bool             `gorm:"column:is_read;index:idx_notification_user_read" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
