package models

import "time"

type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	StudyID   uint       `gorm:"index;not null" json:"study_id"`
	WriterID  uint       `gorm:"index;not null" json:"writer_id"`
	Writer    *User      `gorm:"foreignKey:WriterID" json:"writer,omitempty"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	Content   string     `gorm:"type:text" json:"content"`
	Type      PostType   `gorm:"size:20;index;not null" json:"type"`
	Deleted   bool       `gorm:"index" json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

type Comment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PostID    uint       `gorm:"index;not null" json:"post_id"`
	WriterID  uint       `gorm:"index;not null" json:"writer_id"`
	Writer    *User      `gorm:"foreignKey:WriterID" json:"writer,omitempty"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }
