package models

import "time"

type StudyFile struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StudyID          uint      `gorm:"index;not null" json:"study_id"`
	UploaderID       uint      `gorm:"index;not null" json:"uploader_id"`
	Uploader         *User     `gorm:"foreignKey:UploaderID" json:"uploader,omitempty"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	StoredFilename   string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
	ContentType      string    `gorm:"size:100" json:"content_type"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `gorm:"index" json:"uploaded_at"`
}

func (StudyFile) TableName() string { return "study_files" }
