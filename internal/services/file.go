package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/storage"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

const (
	DefaultMaxFileSize      int64 = 50 * 1024 * 1024
	DefaultMaxFilesPerStudy int64 = 100
)

var allowedFileExtensions = map[string]bool{
	"pdf": true, "ppt": true, "pptx": true,
	"doc": true, "docx": true,
	"xls": true, "xlsx": true,
	"zip": true,
	"png": true, "jpg": true, "jpeg": true,
}

type FileService struct {
	db       *gorm.DB
	store    storage.Store
	notifier *NotificationService
	maxSize  int64
	maxFiles int64
}

func NewFileService(db *gorm.DB, store storage.Store, notifier *NotificationService, maxSize, maxFiles int64) *FileService {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFilesPerStudy
	}
	return &FileService{db: db, store: store, notifier: notifier, maxSize: maxSize, maxFiles: maxFiles}
}

// UploadInput describes one incoming multipart file.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type FileList struct {
	Files     []models.StudyFile `json:"files"`
	CanUpload bool               `json:"can_upload"`
	CanDelete bool               `json:"can_delete"`
}

// DownloadFile is an open file ready to stream. The caller closes Body.
type DownloadFile struct {
	File        *models.StudyFile
	ContentType string
	Body        io.ReadCloser
}

func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func rejectFile(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFileRejected, fmt.Sprintf(format, args...))
}

func (s *FileService) List(studyID uint, actor *models.User) (*FileList, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	var files []models.StudyFile
	if err := s.db.Preload("Uploader").Where("study_id = ?", study.ID).Order("uploaded_at DESC, id DESC").Find(&files).Error; err != nil {
		return nil, err
	}
	return &FileList{Files: files, CanUpload: caps.CanUploadFile(), CanDelete: caps.CanDeleteFile()}, nil
}

// Upload validates and stores a file, then records it. The object is removed again
// when the row cannot be written.
func (s *FileService) Upload(ctx context.Context, studyID uint, actor *models.User, in UploadInput) (*models.StudyFile, error) {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	if !caps.CanUploadFile() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(in.Filename, "\\", "/")))
	if name == "" || name == "." || name == "/" || in.Reader == nil {
		return nil, rejectFile("no file selected")
	}
	ext := fileExtension(name)
	if !allowedFileExtensions[ext] {
		return nil, rejectFile("file type .%s is not allowed", ext)
	}
	if in.Size > s.maxSize {
		return nil, rejectFile("file exceeds %d MB", s.maxSize/(1024*1024))
	}

	var count int64
	if err := s.db.Model(&models.StudyFile{}).Where("study_id = ?", study.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count >= s.maxFiles {
		return nil, rejectFile("study already has %d files", s.maxFiles)
	}

	key := fmt.Sprintf("study-%d/%s.%s", study.ID, strings.ReplaceAll(uuid.New().String(), "-", ""), ext)
	// read one byte past the cap so an understated Size is still caught
	body := &countingReader{r: io.LimitReader(in.Reader, s.maxSize+1)}
	if err := s.store.Put(ctx, key, body, in.Size, in.ContentType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if body.n > s.maxSize {
		s.discard(ctx, key)
		return nil, rejectFile("file exceeds %d MB", s.maxSize/(1024*1024))
	}

	file := &models.StudyFile{
		StudyID:          study.ID,
		UploaderID:       actor.ID,
		OriginalFilename: name,
		StoredFilename:   key,
		ContentType:      in.ContentType,
		Size:             body.n,
		UploadedAt:       time.Now(),
	}
	if err := s.db.Create(file).Error; err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	logger.Info().Uint("study_id", study.ID).Uint("user_id", actor.ID).Str("key", key).Int64("size", file.Size).Msg("study file uploaded")
	s.notifier.FileUploaded(study, actor, name)
	return file, nil
}

func (s *FileService) loadFile(studyID, fileID uint) (*models.StudyFile, error) {
	var f models.StudyFile
	err := s.db.Where("id = ? AND study_id = ?", fileID, studyID).First(&f).Error
	if isRecordNotFound(err) {
		return nil, notFound("file")
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *FileService) Open(ctx context.Context, studyID, fileID uint, actor *models.User) (*DownloadFile, error) {
	study, _, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	f, err := s.loadFile(study.ID, fileID)
	if err != nil {
		return nil, err
	}
	body, err := s.store.Open(ctx, f.StoredFilename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, notFound("file content")
		}
		return nil, err
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &DownloadFile{File: f, ContentType: ct, Body: body}, nil
}

// Delete removes the row. Failures of the backing store are logged and ignored.
func (s *FileService) Delete(ctx context.Context, studyID, fileID uint, actor *models.User) error {
	study, caps, err := studyAccess(s.db, actor, studyID)
	if err != nil {
		return err
	}
	if !caps.CanDeleteFile() {
		return ErrForbidden
	}
	f, err := s.loadFile(study.ID, fileID)
	if err != nil {
		return err
	}
	s.discard(ctx, f.StoredFilename)
	if err := s.db.Delete(f).Error; err != nil {
		return err
	}
	logger.Info().Uint("study_id", study.ID).Uint("user_id", actor.ID).Uint("file_id", f.ID).Msg("study file deleted")
	return nil
}

func (s *FileService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to delete stored file")
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
