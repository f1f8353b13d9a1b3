package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/huangang/studyhub/pkg/response"
)

type FileHandler struct {
	files *services.FileService
}

func NewFileHandler(files *services.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// GET /api/room/:studyId/files
func (h *FileHandler) List(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	list, err := h.files.List(studyID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// Upload takes a multipart "file" field.
// POST /api/room/:studyId/files
func (h *FileHandler) Upload(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, response.NewValidation("file", "file is required"))
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	file, err := h.files.Upload(c.Request.Context(), studyID, currentUser(c), services.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      f,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, file)
}

// Download streams the stored object as an attachment.
// GET /api/room/:studyId/files/:fileId/download
func (h *FileHandler) Download(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	fileID, ok := idParam(c, "fileId")
	if !ok {
		return
	}
	dl, err := h.files.Open(c.Request.Context(), studyID, fileID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	defer dl.Body.Close()

	c.Header("Content-Type", dl.ContentType)
	c.Header("Content-Disposition", contentDisposition(dl.File.OriginalFilename))
	if dl.File.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(dl.File.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, dl.Body); err != nil {
		logger.Warn().Err(err).Uint("file_id", fileID).Msg("download interrupted")
	}
}

// contentDisposition encodes the original name so non-ASCII names survive.
func contentDisposition(name string) string {
	escaped := url.PathEscape(name)
	return `attachment; filename="` + escaped + `"; filename*=UTF-8''` + escaped
}

// POST /api/room/:studyId/files/:fileId/delete
func (h *FileHandler) Delete(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	fileID, ok := idParam(c, "fileId")
	if !ok {
		return
	}
	if err := h.files.Delete(c.Request.Context(), studyID, fileID, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": fileID})
}
