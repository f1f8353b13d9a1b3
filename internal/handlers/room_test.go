package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/internal/storage"
	"github.com/huangang/studyhub/internal/testutil"
	"gorm.io/gorm"
)

type roomFixture struct {
	db       *gorm.DB
	study    *models.Study
	leader   *models.User
	member   *models.User
	outsider *models.User
	memberM  *models.Membership
	notifier *services.NotificationService
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &roomFixture{db: db}
	f.leader = testutil.CreateUser(t, db, "leader@example.com", models.UserRoleUser)
	f.member = testutil.CreateUser(t, db, "member@example.com", models.UserRoleUser)
	f.outsider = testutil.CreateUser(t, db, "outsider@example.com", models.UserRoleUser)
	f.study = testutil.CreateStudy(t, db, "Go study", f.leader, 10)
	f.memberM = testutil.AddMember(t, db, f.study, f.member, models.RoleMember)
	f.notifier = services.NewNotificationService(db, services.NewNotificationHub())
	return f
}

func (f *roomFixture) memberRouter(user *models.User) *gin.Engine {
	h := NewMemberHandler(services.NewMembershipService(f.db))
	r := gin.New()
	room := r.Group("/api/room/:studyId", as(user))
	room.GET("/members", h.List)
	room.POST("/members/:membershipId/promote", h.Promote)
	return r
}

func TestMemberHandler_Promote(t *testing.T) {
	f := newRoomFixture(t)
	path := fmt.Sprintf("/api/room/%d/members/%d/promote", f.study.ID, f.memberM.ID)

	w, env := do(t, f.memberRouter(f.outsider), http.MethodPost, path, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want 403", w.Code)
	}
	if env.Message != "you do not have permission to do that" {
		t.Errorf("message = %q", env.Message)
	}

	w, _ = do(t, f.memberRouter(f.leader), http.MethodPost, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leader status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	var m models.Membership
	if err := f.db.First(&m, f.memberM.ID).Error; err != nil {
		t.Fatal(err)
	}
	if m.Role != models.RoleManager {
		t.Errorf("role = %s, want MANAGER", m.Role)
	}

	w, _ = do(t, f.memberRouter(f.leader), http.MethodPost, fmt.Sprintf("/api/room/%d/members/999/promote", f.study.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown membership status = %d, want 404", w.Code)
	}
}

func (f *roomFixture) fileRouter(t *testing.T, user *models.User) *gin.Engine {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	h := NewFileHandler(services.NewFileService(f.db, store, f.notifier, 0, 0))
	r := gin.New()
	room := r.Group("/api/room/:studyId", func(c *gin.Context) {
		// the acting user is chosen per request through a header
		switch c.GetHeader("X-Test-User") {
		case "leader":
			as(f.leader)(c)
		case "member":
			as(f.member)(c)
		default:
			as(user)(c)
		}
	})
	room.GET("/files", h.List)
	room.POST("/files", h.Upload)
	room.GET("/files/:fileId/download", h.Download)
	room.POST("/files/:fileId/delete", h.Delete)
	return r
}

func multipartUpload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFileHandler_UploadAndDownload(t *testing.T) {
	f := newRoomFixture(t)
	r := f.fileRouter(t, f.outsider)
	base := fmt.Sprintf("/api/room/%d/files", f.study.ID)

	// a plain member may not upload
	req := multipartUpload(t, base, "notes.pdf", "%PDF-1.4")
	req.Header.Set("X-Test-User", "member")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member upload status = %d, want 403", w.Code)
	}

	req = multipartUpload(t, base, "week 1 notes.pdf", "%PDF-1.4")
	req.Header.Set("X-Test-User", "leader")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("leader upload status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var uploaded models.StudyFile
	if err := json.Unmarshal(env.Data, &uploaded); err != nil {
		t.Fatal(err)
	}

	if n := testutil.CountNotifications(t, f.db, f.member.ID, models.NotifyFileUploaded); n != 1 {
		t.Errorf("member file notifications = %d, want 1", n)
	}

	dl := httptest.NewRequest(http.MethodGet, fmt.Sprintf("%s/%d/download", base, uploaded.ID), nil)
	dl.Header.Set("X-Test-User", "member")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, dl)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "%PDF-1.4" {
		t.Errorf("body = %q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "filename*=UTF-8''week%201%20notes.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if cl := w.Header().Get("Content-Length"); cl != "8" {
		t.Errorf("Content-Length = %q, want 8", cl)
	}

	// outsiders cannot see a room's files
	w, _ = do(t, r, http.MethodGet, fmt.Sprintf("%s/%d/download", base, uploaded.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("outsider download status = %d, want 403", w.Code)
	}
}

func TestFileHandler_RejectsDisallowedType(t *testing.T) {
	f := newRoomFixture(t)
	r := f.fileRouter(t, f.leader)

	req := multipartUpload(t, fmt.Sprintf("/api/room/%d/files", f.study.ID), "run.exe", "MZ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), ".exe is not allowed") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestContentDisposition(t *testing.T) {
	tests := map[string]string{
		"notes.pdf":   `attachment; filename="notes.pdf"; filename*=UTF-8''notes.pdf`,
		"스터디 자료.pdf": `attachment; filename="%EC%8A%A4%ED%84%B0%EB%94%94%20%EC%9E%90%EB%A3%8C.pdf"; filename*=UTF-8''%EC%8A%A4%ED%84%B0%EB%94%94%20%EC%9E%90%EB%A3%8C.pdf`,
	}
	for in, want := range tests {
		if got := contentDisposition(in); got != want {
			t.Errorf("contentDisposition(%q) = %q, want %q", in, got, want)
		}
	}
}
