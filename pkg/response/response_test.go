package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func render(t *testing.T, write func(*gin.Context)) (int, Response, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	write(c)

	var env Response
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	json.Unmarshal(w.Body.Bytes(), &raw)
	return w.Code, env, raw
}

func TestSuccessEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		write   func(*gin.Context)
		status  int
		message string
	}{
		{"success", func(c *gin.Context) { Success(c, gin.H{"id": 3}) }, http.StatusOK, "ok"},
		{"created", func(c *gin.Context) { Created(c, gin.H{"id": 3}) }, http.StatusCreated, "created"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env, raw := render(t, tt.write)
			if status != tt.status || env.Code != 0 || env.Message != tt.message {
				t.Errorf("got %d %+v", status, env)
			}
			if string(raw["data"]) != `{"id":3}` {
				t.Errorf("data = %s", raw["data"])
			}
			if _, ok := raw["errors"]; ok {
				t.Error("errors key present on success")
			}
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		fields  map[string]string
	}{
		{"bad request", NewBadRequest("title is required"), 400, "title is required", nil},
		{"unauthorized", NewUnauthorized("login required"), 401, "login required", nil},
		{"forbidden", NewForbidden("leaders only"), 403, "leaders only", nil},
		{"not found", NewNotFound("study not found"), 404, "study not found", nil},
		{"conflict", NewConflict("already applied"), 409, "already applied", nil},
		{"too large", NewTooLarge("file exceeds 10 MB"), 413, "file exceeds 10 MB", nil},
		{"wrapped validation", fmt.Errorf("signup: %w", NewValidation("email", "already registered")), 400, "already registered", map[string]string{"email": "already registered"}},
		{"plain error", errors.New("pq: connection refused"), 500, "internal server error", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env, _ := render(t, func(c *gin.Context) { Error(c, tt.err) })
			if status != tt.status || env.Code != tt.status {
				t.Errorf("status %d code %d, expected %d", status, env.Code, tt.status)
			}
			if env.Message != tt.message {
				t.Errorf("message = %q, expected %q", env.Message, tt.message)
			}
			for k, v := range tt.fields {
				if env.Errors[k] != v {
					t.Errorf("errors[%q] = %q, expected %q", k, env.Errors[k], v)
				}
			}
		})
	}
}

func TestFail(t *testing.T) {
	status, env, _ := render(t, func(c *gin.Context) { Fail(c, http.StatusNotFound, "membership not found") })
	if status != 404 || env.Code != 404 || env.Message != "membership not found" {
		t.Errorf("got %d %+v", status, env)
	}
}

func TestAppError_WithField(t *testing.T) {
	err := NewBadRequest("validation failed").WithField("title", "is required").WithField("max_members", "must be at least 2")
	if len(err.Fields) != 2 || err.Error() != "validation failed" {
		t.Errorf("err = %+v", err)
	}
}
