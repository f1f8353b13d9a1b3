package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
)

func TestSSEHandler_StreamsOwnNotifications(t *testing.T) {
	hub := services.NewNotificationHub()
	h := NewSSEHandler(hub)
	user := &models.User{ID: 5, Username: "mina@example.com", Role: models.UserRoleUser}

	r := gin.New()
	r.GET("/api/events/notifications", as(user), h.StreamNotifications)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events/notifications", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(99, services.NotificationEvent{ID: 1, Message: "not for mina"})
	hub.Publish(5, services.NotificationEvent{ID: 2, StudyID: 3, Type: models.NotifyPostCreated, Message: "New post: Week 1"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, sse.ContentType) {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"retry:5000", "event:ready", "id:2", "event:notification", "New post: Week 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "not for mina") {
		t.Error("stream leaked another user's notification")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client still subscribed after disconnect")
	}
}
