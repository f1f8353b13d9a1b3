package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the inbox, newest first. ?unread=true limits it to unread items.
// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	user := currentUser(c)
	list := h.notifications.List
	if c.Query("unread") == "true" {
		list = h.notifications.ListUnread
	}
	items, err := list(user)
	if err != nil {
		fail(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(user)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"items": items, "unread_count": unread})
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	unread, err := h.notifications.UnreadCount(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"unread_count": unread})
}

// MarkRead returns the notification so the client can follow its link.
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.notifications.MarkAsRead(id, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"notification": n, "link_url": n.LinkURL})
}

// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllAsRead(currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}
