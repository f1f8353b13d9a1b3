package services

import (
	"sync"
	"time"

	"github.com/huangang/studyhub/internal/metrics"
	"github.com/huangang/studyhub/internal/models"
)

// NotificationEvent is pushed to a recipient's live streams when a notification is stored.
type NotificationEvent struct {
	ID        uint                    `json:"id"`
	StudyID   uint                    `json:"study_id"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	LinkURL   string                  `json:"link_url"`
	CreatedAt time.Time               `json:"created_at"`
}

func eventFromNotification(n *models.Notification) NotificationEvent {
	return NotificationEvent{
		ID:        n.ID,
		StudyID:   n.StudyID,
		Type:      n.Type,
		Message:   n.Message,
		LinkURL:   n.LinkURL,
		CreatedAt: n.CreatedAt,
	}
}

type hubClient struct {
	userID uint
	ch     chan NotificationEvent
}

// NotificationHub routes events to the SSE connections of their recipient.
// A user may hold several connections (tabs, devices).
type NotificationHub struct {
	clients map[string]*hubClient
	mu      sync.RWMutex
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients: make(map[string]*hubClient),
	}
}

// Subscribe registers a connection for userID. The returned channel is closed by Unsubscribe.
func (h *NotificationHub) Subscribe(clientID string, userID uint) <-chan NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old.ch)
	}
	ch := make(chan NotificationEvent, 32)
	h.clients[clientID] = &hubClient{userID: userID, ch: ch}
	metrics.Default().SSEClients.Set(float64(len(h.clients)))
	return ch
}

func (h *NotificationHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
	metrics.Default().SSEClients.Set(float64(len(h.clients)))
}

// Publish delivers event to every connection of userID. Slow clients drop events;
// the notification row is the source of truth.
func (h *NotificationHub) Publish(userID uint, event NotificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.ch <- event:
		default:
		}
	}
}

func (h *NotificationHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalHub *NotificationHub
	hubOnce   sync.Once
)

func GetNotificationHub() *NotificationHub {
	hubOnce.Do(func() {
		globalHub = NewNotificationHub()
	})
	return globalHub
}
