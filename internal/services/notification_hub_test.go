package services

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestNotificationHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewNotificationHub()

	hub.Subscribe("tab-1", 1)
	hub.Subscribe("tab-2", 1)
	hub.Subscribe("phone", 2)
	if hub.ClientCount() != 3 {
		t.Fatalf("expected 3 clients, got %d", hub.ClientCount())
	}

	hub.Unsubscribe("tab-1")
	hub.Unsubscribe("nonexistent")
	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients after unsubscribe, got %d", hub.ClientCount())
	}
}

func TestNotificationHub_PublishOnlyToRecipient(t *testing.T) {
	hub := NewNotificationHub()

	mine1 := hub.Subscribe("tab-1", 1)
	mine2 := hub.Subscribe("tab-2", 1)
	other := hub.Subscribe("other", 2)

	hub.Publish(1, NotificationEvent{ID: 7, Message: "[Go] New post: intro"})

	for i, ch := range []<-chan NotificationEvent{mine1, mine2} {
		select {
		case ev := <-ch:
			if ev.ID != 7 {
				t.Errorf("tab-%d: ID = %d, expected 7", i+1, ev.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("tab-%d: timed out waiting for event", i+1)
		}
	}

	select {
	case ev := <-other:
		t.Errorf("other user received %+v", ev)
	default:
	}
}

func TestNotificationHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewNotificationHub()
	ch := hub.Subscribe("tab", 1)
	hub.Unsubscribe("tab")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestNotificationHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewNotificationHub()
	hub.Subscribe("slow", 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(1, NotificationEvent{ID: uint(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
}

func TestNotificationHub_ConcurrentUse(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewNotificationHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			ch := hub.Subscribe(id, uint(i%3))
			hub.Publish(uint(i%3), NotificationEvent{ID: uint(i)})
			hub.Unsubscribe(id)
			for range ch {
			}
		}(i)
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestGetNotificationHub_Singleton(t *testing.T) {
	if GetNotificationHub() != GetNotificationHub() {
		t.Error("GetNotificationHub should return the same instance")
	}
}
