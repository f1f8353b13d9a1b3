package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/goleak"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/auth/login", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return router
}

func hit(router *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsNormalRequests(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	defer rl.Stop()

	if code := hit(limitedRouter(rl), "192.168.1.1:12345"); code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
}

func TestRateLimit_BlocksExcessiveRequests(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()
	router := limitedRouter(rl)

	var lastCode int
	for i := 0; i < 5; i++ {
		lastCode = hit(router, "10.0.0.1:12345")
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected status %d after burst exceeded, got %d", http.StatusTooManyRequests, lastCode)
	}
}

func TestRateLimit_RetryAfter(t *testing.T) {
	rl := NewRateLimiter(0.25, 1)
	defer rl.Stop()
	router := limitedRouter(rl)

	hit(router, "10.0.0.9:1")
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.9:1"
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, expected 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "4" {
		t.Errorf("Retry-After = %q, expected 4", got)
	}
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	router := limitedRouter(rl)

	if code := hit(router, "10.0.0.1:12345"); code != http.StatusOK {
		t.Errorf("IP1 first request: expected %d, got %d", http.StatusOK, code)
	}
	if code := hit(router, "10.0.0.1:12345"); code != http.StatusTooManyRequests {
		t.Errorf("IP1 second request: expected %d, got %d", http.StatusTooManyRequests, code)
	}
	if code := hit(router, "10.0.0.2:12345"); code != http.StatusOK {
		t.Errorf("IP2 first request: expected %d, got %d", http.StatusOK, code)
	}
}

func TestRateLimit_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	rl.bucketFor("10.0.0.1", time.Now())

	rl.sweep(time.Now(), time.Hour)
	if len(rl.visitors) != 1 {
		t.Fatalf("recent entry should survive, have %d", len(rl.visitors))
	}
	rl.sweep(time.Now().Add(2*time.Hour), time.Hour)
	if len(rl.visitors) != 0 {
		t.Errorf("idle entry should be swept, have %d", len(rl.visitors))
	}
}

func TestRateLimit_StopEndsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}
