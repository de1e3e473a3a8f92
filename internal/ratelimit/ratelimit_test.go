package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scamcheck/scamcheck/internal/identity"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterAllow(t *testing.T) {
	l, now := newTestLimiter(Config{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	key := "id:alice@example.com"
	for i := 0; i < 5; i++ {
		if !l.Allow(key) {
			t.Errorf("request %d should be allowed within burst", i)
		}
	}
	if l.Allow(key) {
		t.Error("request after burst should be denied")
	}

	// One token refills per second at 60/min.
	*now = now.Add(time.Second)
	if !l.Allow(key) {
		t.Error("request after refill should be allowed")
	}
}

func TestLimiterCallersIndependent(t *testing.T) {
	l, _ := newTestLimiter(Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.Allow("id:alice@example.com")
	}
	if l.Allow("id:alice@example.com") {
		t.Error("exhausted caller should be limited")
	}
	if !l.Allow("id:bob@example.com") {
		t.Error("other callers keep their own budget")
	}
}

func TestLimiterBurstCap(t *testing.T) {
	l, now := newTestLimiter(Config{
		RequestsPerMinute: 600,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	l.Allow("key")
	l.Allow("key")

	// A long idle period must not bank more than the burst size.
	*now = now.Add(time.Hour)
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("key") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("expected burst of 2 after idle, got %d", allowed)
	}
}

func TestMiddleware_KeysByIdentityHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l, _ := newTestLimiter(Config{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer l.Stop()

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(email string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if email != "" {
			req.Header.Set(identity.EmailHeader, email)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("alice@example.com"); code != http.StatusOK {
		t.Errorf("first request: got %d", code)
	}
	if code := do("alice@example.com"); code != http.StatusTooManyRequests {
		t.Errorf("second request same identity: got %d", code)
	}
	// A different identity from the same IP is not affected.
	if code := do("bob@example.com"); code != http.StatusOK {
		t.Errorf("other identity: got %d", code)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RequestsPerMinute != 60 {
		t.Errorf("expected 60 requests/min, got %d", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 10 {
		t.Errorf("expected burst size 10, got %d", cfg.BurstSize)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Errorf("expected 1 minute cleanup interval, got %v", cfg.CleanupInterval)
	}
}
