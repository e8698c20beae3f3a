package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterStoreAllow(t *testing.T) {
	// 1 request per minute with burst 2: two immediate requests pass, third is blocked
	s := NewLimiterStore(1, 2, time.Minute)
	defer s.Stop()

	if !s.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if !s.Allow("k") {
		t.Fatal("second request (burst) should be allowed")
	}
	if s.Allow("k") {
		t.Fatal("third request should be rate limited")
	}

	// independent keys get independent limiters
	if !s.Allow("other") {
		t.Fatal("request for a different key should be allowed")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	r := gin.New()
	r.POST("/login", RateLimit(s), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", code)
	}
}

func TestRateLimitKeyedByUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	var seen string
	r := gin.New()
	r.POST("/login", RateLimit(s), func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		seen = req.Username
		c.Status(http.StatusOK)
	})

	do := func(addr, body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w.Code
	}

	// the same account from two addresses shares one limiter
	if code := do("10.0.0.1:1234", `{"username":"Alice","password":"x"}`); code != http.StatusOK {
		t.Fatalf("first attempt: got %d, want 200", code)
	}
	if code := do("10.0.0.2:1234", `{"username":" alice ","password":"x"}`); code != http.StatusTooManyRequests {
		t.Fatalf("second attempt from a new address: got %d, want 429", code)
	}

	// a different account from an already-seen address is unaffected
	if code := do("10.0.0.2:1234", `{"username":"bob","password":"x"}`); code != http.StatusOK {
		t.Fatalf("different account: got %d, want 200", code)
	}

	// the handler still sees the full body after the limiter read it
	if seen != "bob" {
		t.Fatalf("handler saw username %q, want %q", seen, "bob")
	}
}

func TestRateLimitBodylessRequestFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	r := gin.New()
	r.POST("/login", RateLimit(s), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(addr string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", code)
	}
	if code := do("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat from same address: got %d, want 429", code)
	}
	if code := do("10.0.0.9:1234"); code != http.StatusOK {
		t.Fatalf("different address: got %d, want 200", code)
	}
}
