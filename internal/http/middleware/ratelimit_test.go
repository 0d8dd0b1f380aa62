package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(rps, burst, KeyBySessionOrIP()).Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func getPing(r *gin.Engine, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	r := newLimitedRouter(1, 3)
	for i := 0; i < 3; i++ {
		if w := getPing(r, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	r := newLimitedRouter(0.0001, 1)

	if w := getPing(r, nil); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	w := getPing(r, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
	if !strings.Contains(w.Body.String(), "rate_limited") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRateLimiter_SessionsGetSeparateBuckets(t *testing.T) {
	r := newLimitedRouter(0.0001, 1)

	if w := getPing(r, map[string]string{sessionIDHeader: "a"}); w.Code != http.StatusOK {
		t.Fatalf("session a: status = %d", w.Code)
	}
	if w := getPing(r, map[string]string{sessionIDHeader: "a"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("session a repeat: status = %d", w.Code)
	}
	// A different session is a fresh bucket even from the same IP.
	if w := getPing(r, map[string]string{sessionIDHeader: "b"}); w.Code != http.StatusOK {
		t.Fatalf("session b: status = %d", w.Code)
	}
}

func TestRateLimiter_ReplayBypassesBucket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxKeyRateBypass, true)
		c.Next()
	})
	r.Use(NewRateLimiter(0.0001, 1, KeyBySessionOrIP()).Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		if w := getPing(r, nil); w.Code != http.StatusOK {
			t.Fatalf("bypassed request %d: status = %d", i+1, w.Code)
		}
	}
}

func TestKeyBySessionOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyBySessionOrIP()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(sessionIDHeader, "tok-1")
	if got := keyFn(c); got != "session:tok-1" {
		t.Fatalf("key = %q", got)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.1.2.3:5555"
	if got := keyFn(c); got != "ip:10.1.2.3" {
		t.Fatalf("key = %q", got)
	}
}
