package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/englishschool-ru/go-school-backend/internal/config"
	"github.com/englishschool-ru/go-school-backend/internal/repo"
	"github.com/englishschool-ru/go-school-backend/internal/services"
	"github.com/englishschool-ru/go-school-backend/internal/session"
)

// newTestServer wires the full middleware chain and routes against an
// in-memory SQLite database and a nil completer (chat fallback mode).
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := config.Config{
		APIBasePath:    "/api",
		HistoryLimit:   4,
		RateRPS:        1000,
		RateBurst:      1000,
		IdempotencyTTL: time.Hour,
	}
	cfg.OTEL.ServiceName = "router-test"

	gin.SetMode(gin.TestMode)
	r := gin.New()
	store := session.NewMemoryStore(cfg.HistoryLimit, time.Hour)
	RegisterRoutes(r, db, store, nil, cfg)
	return r, db
}

func doJSON(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("correlation ID missing")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestRouter_NoRouteAndNoMethod(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body = %s", w.Body.String())
	}

	w = doJSON(r, http.MethodDelete, "/health", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("bad method: status = %d", w.Code)
	}
}

func TestRouter_MetricsExposed(t *testing.T) {
	r, _ := newTestServer(t)

	if w := doJSON(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", w.Code)
	}
}

func TestRouter_ContactEndToEnd(t *testing.T) {
	r, db := newTestServer(t)

	body := `{"name":"анна петрова","phone":"+7 999 111-22-33","privacy":true}`
	w := doJSON(r, http.MethodPost, "/api/contact", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Заявка успешно отправлена") {
		t.Fatalf("body = %s", w.Body.String())
	}

	n, err := repo.CountContacts(context.Background(), db)
	if err != nil || n != 1 {
		t.Fatalf("persisted contacts = %d err=%v", n, err)
	}
}

func TestRouter_ChatFallbackWithoutModel(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(r, http.MethodPost, "/api/chat", `{"message":"привет"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != services.FallbackMessage {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.SessionID == "" || w.Header().Get("X-Session-ID") != resp.SessionID {
		t.Fatalf("session token: body=%q header=%q", resp.SessionID, w.Header().Get("X-Session-ID"))
	}
}

func TestRouter_RegisterIdempotentRetry(t *testing.T) {
	r, db := newTestServer(t)

	body := `{"name":"Анна","phone":"79991112233","age":"25","level":"B1","goals":"работа","experience":"школа","program":"general"}`
	hdr := map[string]string{"Idempotency-Key": "retry-abc"}

	w := doJSON(r, http.MethodPost, "/api/register", body, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("first: status = %d body=%s", w.Code, w.Body.String())
	}
	var first struct {
		RegistrationID uint `json:"registrationId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(r, http.MethodPost, "/api/register", body, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("retry: status = %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("retry not flagged as replay")
	}
	var second struct {
		RegistrationID uint `json:"registrationId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.RegistrationID != first.RegistrationID {
		t.Fatalf("replayed id = %d; want %d", second.RegistrationID, first.RegistrationID)
	}

	n, err := repo.CountRegistrations(context.Background(), db)
	if err != nil || n != 1 {
		t.Fatalf("persisted registrations = %d err=%v", n, err)
	}
}

func TestRouter_CORSWildcardByDefault(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://site.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q", got)
	}
}
