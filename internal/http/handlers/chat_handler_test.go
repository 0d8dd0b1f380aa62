package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/englishschool-ru/go-school-backend/internal/services"
)

// fakeConsulter records the sessions and requests it was called with.
type fakeConsulter struct {
	gotSession string
	sessions   []string
	gotReq     *services.ConsultRequest
	res        *services.ConsultResult
	err        error
}

func (f *fakeConsulter) Consult(_ context.Context, sessionID string, req services.ConsultRequest) (*services.ConsultResult, error) {
	f.gotSession = sessionID
	f.sessions = append(f.sessions, sessionID)
	f.gotReq = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &services.ConsultResult{Message: "ответ", Step: req.Step}, nil
}

func newChatRouter(svc Consulter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/chat", NewChatHandler(svc).Chat)
	return r
}

func TestChat_NewSessionGetsToken(t *testing.T) {
	fs := &fakeConsulter{}
	r := newChatRouter(fs)

	w := postJSON(t, r, "/api/chat", `{"message":"привет","step":"start"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("new session did not receive a token: %+v", resp)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Fatalf("token is not a UUID: %q", resp.SessionID)
	}
	if got := w.Header().Get("X-Session-ID"); got != resp.SessionID {
		t.Fatalf("header token %q != body token %q", got, resp.SessionID)
	}
	if resp.Step != "start" {
		t.Fatalf("step not echoed: %q", resp.Step)
	}
	if !strings.HasPrefix(fs.gotSession, "ip:") {
		t.Fatalf("headerless turn must be keyed by address, got %q", fs.gotSession)
	}
}

func TestChat_HeaderlessClientKeepsSession(t *testing.T) {
	fs := &fakeConsulter{}
	r := newChatRouter(fs)

	// The original site widget never sends X-Session-ID; both turns come from
	// the same address and must land in the same transcript.
	for _, msg := range []string{`{"message":"привет"}`, `{"message":"а цены?"}`} {
		if w := postJSON(t, r, "/api/chat", msg, nil); w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
	if len(fs.sessions) != 2 || fs.sessions[0] != fs.sessions[1] {
		t.Fatalf("sessions = %v; want the same one twice", fs.sessions)
	}
}

func TestChat_ExistingSessionReused(t *testing.T) {
	fs := &fakeConsulter{}
	r := newChatRouter(fs)

	sid := uuid.NewString()
	w := postJSON(t, r, "/api/chat", `{"message":"ещё вопрос"}`,
		map[string]string{"X-Session-ID": sid})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "" {
		t.Fatalf("existing session must not get a fresh token: %q", resp.SessionID)
	}
	if fs.gotSession != sid {
		t.Fatalf("service saw session %q; want %q", fs.gotSession, sid)
	}
}

func TestChat_ProfileForwarded(t *testing.T) {
	fs := &fakeConsulter{}
	r := newChatRouter(fs)

	// The widget posts the profile under the userProfile key.
	body := `{"message":"подберите курс","step":"s3","userProfile":{"program":"general","level":"B1","age":"25","goals":"работа"}}`
	if w := postJSON(t, r, "/api/chat", body, nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	p := fs.gotReq.Profile
	if p.Program != "general" || p.Level != "B1" || p.Age != "25" || p.Goals != "работа" {
		t.Fatalf("profile not forwarded: %+v", p)
	}
}

func TestChat_MissingMessage(t *testing.T) {
	fs := &fakeConsulter{}
	r := newChatRouter(fs)

	w := postJSON(t, r, "/api/chat", `{"step":"start"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if fs.gotReq != nil {
		t.Fatalf("service called without a message")
	}
}

func TestChat_BlankMessageRejectedByService(t *testing.T) {
	fs := &fakeConsulter{err: services.ErrEmptyMessage}
	r := newChatRouter(fs)

	w := postJSON(t, r, "/api/chat", `{"message":"   "}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestChat_CompletionFailureReturnsApology(t *testing.T) {
	fs := &fakeConsulter{err: fmt.Errorf("%w: upstream timeout", services.ErrCompletionFailed)}
	r := newChatRouter(fs)

	w := postJSON(t, r, "/api/chat", `{"message":"привет","step":"s2"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("model failure must stay 200, got %d", w.Code)
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != services.ApologyMessage {
		t.Fatalf("message = %q; want apology", resp.Message)
	}
	if resp.Step != "s2" {
		t.Fatalf("step not echoed on failure: %q", resp.Step)
	}
	if resp.SessionID == "" {
		t.Fatalf("fresh token must survive the failure path")
	}
}

func TestChat_UnexpectedServiceError(t *testing.T) {
	fs := &fakeConsulter{err: errors.New("boom")}
	r := newChatRouter(fs)

	w := postJSON(t, r, "/api/chat", `{"message":"привет"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestChat_RegistrationOutcomePassthrough(t *testing.T) {
	fs := &fakeConsulter{res: &services.ConsultResult{
		Message: "Ваша заявка №5 на программу «Общий английский» принята! Мы свяжемся с вами в ближайшее время.",
		Registration: &services.RegistrationOutcome{
			Success:        true,
			RegistrationID: 5,
		},
	}}
	r := newChatRouter(fs)

	w := postJSON(t, r, "/api/chat", `{"message":"да, записывайте"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Registration == nil || !resp.Registration.Success || resp.Registration.RegistrationID != 5 {
		t.Fatalf("registration outcome = %+v", resp.Registration)
	}
}
