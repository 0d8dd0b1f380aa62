// Package handlers – AI consultant endpoint
//
// POST /api/chat relays one visitor message to the consultation assistant and
// returns its reply. Sessions are identified by an opaque server-issued token
// carried in X-Session-ID; a request without one gets a fresh token back in
// the response body and header, and the client is expected to repeat it.
// Until it does, the turn is keyed by the client address, so widgets that
// never learned the header still hold a coherent conversation.
//
// Model outages degrade, they do not error: a failed completion still yields
// HTTP 200 with a fixed apology so the site widget never shows a raw failure.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/englishschool-ru/go-school-backend/internal/http/middleware"
	"github.com/englishschool-ru/go-school-backend/internal/services"
)

// sessionIDHeader mirrors the middleware constant; handlers read and write it
// directly so the package stays independently testable.
const sessionIDHeader = "X-Session-ID"

// Consulter is the service contract required by ChatHandler.
type Consulter interface {
	Consult(ctx context.Context, sessionID string, req services.ConsultRequest) (*services.ConsultResult, error)
}

// ChatProfile carries what the frontend wizard already knows about the
// visitor. All fields are optional free text.
type ChatProfile struct {
	Program    string `json:"program" binding:"omitempty,max=100"`
	Level      string `json:"level" binding:"omitempty,max=100"`
	Age        string `json:"age" binding:"omitempty,max=20"`
	Goals      string `json:"goals" binding:"omitempty,max=500"`
	Experience string `json:"experience" binding:"omitempty,max=500"`
}

// ChatRequest is the POST /api/chat payload. The profile key is spelled
// userProfile on the wire; that is what the site widget posts.
type ChatRequest struct {
	Message string      `json:"message" binding:"required,max=2000"`
	Step    string      `json:"step" binding:"omitempty,max=50"`
	Profile ChatProfile `json:"userProfile"`
}

// ChatResponse is the POST /api/chat reply.
//
// SessionID is present only when the server minted a new token for this
// request; Registration is present only when the reply carried an enrollment
// command.
type ChatResponse struct {
	Message      string                        `json:"message"`
	Step         string                        `json:"step,omitempty"`
	SessionID    string                        `json:"sessionId,omitempty"`
	Registration *services.RegistrationOutcome `json:"registration,omitempty"`
}

// ChatHandler exposes the consultation chat endpoint.
type ChatHandler struct {
	Svc Consulter
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(svc Consulter) *ChatHandler {
	return &ChatHandler{Svc: svc}
}

// Chat handles POST /api/chat.
//
// Responses:
//   - 200 reply (or fixed apology when the model call failed)
//   - 400 validation_failed on empty or oversized messages
//   - 500 internal_error on unexpected failures
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed, fieldErrors(err))
		return
	}

	// Clients that send a token keep it; token-less clients are keyed by
	// their address so the transcript still accumulates across turns, and a
	// fresh token is offered for them to adopt.
	sessionID := c.GetHeader(sessionIDHeader)
	var minted string
	if sessionID == "" {
		sessionID = "ip:" + c.ClientIP()
		minted = uuid.NewString()
		c.Header(sessionIDHeader, minted)
	} else {
		c.Header(sessionIDHeader, sessionID)
	}

	res, err := h.Svc.Consult(c.Request.Context(), sessionID, services.ConsultRequest{
		Message: req.Message,
		Step:    req.Step,
		Profile: services.Profile{
			Program:    req.Profile.Program,
			Level:      req.Profile.Level,
			Age:        req.Profile.Age,
			Goals:      req.Profile.Goals,
			Experience: req.Profile.Experience,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed,
				[]FieldError{{Field: "message", Message: "message is required"}})
		case errors.Is(err, services.ErrMessageTooLong):
			failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed,
				[]FieldError{{Field: "message", Message: "message is too long"}})
		case errors.Is(err, services.ErrCompletionFailed):
			middleware.LoggerFrom(c).Error().Err(err).
				Str("session_id", sessionID).
				Msg("model completion failed")
			resp := ChatResponse{Message: services.ApologyMessage, Step: req.Step, SessionID: minted}
			ok(c, http.StatusOK, resp)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternalError)
		}
		return
	}

	ok(c, http.StatusOK, ChatResponse{
		Message:      res.Message,
		Step:         res.Step,
		SessionID:    minted,
		Registration: res.Registration,
	})
}
