// Package handlers – contact form endpoint
//
// POST /api/contact accepts a callback request from the marketing site: name,
// phone, optional email, optional program of interest, optional free-form
// message, and a mandatory privacy-policy consent flag. Validation failures
// return the exact field list so the frontend can highlight inputs; user-facing
// messages are in Russian to match the site.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
	"github.com/englishschool-ru/go-school-backend/internal/http/middleware"
	"github.com/englishschool-ru/go-school-backend/internal/services"
)

// User-facing messages, verbatim what the site frontend displays.
const (
	msgContactAccepted  = "Заявка успешно отправлена. Мы свяжемся с вами в ближайшее время."
	msgValidationFailed = "Ошибка валидации данных"
	msgInternalError    = "Внутренняя ошибка сервера"
)

// ContactSubmitter is the service contract required by ContactHandler.
type ContactSubmitter interface {
	Submit(ctx context.Context, in services.ContactInput) (*domain.ContactSubmission, error)
}

// ContactRequest is the POST /api/contact payload.
type ContactRequest struct {
	Name    string `json:"name" binding:"required,min=2,max=100"`
	Phone   string `json:"phone" binding:"required,min=10,max=20"`
	Email   string `json:"email" binding:"omitempty,email,max=254"`
	Program string `json:"program" binding:"omitempty,max=100"`
	Message string `json:"message" binding:"omitempty,max=2000"`
	Privacy bool   `json:"privacy" binding:"required,eq=true"`
}

// ContactResponse is the success payload for POST /api/contact.
type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ContactHandler exposes the contact form endpoint.
type ContactHandler struct {
	Svc ContactSubmitter
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(svc ContactSubmitter) *ContactHandler {
	return &ContactHandler{Svc: svc}
}

// Submit handles POST /api/contact.
//
// Responses:
//   - 200 {success:true, message}  on accepted submission
//   - 400 validation_failed        with per-field errors
//   - 500 internal_error           when persistence fails
func (h *ContactHandler) Submit(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed, fieldErrors(err))
		return
	}

	sub, err := h.Svc.Submit(c.Request.Context(), services.ContactInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Program: req.Program,
		Message: req.Message,
		Privacy: req.Privacy,
	})
	if err != nil {
		if errors.Is(err, services.ErrConsentRequired) {
			failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed,
				[]FieldError{{Field: "privacy", Message: "privacy must be true"}})
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternalError)
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("submission_id", sub.ID).
		Str("program", sub.Program).
		Msg("contact submission accepted")

	ok(c, http.StatusOK, ContactResponse{Success: true, Message: msgContactAccepted})
}
