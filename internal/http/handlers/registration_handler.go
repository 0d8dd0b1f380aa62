// Package handlers – registration endpoints
//
// POST /api/register enrolls a student directly, without going through the
// chat assistant: the request carries the full profile and yields a pending
// registration with a numeric identifier. Retries are deduplicated via the
// Idempotency-Key header; replays return the original identifier and set
// Idempotency-Replayed: true.
//
// GET /api/registrations is a paginated admin listing with weak-ETag
// revalidation, mirroring how the site dashboard polls it.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
	"github.com/englishschool-ru/go-school-backend/internal/http/middleware"
	"github.com/englishschool-ru/go-school-backend/internal/services"
	"github.com/englishschool-ru/go-school-backend/internal/utils"
)

// msgRegistrationAccepted confirms a direct registration in the voice of the
// site frontend.
const msgRegistrationAccepted = "Ваша заявка принята! Мы свяжемся с вами в ближайшее время."

// headerIdemReplayed marks responses served from a stored idempotency record.
const headerIdemReplayed = "Idempotency-Replayed"

// RegistrationManager is the service contract required by RegistrationHandler.
type RegistrationManager interface {
	Register(ctx context.Context, in services.RegistrationInput) (*domain.CourseRegistration, error)
	Get(ctx context.Context, id uint) (*domain.CourseRegistration, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.CourseRegistration, int64, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// ReplayStore resolves and records idempotency state for the register
// endpoint. A nil ReplayStore disables replay handling.
type ReplayStore interface {
	Lookup(ctx context.Context, clientID, endpoint, key string) (*domain.IdempotencyRecord, bool, error)
	Save(ctx context.Context, clientID, endpoint, key string, registrationID uint, status int) error
}

// RegisterRequest is the POST /api/register payload. Email is the only
// optional field.
type RegisterRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Phone      string `json:"phone" binding:"required,min=10,max=20"`
	Email      string `json:"email" binding:"omitempty,email,max=254"`
	Age        string `json:"age" binding:"required,max=20"`
	Level      string `json:"level" binding:"required,max=100"`
	Goals      string `json:"goals" binding:"required,max=500"`
	Experience string `json:"experience" binding:"required,max=500"`
	Program    string `json:"program" binding:"required,max=100"`
}

// RegisterResponse is the success payload for POST /api/register.
type RegisterResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RegistrationID uint   `json:"registrationId"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRegistrationsResponse wraps a page of registrations and pagination
// information.
type ListRegistrationsResponse struct {
	Registrations []domain.CourseRegistration `json:"registrations"`
	Pagination    Pagination                  `json:"pagination"`
}

// RegistrationHandler exposes the registration endpoints.
type RegistrationHandler struct {
	Svc     RegistrationManager
	Replays ReplayStore
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc RegistrationManager, replays ReplayStore) *RegistrationHandler {
	return &RegistrationHandler{Svc: svc, Replays: replays}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// idemClientID identifies the caller for idempotency scoping, matching the
// derivation used by the validator middleware.
func idemClientID(c *gin.Context) string {
	if sid := c.GetHeader(sessionIDHeader); sid != "" {
		return "session:" + sid
	}
	return "ip:" + c.ClientIP()
}

// Register handles POST /api/register.
//
// Responses:
//   - 200 {success:true, message, registrationId}  on created or replayed
//   - 400 validation_failed                        with per-field errors
//   - 500 internal_error                           when persistence fails
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed, fieldErrors(err))
		return
	}

	ctx := c.Request.Context()
	endpoint := c.Request.URL.Path
	key, hasKey := middleware.GetIdempotencyKey(c)

	// Serve a stored result when this key was already completed.
	if hasKey && h.Replays != nil {
		clientID := idemClientID(c)
		if rec, found, err := h.Replays.Lookup(ctx, clientID, endpoint, key); err == nil && found {
			c.Header(headerIdemReplayed, "true")
			ok(c, rec.Status, RegisterResponse{
				Success:        true,
				Message:        msgRegistrationAccepted,
				RegistrationID: rec.RegistrationID,
			})
			return
		}
	}

	reg, err := h.Svc.Register(ctx, services.RegistrationInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Age:        req.Age,
		Level:      req.Level,
		Goals:      req.Goals,
		Experience: req.Experience,
		Program:    req.Program,
	})
	if err != nil {
		var inc *services.IncompleteRegistrationError
		if errors.As(err, &inc) {
			fields := make([]FieldError, 0, len(inc.Fields))
			for _, f := range inc.Fields {
				fields = append(fields, FieldError{Field: f, Message: f + " is required"})
			}
			failFields(c, http.StatusBadRequest, ErrCodeValidation, msgValidationFailed, fields)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeRegisterFailed, msgInternalError)
		return
	}

	if hasKey && h.Replays != nil {
		if err := h.Replays.Save(ctx, idemClientID(c), endpoint, key, reg.ID, http.StatusOK); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).
				Uint("registration_id", reg.ID).
				Msg("idempotency record insert failed")
		}
	}

	middleware.LoggerFrom(c).Info().
		Uint("registration_id", reg.ID).
		Str("program", reg.Program).
		Msg("registration accepted")

	ok(c, http.StatusOK, RegisterResponse{
		Success:        true,
		Message:        msgRegistrationAccepted,
		RegistrationID: reg.ID,
	})
}

// ListRegistrations handles GET /api/registrations.
//
// Supports weak ETag revalidation via If-None-Match and may return 304.
func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.Svc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"registrations:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.Svc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListRegistrationsResponse{
		Registrations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
