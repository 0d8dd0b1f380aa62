// Package services – RegistrationService
//
// This file implements RegistrationService, the single path through which
// course registrations reach the database. Both the registration form and
// the chat extractor funnel into Register, so the all-seven-required-fields
// invariant is enforced in exactly one place: a payload with any empty
// required field is rejected before any side effect.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
	"github.com/englishschool-ru/go-school-backend/internal/repo"
)

// RegistrationRepo defines the repository contract required by
// RegistrationService.
type RegistrationRepo interface {
	// CreateRegistration inserts a registration row and fills the generated ID.
	CreateRegistration(ctx context.Context, db *gorm.DB, reg *domain.CourseRegistration) (*domain.CourseRegistration, error)

	// GetRegistration fetches a registration by its numeric ID.
	GetRegistration(ctx context.Context, db *gorm.DB, id uint) (*domain.CourseRegistration, error)

	// CountRegistrations returns the total number of registrations.
	CountRegistrations(ctx context.Context, db *gorm.DB) (int64, error)

	// ListRegistrationsPage returns a page of registrations, newest first.
	ListRegistrationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.CourseRegistration, error)

	// RegistrationsStats returns the row count and latest update time, used
	// for conditional (ETag) responses.
	RegistrationsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// RegistrationInput carries the eight registration fields before validation.
type RegistrationInput struct {
	Name       string
	Phone      string
	Email      string
	Age        string
	Level      string
	Goals      string
	Experience string
	Program    string
}

// RegistrationService validates and persists course registrations.
type RegistrationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the registration repository used by this service.
	Repo RegistrationRepo
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(db *gorm.DB, r RegistrationRepo) *RegistrationService {
	return &RegistrationService{DB: db, Repo: r}
}

// Register validates the input and inserts a pending registration. When any
// of the seven required fields is empty it returns an
// IncompleteRegistrationError naming them, and nothing is persisted.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*domain.CourseRegistration, error) {
	reg := &domain.CourseRegistration{
		Name:       titleName(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.TrimSpace(in.Email),
		Age:        strings.TrimSpace(in.Age),
		Level:      strings.TrimSpace(in.Level),
		Goals:      normalizeText(in.Goals),
		Experience: normalizeText(in.Experience),
		Program:    strings.ToLower(strings.TrimSpace(in.Program)),
		Status:     domain.StatusPending,
	}

	var missing []string
	require := func(name, v string) {
		if v == "" {
			missing = append(missing, name)
		}
	}
	require("name", reg.Name)
	require("phone", reg.Phone)
	require("age", reg.Age)
	require("level", reg.Level)
	require("goals", reg.Goals)
	require("experience", reg.Experience)
	require("program", reg.Program)
	if len(missing) > 0 {
		return nil, &IncompleteRegistrationError{Fields: missing}
	}

	return s.Repo.CreateRegistration(ctx, s.DB, reg)
}

// Get returns one registration by ID, or ErrRegistrationNotFound.
func (s *RegistrationService) Get(ctx context.Context, id uint) (*domain.CourseRegistration, error) {
	reg, err := s.Repo.GetRegistration(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

// ListPage returns a page of registrations and the total count.
// It applies defaults for invalid page/pageSize.
func (s *RegistrationService) ListPage(ctx context.Context, page, pageSize int) ([]domain.CourseRegistration, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountRegistrations(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CourseRegistration{}, 0, nil
	}

	items, err := s.Repo.ListRegistrationsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Stats returns the registration count and latest update time for ETag use.
func (s *RegistrationService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.RegistrationsStats(ctx, s.DB)
}
