// Package services – ContactService
//
// This file implements the ContactService, which persists validated contact
// form submissions. Field-shape validation (lengths, email format, consent)
// happens at the HTTP layer; the service normalizes the values, re-checks the
// consent invariant, and delegates to the repository. Nothing is written
// unless consent is literally true.
package services

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
)

// ContactRepo defines the repository contract required by ContactService.
type ContactRepo interface {
	// CreateContact inserts a new contact submission row.
	CreateContact(ctx context.Context, db *gorm.DB, c *domain.ContactSubmission) (*domain.ContactSubmission, error)
}

// ContactInput is a validated contact-form payload.
type ContactInput struct {
	Name    string
	Phone   string
	Email   string
	Program string
	Message string
	Privacy bool
}

// ContactService persists contact submissions.
type ContactService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the contact repository used by this service.
	Repo ContactRepo
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB, r ContactRepo) *ContactService {
	return &ContactService{DB: db, Repo: r}
}

// Submit normalizes and persists one contact submission. Submissions without
// consent fail with ErrConsentRequired and leave no trace.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*domain.ContactSubmission, error) {
	if !in.Privacy {
		return nil, ErrConsentRequired
	}
	c := &domain.ContactSubmission{
		Name:    titleName(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Email:   strings.TrimSpace(in.Email),
		Program: strings.ToLower(strings.TrimSpace(in.Program)),
		Message: normalizeText(in.Message),
		Privacy: true,
	}
	return s.Repo.CreateContact(ctx, s.DB, c)
}

// nameCaser title-cases person names; Russian covers the site's audience and
// behaves sensibly for Latin input too.
var nameCaser = cases.Title(language.Russian)

// titleName trims, collapses whitespace, and title-cases a person name.
func titleName(s string) string {
	return nameCaser.String(normalizeText(s))
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeText trims whitespace and collapses internal runs to one space.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}
