// Package services – IdempotencyService
//
// This file implements the safe-retry bookkeeping behind the registration
// form endpoint. A browser that resubmits POST /api/register with the same
// Idempotency-Key within the TTL gets the originally created registration
// back instead of a duplicate row.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
	"github.com/englishschool-ru/go-school-backend/internal/repo"
)

// IdempotencyRepo defines the repository contract required by
// IdempotencyService.
type IdempotencyRepo interface {
	// GetIdempotency returns a non-expired record or repo.ErrNotFound.
	GetIdempotency(ctx context.Context, db *gorm.DB, clientID, endpoint, key string, now time.Time) (*domain.IdempotencyRecord, error)

	// CreateIdempotency inserts a record, repo.ErrDuplicate on unique violation.
	CreateIdempotency(ctx context.Context, db *gorm.DB, clientID, endpoint, key string, registrationID uint, status int, ttl time.Duration) (*domain.IdempotencyRecord, error)
}

// IdempotencyService persists and resolves idempotency records scoped by
// (client, endpoint, key).
type IdempotencyService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the idempotency repository used by this service.
	Repo IdempotencyRepo
	// TTL bounds how long a stored result can be replayed.
	TTL time.Duration
}

// NewIdempotencyService constructs an IdempotencyService. ttl values <= 0
// default to 24 hours.
func NewIdempotencyService(db *gorm.DB, r IdempotencyRepo, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyService{DB: db, Repo: r, TTL: ttl}
}

// Lookup returns the stored record for (clientID, endpoint, key), or
// (nil, false, nil) when none exists. Errors are only returned for real
// lookup failures.
func (s *IdempotencyService) Lookup(ctx context.Context, clientID, endpoint, key string) (*domain.IdempotencyRecord, bool, error) {
	rec, err := s.Repo.GetIdempotency(ctx, s.DB, clientID, endpoint, key, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// Save records a completed operation. A concurrent duplicate insert is not an
// error: the first writer wins and both requests observed the same result.
func (s *IdempotencyService) Save(ctx context.Context, clientID, endpoint, key string, registrationID uint, status int) error {
	_, err := s.Repo.CreateIdempotency(ctx, s.DB, clientID, endpoint, key, registrationID, status, s.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
