// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CourseRegistration model.
//
// Functions:
//
//   - CreateRegistration(ctx, db, reg) -> *domain.CourseRegistration, error
//     Inserts a registration row; the numeric ID is generated by the database.
//
//   - GetRegistration(ctx, db, id) -> *domain.CourseRegistration, error
//     Fetches a registration by ID, or ErrNotFound if missing.
//
//   - CountRegistrations(ctx, db) -> (int64, error)
//     Returns the total number of registrations for pagination.
//
//   - ListRegistrationsPage(ctx, db, offset, limit) -> []domain.CourseRegistration, error
//     Returns a paginated slice, most recent first.
//
// This repository is wrapped by services.RegistrationService which enforces
// the required-field rules before anything reaches the database.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
)

// CreateRegistration inserts a registration row with status defaulted to
// pending when unset. CreatedAt is set to UTC. The generated numeric ID is
// populated on the passed struct.
func CreateRegistration(ctx context.Context, db *gorm.DB, reg *domain.CourseRegistration) (*domain.CourseRegistration, error) {
	if reg.Status == "" {
		reg.Status = domain.StatusPending
	}
	reg.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(reg).Error; err != nil {
		return nil, err
	}
	return reg, nil
}

// GetRegistration fetches a single registration by its numeric ID. If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetRegistration(ctx context.Context, db *gorm.DB, id uint) (*domain.CourseRegistration, error) {
	var reg domain.CourseRegistration
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CountRegistrations returns the total number of registrations.
// On DB error, it returns the error.
func CountRegistrations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CourseRegistration{}).
		Count(&total).Error
	return total, err
}

// ListRegistrationsPage returns a paginated slice of registrations, ordered
// by creation time descending. Use CountRegistrations to obtain the total for
// pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListRegistrationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.CourseRegistration, error) {
	var out []domain.CourseRegistration
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
