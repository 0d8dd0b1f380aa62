// Package domain defines the persistence models for contact submissions,
// course registrations, and chat logs. These types are mapped with GORM and
// form the core data layer of the school backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Registration statuses. New registrations always start as pending; the
// office staff moves them to confirmed or cancelled outside this service.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// ContactSubmission is a single contact-form request. Rows are written once
// on form submit and never mutated by this service.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name / Phone: required, validated at the HTTP layer (len >= 2 / >= 10).
//   - Email: optional, empty string allowed.
//   - Program: optional tag of the program the visitor asked about.
//   - Message: optional free text.
//   - Privacy: consent flag; submissions without consent are never persisted.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit).
type ContactSubmission struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	Phone     string         `json:"phone"      gorm:"type:varchar(32);not null"`
	Email     string         `json:"email"      gorm:"type:varchar(255)"`
	Program   string         `json:"program"    gorm:"type:varchar(64)"`
	Message   string         `json:"message"    gorm:"type:text"`
	Privacy   bool           `json:"privacy"    gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ContactSubmission.
func (ContactSubmission) TableName() string { return "contact_submissions" }

// CourseRegistration is a request to enroll in a program. It is created
// either by the registration form or by the extractor when the assistant
// emits a registration command. All seven string fields besides Email must
// be non-empty before a row is inserted; partial data is discarded upstream.
//
// Fields:
//   - ID: generated numeric identifier (autoincrement), quoted back to the
//     visitor in the confirmation message.
//   - Name, Phone, Age, Level, Goals, Experience, Program: required strings.
//   - Email: optional.
//   - Status: pending|confirmed|cancelled, defaults to pending.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type CourseRegistration struct {
	ID         uint           `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name       string         `json:"name"       gorm:"type:varchar(255);not null"`
	Phone      string         `json:"phone"      gorm:"type:varchar(32);not null"`
	Email      string         `json:"email"      gorm:"type:varchar(255)"`
	Age        string         `json:"age"        gorm:"type:varchar(16);not null"`
	Level      string         `json:"level"      gorm:"type:varchar(32);not null"`
	Goals      string         `json:"goals"      gorm:"type:text;not null"`
	Experience string         `json:"experience" gorm:"type:text;not null"`
	Program    string         `json:"program"    gorm:"type:varchar(64);not null"`
	Status     string         `json:"status"     gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','confirmed','cancelled')"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for CourseRegistration.
func (CourseRegistration) TableName() string { return "course_registrations" }

// ChatLog records one completed exchange with the external model: the user
// message that went out and the assistant reply that came back. Fallback
// answers produced without a model call are not logged here.
type ChatLog struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:varchar(64);not null;index:idx_session_logs"`
	UserText  string         `json:"user_text"  gorm:"type:text;not null"`
	ReplyText string         `json:"reply_text" gorm:"type:text;not null"`
	Step      string         `json:"step"       gorm:"type:varchar(32)"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_session_logs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ChatLog.
func (ChatLog) TableName() string { return "chat_logs" }

// IdempotencyRecord stores the result of a previously processed registration
// request, keyed by (client_id, endpoint, key). Replays return the recorded
// registration without re-executing the insert.
type IdempotencyRecord struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ClientID       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_endpoint_key,priority:1"`
	Endpoint       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_endpoint_key,priority:2"`
	Key            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_endpoint_key,priority:3"`
	RegistrationID uint      `gorm:"type:INTEGER NOT NULL"`
	Status         int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyRecord) TableName() string { return "idempotency" }
