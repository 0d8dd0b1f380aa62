// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatLog model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
)

// CreateChatLog inserts a log row for one completed model exchange.
func CreateChatLog(ctx context.Context, db *gorm.DB, sessionID, userText, replyText, step string) (*domain.ChatLog, error) {
	l := &domain.ChatLog{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserText:  userText,
		ReplyText: replyText,
		Step:      step,
		CreatedAt: time.Now().UTC(),
	}
	return l, db.WithContext(ctx).Create(l).Error
}

// CountChatLogs uses a raw COUNT so a missing table surfaces as an error.
func CountChatLogs(db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM chat_logs WHERE session_id = ?", sessionID).Scan(&total).Error
	return total, err
}

// ListChatLogs returns logs for one session ordered deterministically
// (CreatedAt ASC, ID ASC).
func ListChatLogs(db *gorm.DB, sessionID string, limit int) ([]domain.ChatLog, error) {
	var out []domain.ChatLog
	q := db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
