package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
)

func newChatLogDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:chatlog_repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCountChatLogs_Error_NoTable(t *testing.T) {
	db := newChatLogDB(t /* no migrations */)
	if _, err := CountChatLogs(db, "s1"); err == nil {
		t.Fatalf("expected error counting without table")
	}
}

func TestCreateAndListChatLogs_OrderAndFilter(t *testing.T) {
	db := newChatLogDB(t, &domain.ChatLog{})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l, err := CreateChatLog(context.Background(), db, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), "step")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if err := db.Model(&domain.ChatLog{}).
			Where("id = ?", l.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error; err != nil {
			t.Fatalf("backdate %d: %v", i, err)
		}
	}
	if _, err := CreateChatLog(context.Background(), db, "s2", "other", "other", ""); err != nil {
		t.Fatalf("create other session: %v", err)
	}

	logs, err := ListChatLogs(db, "s1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("len = %d; want 3 (session filter)", len(logs))
	}
	for i, l := range logs {
		if l.UserText != fmt.Sprintf("q%d", i) {
			t.Fatalf("order mismatch at %d: %+v", i, l)
		}
	}

	limited, err := ListChatLogs(db, "s1", 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("limited list: len=%d err=%v", len(limited), err)
	}

	n, err := CountChatLogs(db, "s1")
	if err != nil || n != 3 {
		t.Fatalf("count = %d err = %v", n, err)
	}
}
