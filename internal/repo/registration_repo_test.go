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

func newRegRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:reg_repo_%s?mode=memory&cache=shared", uuid.NewString())
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

func sampleRegistration() *domain.CourseRegistration {
	return &domain.CourseRegistration{
		Name:       "Анна Петрова",
		Phone:      "79991112233",
		Age:        "25",
		Level:      "B1",
		Goals:      "работа",
		Experience: "школа",
		Program:    "business",
	}
}

func TestCreateRegistration_Error_NoTable(t *testing.T) {
	db := newRegRepoDB(t /* no migrations */)
	reg, err := CreateRegistration(context.Background(), db, sampleRegistration())
	if err == nil || reg != nil {
		t.Fatalf("expected error creating without table, got reg=%v err=%v", reg, err)
	}
}

func TestCreateRegistration_AssignsSequentialIDs(t *testing.T) {
	db := newRegRepoDB(t, &domain.CourseRegistration{})

	first, err := CreateRegistration(context.Background(), db, sampleRegistration())
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := CreateRegistration(context.Background(), db, sampleRegistration())
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID == 0 || second.ID != first.ID+1 {
		t.Fatalf("ids not sequential: %d then %d", first.ID, second.ID)
	}
	if first.Status != domain.StatusPending {
		t.Fatalf("status = %q; want pending default", first.Status)
	}

	// round-trip
	got, err := GetRegistration(context.Background(), db, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Анна Петрова" || got.Program != "business" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetRegistration_NotFound(t *testing.T) {
	db := newRegRepoDB(t, &domain.CourseRegistration{})
	if _, err := GetRegistration(context.Background(), db, 99); err != ErrNotFound {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestListRegistrationsPage_NewestFirst(t *testing.T) {
	db := newRegRepoDB(t, &domain.CourseRegistration{})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		reg := sampleRegistration()
		reg.Goals = fmt.Sprintf("goal-%d", i)
		if _, err := CreateRegistration(context.Background(), db, reg); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		// Deterministic ordering.
		if err := db.Model(&domain.CourseRegistration{}).
			Where("id = ?", reg.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Hour)).Error; err != nil {
			t.Fatalf("backdate %d: %v", i, err)
		}
	}

	items, err := ListRegistrationsPage(context.Background(), db, 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Goals != "goal-2" || items[1].Goals != "goal-1" {
		t.Fatalf("order mismatch: %+v", items)
	}

	count, err := CountRegistrations(context.Background(), db)
	if err != nil || count != 3 {
		t.Fatalf("count = %d err = %v", count, err)
	}
}
