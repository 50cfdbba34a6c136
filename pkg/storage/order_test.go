package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(allRowModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return &DB{gdb: gdb}
}

func TestLoadOrder_UnknownIDReturnsNil(t *testing.T) {
	db := newTestDB(t)
	got, err := db.LoadOrder(uuid.New())
	if err != nil {
		t.Fatalf("LoadOrder returned error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for an id never persisted, got %+v", got)
	}
}

// TestLoadOrder_FindsFilledOrderAfterCommit is the storage half of the
// redelivery fix: once a place fully fills, the order drops out of the
// resident book, so intake's idempotence check must find it in storage
// instead of relying on book residency.
func TestLoadOrder_FindsFilledOrderAfterCommit(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	row := orderRow{
		ID: uuid.New(), UserID: uuid.New(), CreatedAt: now,
		Side: int8(model.SideBuy), Base: "BTC", Quote: "USDT",
		Volume: decimal.RequireFromString("1"), RemainingVolume: decimal.Zero,
		Price: decimal.RequireFromString("10000"), FilledAt: &now,
	}
	if err := db.gdb.Create(&row).Error; err != nil {
		t.Fatalf("seed order failed: %v", err)
	}

	got, err := db.LoadOrder(row.ID)
	if err != nil {
		t.Fatalf("LoadOrder returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected the filled order to be found in storage")
	}
	if got.FilledAt == nil {
		t.Error("persisted order should carry FilledAt")
	}
	if !got.RemainingVolume.IsZero() {
		t.Errorf("persisted order remaining_volume = %s, want 0", got.RemainingVolume)
	}
}
