package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axiomex/matchengine/params"
)

// DB wraps the Postgres connection every worker shares (one *DB, many
// per-pair goroutines; GORM's *sql.DB pool is safe for concurrent use).
type DB struct {
	gdb *gorm.DB
}

// Open connects to Postgres with the given settings and migrates the
// schema. Mirrors the teacher/pack's gorm.Open + AutoMigrate shape (see
// web3guy0-polybot's internal/database/database.go) generalized from
// SQLite-or-Postgres to Postgres-only, since this domain's check
// constraints and row locking need a real RDBMS.
func Open(cfg params.Postgres) (*DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := gdb.AutoMigrate(allRowModels()...); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return &DB{gdb: gdb}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ErrPairLockHeld is returned by AcquirePairLock when another worker
// process already owns the pair.
var ErrPairLockHeld = errors.New("pair lock already held by another worker")

// PairLock is a session-scoped Postgres advisory lock: held for as long as
// the dedicated connection underneath it stays open, released on Release
// or when the connection is dropped. It is the NOWAIT/SKIP LOCKED-style
// ownership primitive §5 calls for, implemented with pg_try_advisory_lock
// since that maps onto "one writer per pair" more directly than a
// row-level SELECT ... FOR UPDATE SKIP LOCKED would for a long-lived
// worker process.
type PairLock struct {
	conn *sql.Conn
	key  int64
}

// AcquirePairLock tries to take exclusive ownership of one pair's worker
// slot. Non-blocking: returns ErrPairLockHeld immediately if another
// process already holds it, instead of queueing.
func (d *DB) AcquirePairLock(ctx context.Context, slug string) (*PairLock, error) {
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	key := pairLockKey(slug)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrPairLockHeld
	}
	return &PairLock{conn: conn, key: key}, nil
}

// Release gives up pair ownership, the cooperative-shutdown step of §5.
func (l *PairLock) Release(ctx context.Context) error {
	defer l.conn.Close()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	return err
}

func pairLockKey(slug string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("order_book." + slug))
	return int64(h.Sum64())
}
