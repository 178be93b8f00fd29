// Package store is the SQLite persistence layer behind the reconciliation
// pipeline. It implements the backing-store contract the runner consumes:
// profile upserts keyed on the identity nick, the append-only timing log,
// task bookkeeping, nick frequency counters, and per-run metrics.
//
// The store assumes a single writing process per database file. Running two
// instances against the same file concurrently is a misuse it does not guard
// against; WAL mode merely keeps readers working alongside the one writer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"profilewatch/dbopen"
)

// ErrNotFound marks a lookup for a key that has no record.
var ErrNotFound = errors.New("store: not found")

// ErrQuota marks a write the backing store refused because of contention or
// rate limiting. It is a throttle signal for the pace controller, not a
// failure of the item; callers back off and retry.
var ErrQuota = errors.New("store: quota")

// TaskStatus is the lifecycle state of one queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskComplete   TaskStatus = "complete"
	TaskFailed     TaskStatus = "failed"
)

// TaskItem is one unit of queued reconciliation work.
type TaskItem struct {
	Nick        string
	Status      TaskStatus
	Remark      string
	Source      string
	LastAttempt time.Time // zero if never attempted
}

// TimingEntry is one append-only audit row.
type TimingEntry struct {
	Nick      string
	Timestamp time.Time
	Source    string
	RunNumber int64
}

// NickFrequency is the per-nick visibility counter.
type NickFrequency struct {
	Nick      string
	TimesSeen int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// TriggerKind says what started a run.
type TriggerKind string

const (
	TriggerManual    TriggerKind = "manual"
	TriggerScheduled TriggerKind = "scheduled"
)

// RunMetrics is the persisted snapshot of one run.
type RunMetrics struct {
	RunNumber int64
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Succeeded int
	Failed    int
	New       int
	Updated   int
	Unchanged int
	Trigger   TriggerKind
}

// DB is the profilewatch database handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*DB, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

// Wrap adapts an already-open database (tests use in-memory handles).
func Wrap(db *sql.DB) *DB { return &DB{db: db} }

// Close closes the database.
func (s *DB) Close() error { return s.db.Close() }

// execBusy runs a write with dbopen's BUSY retry policy.
func execBusy(ctx context.Context, s *DB, query string, args ...any) (sql.Result, error) {
	return dbopen.Exec(ctx, s.db, query, args...)
}

// classify maps low-level write errors onto the contract's error taxonomy:
// BUSY becomes the quota signal, everything else stays an I/O error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if dbopen.IsBusy(err) {
		return fmt.Errorf("store: %s: %w: %v", op, ErrQuota, err)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
