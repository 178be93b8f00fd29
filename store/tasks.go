package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"profilewatch/dbopen"
	"profilewatch/profile"
)

const queueTaskSQL = `
	INSERT INTO tasks (nick, status, remark, source, last_attempt)
	VALUES (?, ?, '', ?, 0)
	ON CONFLICT(nick) DO UPDATE SET
		status = excluded.status,
		remark = '',
		source = excluded.source`

// QueueTask inserts a Pending task for a nick traced to the given source.
// Re-queueing an existing task resets it to Pending; this is the external
// scheduler's resurrection path, the pipeline itself never calls it for a
// Failed item.
func (s *DB) QueueTask(ctx context.Context, nick, source string) error {
	_, err := execBusy(ctx, s, queueTaskSQL, profile.Key(nick), TaskPending, source)
	return classify("queue task", err)
}

// QueueTasks queues a batch of nicks in one transaction, so an operator
// seeding the queue gets either every task or none of them.
func (s *DB) QueueTasks(ctx context.Context, nicks []string, source string) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, nick := range nicks {
			if _, err := tx.ExecContext(ctx, queueTaskSQL,
				profile.Key(nick), TaskPending, source); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("queue tasks", err)
}

// PendingTasks returns every Pending task in queue order.
func (s *DB) PendingTasks(ctx context.Context) ([]TaskItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nick, status, remark, source, last_attempt
		FROM tasks WHERE status = ? ORDER BY rowid`, TaskPending)
	if err != nil {
		return nil, fmt.Errorf("store: pending tasks: %w", err)
	}
	defer rows.Close()

	var items []TaskItem
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: pending tasks: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetTask returns one task row, or ErrNotFound.
func (s *DB) GetTask(ctx context.Context, nick string) (*TaskItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT nick, status, remark, source, last_attempt
		FROM tasks WHERE nick = ?`, profile.Key(nick))
	item, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get task %q: %w", nick, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task %q: %w", nick, err)
	}
	return &item, nil
}

// SetTaskStatus advances a task's lifecycle state and records the outcome
// remark plus the attempt time.
func (s *DB) SetTaskStatus(ctx context.Context, nick string, status TaskStatus, remark string) error {
	_, err := execBusy(ctx, s, `
		UPDATE tasks SET status = ?, remark = ?, last_attempt = ?
		WHERE nick = ?`,
		status, remark, time.Now().UnixMilli(), profile.Key(nick))
	return classify("set task status", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (TaskItem, error) {
	var item TaskItem
	var status string
	var attempt int64
	if err := row.Scan(&item.Nick, &status, &item.Remark, &item.Source, &attempt); err != nil {
		return TaskItem{}, err
	}
	item.Status = TaskStatus(status)
	if attempt > 0 {
		item.LastAttempt = time.UnixMilli(attempt)
	}
	return item, nil
}
