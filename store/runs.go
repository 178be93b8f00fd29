package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"profilewatch/profile"
)

// AppendTiming appends one audit row to the timing log. The log is strictly
// append-only; nothing in this package updates or deletes its rows.
func (s *DB) AppendTiming(ctx context.Context, e TimingEntry) error {
	_, err := execBusy(ctx, s, `
		INSERT INTO timing_log (nick, scraped_at, source, run_number)
		VALUES (?, ?, ?, ?)`,
		profile.Key(e.Nick), e.Timestamp.In(profile.PKT).Format(profile.DateTimeFormat),
		e.Source, e.RunNumber)
	return classify("append timing", err)
}

// TimingEntries returns the audit rows for one run in insertion order.
func (s *DB) TimingEntries(ctx context.Context, runNumber int64) ([]TimingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nick, scraped_at, source, run_number
		FROM timing_log WHERE run_number = ? ORDER BY rowid`, runNumber)
	if err != nil {
		return nil, fmt.Errorf("store: timing entries: %w", err)
	}
	defer rows.Close()

	var entries []TimingEntry
	for rows.Next() {
		var e TimingEntry
		var ts string
		if err := rows.Scan(&e.Nick, &ts, &e.Source, &e.RunNumber); err != nil {
			return nil, fmt.Errorf("store: timing entries: %w", err)
		}
		e.Timestamp, _ = time.ParseInLocation(profile.DateTimeFormat, ts, profile.PKT)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NextRunNumber derives the next run number from the last persisted one, so
// numbering stays strictly increasing across process restarts.
func (s *DB) NextRunNumber(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(run_number) FROM run_metrics`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("store: next run number: %w", err)
	}
	return last.Int64 + 1, nil
}

// WriteRunMetrics persists the snapshot of one finished run.
func (s *DB) WriteRunMetrics(ctx context.Context, m RunMetrics) error {
	_, err := execBusy(ctx, s, `
		INSERT INTO run_metrics (run_number, started_at, duration_ms,
			total, succeeded, failed, new_count, updated_count, unchanged_count,
			trigger_kind)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.RunNumber, m.StartedAt.UnixMilli(), m.Duration.Milliseconds(),
		m.Total, m.Succeeded, m.Failed, m.New, m.Updated, m.Unchanged,
		string(m.Trigger))
	return classify("write run metrics", err)
}

// LastRunMetrics returns the most recent run snapshot, or ErrNotFound when
// no run has completed yet.
func (s *DB) LastRunMetrics(ctx context.Context) (*RunMetrics, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_number, started_at, duration_ms, total, succeeded, failed,
			new_count, updated_count, unchanged_count, trigger_kind
		FROM run_metrics ORDER BY run_number DESC LIMIT 1`)

	var m RunMetrics
	var started, durationMs int64
	var trigger string
	err := row.Scan(&m.RunNumber, &started, &durationMs, &m.Total, &m.Succeeded,
		&m.Failed, &m.New, &m.Updated, &m.Unchanged, &trigger)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: last run metrics: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: last run metrics: %w", err)
	}
	m.StartedAt = time.UnixMilli(started)
	m.Duration = time.Duration(durationMs) * time.Millisecond
	m.Trigger = TriggerKind(trigger)
	return &m, nil
}
