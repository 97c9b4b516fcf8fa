// Package history persists benchmark run summaries so cached and control
// runs can be compared later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/ragcache/pkg/models"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// History records and queries benchmark runs.
type History interface {
	// Record stores a run summary and returns its ID.
	Record(ctx context.Context, run models.RunSummary) (string, error)
	// List returns the most recent runs first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]models.RunSummary, error)
	// Get returns one run by ID.
	Get(ctx context.Context, id string) (models.RunSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteHistory implements History with a SQLite database.
type SQLiteHistory struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS bench_runs (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	cache_enabled INTEGER NOT NULL,
	target_rate REAL NOT NULL,
	duration_ns INTEGER NOT NULL,
	warmup_ns INTEGER NOT NULL,
	repeat_ratio REAL NOT NULL,
	samples INTEGER NOT NULL,
	p50_ns INTEGER NOT NULL,
	p95_ns INTEGER NOT NULL,
	p99_ns INTEGER NOT NULL,
	hit_rate REAL NOT NULL,
	achieved_rate REAL NOT NULL,
	target_met INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bench_runs_created ON bench_runs(created_at);
`

// New opens the history database and runs auto-migration.
func New(dbPath string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// Summarize digests a report for storage.
func Summarize(rep models.Report, label string, cacheEnabled bool) models.RunSummary {
	return models.RunSummary{
		Label:        label,
		CacheEnabled: cacheEnabled,
		TargetRate:   rep.Config.TargetRate,
		Duration:     rep.Config.Duration,
		Warmup:       rep.Config.Warmup,
		RepeatRatio:  rep.Config.RepeatRatio,
		Samples:      rep.Samples,
		P50:          rep.Latencies.P50,
		P95:          rep.Latencies.P95,
		P99:          rep.Latencies.P99,
		HitRate:      rep.HitRate,
		AchievedRate: rep.AchievedRate,
		TargetMet:    rep.TargetMet,
		CreatedAt:    rep.StartedAt,
	}
}

// Record stores a run. An empty ID is assigned a new UUID and a zero
// CreatedAt is set to now.
func (h *SQLiteHistory) Record(ctx context.Context, run models.RunSummary) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO bench_runs (id, label, cache_enabled, target_rate, duration_ns, warmup_ns, repeat_ratio,
			samples, p50_ns, p95_ns, p99_ns, hit_rate, achieved_rate, target_met, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Label, run.CacheEnabled, run.TargetRate, int64(run.Duration), int64(run.Warmup), run.RepeatRatio,
		run.Samples, int64(run.P50), int64(run.P95), int64(run.P99), run.HitRate, run.AchievedRate, run.TargetMet,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

const selectColumns = `SELECT id, label, cache_enabled, target_rate, duration_ns, warmup_ns, repeat_ratio,
	samples, p50_ns, p95_ns, p99_ns, hit_rate, achieved_rate, target_met, created_at FROM bench_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (models.RunSummary, error) {
	var r models.RunSummary
	var duration, warmup, p50, p95, p99 int64
	err := s.Scan(&r.ID, &r.Label, &r.CacheEnabled, &r.TargetRate, &duration, &warmup, &r.RepeatRatio,
		&r.Samples, &p50, &p95, &p99, &r.HitRate, &r.AchievedRate, &r.TargetMet, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.Duration = time.Duration(duration)
	r.Warmup = time.Duration(warmup)
	r.P50 = time.Duration(p50)
	r.P95 = time.Duration(p95)
	r.P99 = time.Duration(p99)
	return r, nil
}

// List returns the most recent runs first.
func (h *SQLiteHistory) List(ctx context.Context, limit int) ([]models.RunSummary, error) {
	query := selectColumns + ` ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns one run by ID.
func (h *SQLiteHistory) Get(ctx context.Context, id string) (models.RunSummary, error) {
	r, err := scanRun(h.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return r, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// Close releases the database connection.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}
