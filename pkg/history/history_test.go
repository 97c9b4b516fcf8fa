package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	h, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndGet(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := h.Record(ctx, models.RunSummary{
		Label:        "cached",
		CacheEnabled: true,
		TargetRate:   5,
		Duration:     2 * time.Minute,
		Warmup:       10 * time.Second,
		RepeatRatio:  0.7,
		Samples:      550,
		P50:          3 * time.Millisecond,
		P95:          780 * time.Millisecond,
		P99:          799 * time.Millisecond,
		HitRate:      0.68,
		AchievedRate: 5,
		TargetMet:    true,
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected an assigned ID")
	}

	got, err := h.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "cached" || !got.CacheEnabled {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.P95 != 780*time.Millisecond {
		t.Errorf("expected p95 780ms, got %v", got.P95)
	}
	if got.Duration != 2*time.Minute {
		t.Errorf("expected duration 2m, got %v", got.Duration)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("expected created_at %v, got %v", now, got.CreatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	h := newTestHistory(t)
	_, err := h.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, label := range []string{"first", "second", "third"} {
		if _, err := h.Record(ctx, models.RunSummary{Label: label, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := h.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Label != "third" || runs[2].Label != "first" {
		t.Errorf("unexpected order: %s, %s, %s", runs[0].Label, runs[1].Label, runs[2].Label)
	}

	limited, err := h.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}
}

func TestRecordKeepsExplicitID(t *testing.T) {
	h := newTestHistory(t)
	id, err := h.Record(context.Background(), models.RunSummary{ID: "run-1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "run-1" {
		t.Errorf("expected run-1, got %s", id)
	}
	if _, err := h.Record(context.Background(), models.RunSummary{ID: "run-1"}); err == nil {
		t.Error("expected duplicate ID to fail")
	}
}

func TestSummarize(t *testing.T) {
	rep := models.Report{
		Config:    models.RunConfig{TargetRate: 5, Duration: time.Minute, RepeatRatio: 0.7},
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Samples:   10,
		Latencies: models.Latencies{P95: 800 * time.Millisecond},
		HitRate:   0.7,
		TargetMet: true,
	}
	s := Summarize(rep, "control", false)
	if s.Label != "control" || s.CacheEnabled {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.P95 != 800*time.Millisecond || s.Samples != 10 || !s.CreatedAt.Equal(rep.StartedAt) {
		t.Errorf("report fields not carried: %+v", s)
	}
}
