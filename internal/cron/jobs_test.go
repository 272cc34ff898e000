package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type testSnapshotter struct {
	calls atomic.Int32
	dir   string
	err   error
}

func (s *testSnapshotter) Snapshot(dir string) error {
	s.calls.Add(1)
	s.dir = dir
	return s.err
}

type testSweeper struct {
	gotMaxAge time.Duration
	removed   int
}

func (s *testSweeper) ClearOldSessions(maxAge time.Duration) int {
	s.gotMaxAge = maxAge
	return s.removed
}

type testArchiver struct {
	archived int
	err      error
}

func (a *testArchiver) ArchiveSessions(context.Context) (int, error) {
	return a.archived, a.err
}

func TestSnapshotJob(t *testing.T) {
	t.Parallel()

	store := &testSnapshotter{}
	j := &SnapshotJob{Memory: store, Dir: "/tmp/sessions", Logger: slog.Default()}

	if j.Name() != "session_snapshot" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.calls.Load() != 1 || store.dir != "/tmp/sessions" {
		t.Errorf("snapshot calls = %d, dir = %q", store.calls.Load(), store.dir)
	}
}

func TestSnapshotJob_Error(t *testing.T) {
	t.Parallel()

	j := &SnapshotJob{
		Memory: &testSnapshotter{err: errors.New("disk full")},
		Dir:    "/tmp/x",
		Logger: slog.Default(),
	}
	if err := j.Run(context.Background()); err == nil {
		t.Fatal("expected snapshot error to propagate")
	}
}

func TestSnapshotJob_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &testSnapshotter{}
	j := &SnapshotJob{Memory: store, Dir: "/tmp/x", Logger: slog.Default()}
	if err := j.Run(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
	if store.calls.Load() != 0 {
		t.Error("cancelled job must not snapshot")
	}
}

func TestSweepJob(t *testing.T) {
	t.Parallel()

	store := &testSweeper{removed: 3}
	j := &SweepJob{Memory: store, MaxAge: 24 * time.Hour, Logger: slog.Default()}

	if j.Schedule() != "0 * * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.gotMaxAge != 24*time.Hour {
		t.Errorf("maxAge = %v, want 24h", store.gotMaxAge)
	}
}

func TestArchiveJob(t *testing.T) {
	t.Parallel()

	j := &ArchiveJob{Store: &testArchiver{archived: 2}, Logger: slog.Default()}
	if j.Schedule() != "*/15 * * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	failing := &ArchiveJob{Store: &testArchiver{err: errors.New("db locked")}, Logger: slog.Default()}
	if err := failing.Run(context.Background()); err == nil {
		t.Fatal("expected archive error to propagate")
	}
}

func TestJobs_CustomSchedule(t *testing.T) {
	t.Parallel()

	j := &SnapshotJob{ScheduleExpr: "*/1 * * * *"}
	if j.Schedule() != "*/1 * * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
}
