package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Snapshotter is the subset of the memory manager needed by the
// snapshot job. Defined here to avoid a dependency on the memory
// package.
type Snapshotter interface {
	Snapshot(dir string) error
}

// Sweeper is the subset of the memory manager needed by the sweep job.
type Sweeper interface {
	ClearOldSessions(maxAge time.Duration) int
}

// Archiver copies finished conversation state into durable storage.
type Archiver interface {
	ArchiveSessions(ctx context.Context) (int, error)
}

// SnapshotJob periodically writes all in-memory sessions to JSON files.
type SnapshotJob struct {
	Memory       Snapshotter
	Dir          string
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SnapshotJob)(nil)

// Name implements Job.
func (j *SnapshotJob) Name() string { return "session_snapshot" }

// Schedule implements Job.
func (j *SnapshotJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run writes every session to disk.
func (j *SnapshotJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: snapshot cancelled: %w", ctx.Err())
	}
	if err := j.Memory.Snapshot(j.Dir); err != nil {
		return fmt.Errorf("cron: snapshot failed: %w", err)
	}
	j.Logger.Debug("cron: sessions snapshotted", "dir", j.Dir)
	return nil
}

// SweepJob removes sessions inactive for longer than MaxAge. Swept
// sessions are deleted outright; the snapshot job is their only
// durable record.
type SweepJob struct {
	Memory       Sweeper
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*SweepJob)(nil)

// Name implements Job.
func (j *SweepJob) Name() string { return "session_sweep" }

// Schedule implements Job.
func (j *SweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run sweeps inactive sessions.
func (j *SweepJob) Run(_ context.Context) error {
	removed := j.Memory.ClearOldSessions(j.MaxAge)
	if removed > 0 {
		j.Logger.Info("cron: swept inactive sessions", "count", removed)
	}
	return nil
}

// ArchiveJob copies session state into the durable archive store.
type ArchiveJob struct {
	Store        Archiver
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/15 * * * *"
}

// Compile-time interface check.
var _ Job = (*ArchiveJob)(nil)

// Name implements Job.
func (j *ArchiveJob) Name() string { return "session_archive" }

// Schedule implements Job.
func (j *ArchiveJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/15 * * * *"
}

// Run archives sessions.
func (j *ArchiveJob) Run(ctx context.Context) error {
	archived, err := j.Store.ArchiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("cron: archive failed: %w", err)
	}
	if archived > 0 {
		j.Logger.Info("cron: sessions archived", "count", archived)
	}
	return nil
}
