package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/frejasky/coda/internal/llm"
	"github.com/frejasky/coda/internal/memory"
)

// SessionSource yields the live conversation sessions to archive.
type SessionSource interface {
	Sessions() []memory.Session
}

// ArchivedSession is the durable view of a session header.
type ArchivedSession struct {
	ID           string                `json:"id"`
	UserID       string                `json:"user_id"`
	Started      time.Time             `json:"started"`
	LastUpdate   time.Time             `json:"last_update"`
	MessageCount int                   `json:"message_count"`
	Context      memory.SessionContext `json:"context"`
	ArchivedAt   time.Time             `json:"archived_at"`
}

// SearchHit is one full-text match over archived turn content.
type SearchHit struct {
	SessionID string    `json:"session_id"`
	TurnID    string    `json:"turn_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Time      time.Time `json:"time"`
	Rank      float64   `json:"rank"`
}

// ArchiveStore persists conversation sessions to SQLite.
type ArchiveStore struct {
	db     *sql.DB
	source SessionSource
	logger *slog.Logger
}

// NewArchiveStore wraps an open, migrated database handle.
func NewArchiveStore(db *sql.DB, source SessionSource, logger *slog.Logger) *ArchiveStore {
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	return &ArchiveStore{db: db, source: source, logger: logger}
}

// SetSource replaces the live session source the archive reads from.
func (s *ArchiveStore) SetSource(source SessionSource) {
	s.source = source
}

// ArchiveSessions copies every live session into the database.
// Sessions already archived are refreshed in place, so running the job
// repeatedly is safe. Returns the number of sessions written.
func (s *ArchiveStore) ArchiveSessions(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, nil
	}
	sessions := s.source.Sessions()
	archived := 0
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := s.archiveSession(ctx, sess); err != nil {
			return archived, fmt.Errorf("sqlite: archive session %s: %w", sess.ID, err)
		}
		archived++
	}
	return archived, nil
}

func (s *ArchiveStore) archiveSession(ctx context.Context, sess memory.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, started, last_update, message_count, context)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_update   = excluded.last_update,
			message_count = excluded.message_count,
			context       = excluded.context`,
		sess.ID, sess.UserID,
		sess.Started.UTC().Format(time.RFC3339Nano),
		sess.LastUpdate.UTC().Format(time.RFC3339Nano),
		sess.MessageCount, string(contextJSON))
	if err != nil {
		return err
	}

	// Compression rewrites the session's turn prefix, so replace the
	// whole turn set rather than diffing.
	if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sess.ID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (session_id, seq, turn_id, role, content, tokens, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, turn := range sess.Turns {
		_, err := stmt.ExecContext(ctx,
			sess.ID, i, turn.ID, string(turn.Role), turn.Content,
			turn.Tokens, turn.Importance,
			turn.Time.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Session loads an archived session header by id.
func (s *ArchiveStore) Session(ctx context.Context, id string) (ArchivedSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, started, last_update, message_count, context, archived_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// Sessions lists archived session headers, newest update first.
func (s *ArchiveStore) Sessions(ctx context.Context, limit int) ([]ArchivedSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, started, last_update, message_count, context, archived_at
		FROM sessions ORDER BY last_update DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Turns loads the archived turns of a session in order.
func (s *ArchiveStore) Turns(ctx context.Context, sessionID string) ([]memory.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, role, content, tokens, importance, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load turns: %w", err)
	}
	defer rows.Close()

	var out []memory.ChatTurn
	for rows.Next() {
		var t memory.ChatTurn
		var role, created string
		if err := rows.Scan(&t.ID, &role, &t.Content, &t.Tokens, &t.Importance, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan turn: %w", err)
		}
		t.Role = llm.Role(role)
		t.Time, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Search runs a full-text query over archived turn content.
func (s *ArchiveStore) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.session_id, t.turn_id, t.role, t.content, t.created_at, f.rank
		FROM turns_fts f
		JOIN turns t ON t.rowid = f.rowid
		WHERE turns_fts MATCH ?
		ORDER BY f.rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		var created string
		if err := rows.Scan(&h.SessionID, &h.TurnID, &h.Role, &h.Content, &created, &h.Rank); err != nil {
			return nil, fmt.Errorf("sqlite: scan hit: %w", err)
		}
		h.Time, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, h)
	}
	return out, rows.Err()
}

// SessionCount returns the number of archived sessions.
func (s *ArchiveStore) SessionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (ArchivedSession, error) {
	var sess ArchivedSession
	var started, updated, archived, contextJSON string
	err := row.Scan(&sess.ID, &sess.UserID, &started, &updated, &sess.MessageCount, &contextJSON, &archived)
	if err != nil {
		return ArchivedSession{}, fmt.Errorf("sqlite: scan session: %w", err)
	}
	sess.Started, _ = time.Parse(time.RFC3339Nano, started)
	sess.LastUpdate, _ = time.Parse(time.RFC3339Nano, updated)
	sess.ArchivedAt, _ = time.Parse(time.RFC3339Nano, archived)
	if err := json.Unmarshal([]byte(contextJSON), &sess.Context); err != nil {
		return ArchivedSession{}, fmt.Errorf("sqlite: decode context: %w", err)
	}
	return sess, nil
}
