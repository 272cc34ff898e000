package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportSession serializes the session to a JSON file at path.
func (m *Manager) ExportSession(sessionID, path string) error {
	s, ok := m.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return writeSessionFile(path, s)
}

// ImportSession reads a session JSON file and installs it, replacing
// any session with the same id. The embedding index is rebuilt from
// the imported turns.
func (m *Manager) ImportSession(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("decode session file: %w", err)
	}
	if s.ID == "" {
		return "", fmt.Errorf("decode session file: missing session id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = &s
	delete(m.vectors, s.ID)
	for _, t := range s.Turns {
		m.indexTurn(s.ID, t)
	}

	m.logger.Info("session imported", "session", s.ID, "turns", len(s.Turns))
	return s.ID, nil
}

// Snapshot writes every session to its own JSON file under dir,
// creating the directory if needed. Each file is written via a
// temporary file and rename so a crash mid-write cannot corrupt an
// existing snapshot. Sessions whose id is not a plain file name are
// skipped; ids arrive from clients and must not select a path outside
// dir. One failing session does not stop the rest.
func (m *Manager) Snapshot(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	var errs []error
	for _, s := range m.Sessions() {
		if !safeSnapshotID(s.ID) {
			errs = append(errs, fmt.Errorf("session %q: unsafe id, not snapshotted", s.ID))
			continue
		}
		path := filepath.Join(dir, s.ID+".json")
		if err := writeSessionFile(path, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// safeSnapshotID reports whether id can be used as a file name
// without escaping the snapshot directory.
func safeSnapshotID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) {
		return false
	}
	return filepath.Base(id) == id
}

// Restore imports every *.json session file under dir. Missing
// directories are not an error; a fresh deployment has no snapshots.
func (m *Manager) Restore(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read snapshot dir: %w", err)
	}

	restored := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if _, err := m.ImportSession(filepath.Join(dir, entry.Name())); err != nil {
			m.logger.Warn("skipping unreadable snapshot", "file", entry.Name(), "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

func writeSessionFile(path string, s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", s.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize session %s: %w", s.ID, err)
	}
	return nil
}
