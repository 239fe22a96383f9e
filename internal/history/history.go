// Package history keeps a small local record of profile directories the
// user has worked in and the outcome of past push runs, in a sqlite file
// under the user's home directory.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/sqlite"
)

const (
	historyDir  = ".remote-sync"
	historyFile = "history.db"
)

// DefaultPath is where the shared history database lives.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, historyDir, historyFile)
}

// ProfileEntry is one remembered profile directory.
type ProfileEntry struct {
	Path       string
	LastAccess time.Time
}

// Run records the outcome of one push.
type Run struct {
	Project   string
	Tool      string
	DryRun    bool
	Status    string // "completed", "failed", "cancelled"
	StartedAt time.Time
	Duration  time.Duration
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			path TEXT PRIMARY KEY,
			last_access INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project TEXT NOT NULL,
			tool TEXT NOT NULL,
			dry_run INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordProfile marks a profile directory as recently used.
func (s *Store) RecordProfile(path string) error {
	_, err := s.db.Exec(
		`INSERT INTO profiles (path, last_access) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET last_access = excluded.last_access`,
		path, time.Now().Unix(),
	)
	return err
}

// RecentProfiles lists remembered profile directories, most recent first.
func (s *Store) RecentProfiles(limit int) ([]ProfileEntry, error) {
	rows, err := s.db.Query(
		`SELECT path, last_access FROM profiles ORDER BY last_access DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ProfileEntry
	for rows.Next() {
		var e ProfileEntry
		var ts int64
		if err := rows.Scan(&e.Path, &ts); err != nil {
			continue
		}
		e.LastAccess = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordRun appends one push outcome.
func (s *Store) RecordRun(r Run) error {
	dry := 0
	if r.DryRun {
		dry = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (project, tool, dry_run, status, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Project, r.Tool, dry, r.Status, r.StartedAt.Unix(), r.Duration.Milliseconds(),
	)
	return err
}

// RecentRuns lists past push outcomes, most recent first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT project, tool, dry_run, status, started_at, duration_ms
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dry int
		var started, durMS int64
		if err := rows.Scan(&r.Project, &r.Tool, &dry, &r.Status, &started, &durMS); err != nil {
			continue
		}
		r.DryRun = dry != 0
		r.StartedAt = time.Unix(started, 0)
		r.Duration = time.Duration(durMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
