package prismblog

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no snapshot is stored under a key.
var ErrNoSnapshot = errors.New("prismblog: snapshot not found")

// Snapshot is the last generated data of one page, kept so a restarted
// server can serve it before the first regeneration succeeds.
type Snapshot struct {
	Key         string
	Body        []byte // JSON
	GeneratedAt time.Time
}

// Store wraps a SQLite database holding page snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page requests read snapshots while a regeneration writes one.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    key TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    generated_at TEXT NOT NULL
);
`)
	return err
}

// SaveSnapshot upserts the snapshot for snap.Key.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO snapshots (key, body, generated_at) VALUES (?, ?, ?)`,
		snap.Key, string(snap.Body), snap.GeneratedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// GetSnapshot returns the snapshot stored under key.
func (s *Store) GetSnapshot(key string) (Snapshot, error) {
	var body, generated string
	err := s.db.QueryRow(`SELECT body, generated_at FROM snapshots WHERE key = ?`, key).Scan(&body, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, generated)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Key: key, Body: []byte(body), GeneratedAt: at}, nil
}

// ListSnapshots returns every stored snapshot ordered by key.
func (s *Store) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`SELECT key, body, generated_at FROM snapshots ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var key, body, generated string
		if err := rows.Scan(&key, &body, &generated); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, generated)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{Key: key, Body: []byte(body), GeneratedAt: at})
	}
	return snaps, rows.Err()
}

// DeleteSnapshot removes the snapshot stored under key.
func (s *Store) DeleteSnapshot(key string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key)
	return err
}
