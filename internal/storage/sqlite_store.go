package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ironscout-hq/ironscout/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS machines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	site_type TEXT NOT NULL,
	search_label TEXT NOT NULL,
	unique_key TEXT NOT NULL,
	title TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '',
	year TEXT NOT NULL DEFAULT '',
	hours TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	first_seen TIMESTAMP NOT NULL,
	UNIQUE(site_type, search_label, unique_key)
);
CREATE INDEX IF NOT EXISTS idx_machines_identity
	ON machines(site_type, search_label, unique_key);
CREATE TABLE IF NOT EXISTS markers (
	search_label TEXT PRIMARY KEY,
	marker_key TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// sqliteStore implements Store on a local SQLite file. Single-writer access
// is assumed at the process level; busy_timeout covers transient contention.
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// openSQLite opens the database file and applies the production pragmas.
func openSQLite(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 10000;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	store := &sqliteStore{db: db, now: time.Now}
	if err := store.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Init creates the schema. Safe to call on every start.
func (s *sqliteStore) Init() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not open")
	}
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Exists reports whether a listing with this identity was previously committed.
func (s *sqliteStore) Exists(siteType, searchLabel, uniqueKey string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM machines WHERE site_type = ? AND search_label = ? AND unique_key = ?`,
		siteType, searchLabel, uniqueKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query machine existence: %w", err)
	}
	return count > 0, nil
}

// Insert persists a new listing. The first-seen timestamp is assigned here,
// returned on the record, and an existing row is left untouched.
func (s *sqliteStore) Insert(m domain.Machine) (domain.Machine, InsertResult, error) {
	firstSeen := s.now().UTC()
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO machines
			(site_type, search_label, unique_key, title, category, price, year, hours, location, link, image_url, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SiteType, m.SearchLabel, m.UniqueKey,
		m.Title, m.Category, m.Price, m.Year, m.Hours, m.Location, m.Link, m.ImageURL,
		firstSeen,
	)
	if err != nil {
		return m, DuplicateRejected, fmt.Errorf("insert machine %s: %w", m.UniqueKey, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return m, DuplicateRejected, fmt.Errorf("insert machine %s: %w", m.UniqueKey, err)
	}
	if affected == 0 {
		return m, DuplicateRejected, nil
	}
	m.FirstSeen = firstSeen
	return m, Inserted, nil
}

// Marker returns the stored marker key for a search label, or "" when unset.
func (s *sqliteStore) Marker(searchLabel string) (string, error) {
	var marker string
	err := s.db.QueryRow(
		`SELECT marker_key FROM markers WHERE search_label = ?`, searchLabel,
	).Scan(&marker)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query marker: %w", err)
	}
	return marker, nil
}

// SaveMarker upserts the marker key for a search label.
func (s *sqliteStore) SaveMarker(searchLabel, markerKey string) error {
	_, err := s.db.Exec(
		`INSERT INTO markers (search_label, marker_key, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(search_label) DO UPDATE SET marker_key = excluded.marker_key, updated_at = excluded.updated_at`,
		searchLabel, markerKey, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save marker for %q: %w", searchLabel, err)
	}
	return nil
}
