package cache

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"watchdeck/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const snapshotKeyPrefix = "watchlist_cache:"

// ErrNotFound is returned when no fresh snapshot exists for a list. Stale
// snapshots are discarded on read and report the same miss.
var ErrNotFound = errors.New("no cached snapshot")

// Store persists the last successful per-list payloads so the client can run
// offline. Entries older than the freshness window are discarded, never shown.
type Store struct {
	conn *sql.DB
	ttl  time.Duration
}

// Open creates (or reuses) the cache database at path and runs migrations.
func Open(path string, ttl time.Duration) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	// Single-user client; a small pool is plenty.
	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run cache migrations: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Store{conn: conn, ttl: ttl}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("verify migration version: %w", err)
	}
	log.Printf("[cache] database ready at version %d", version)
	return nil
}

// Put stores the payload for a list, replacing any previous snapshot.
func (s *Store) Put(listID string, payload *models.WatchlistPayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.conn.Exec(
		`INSERT INTO snapshots (cache_key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		snapshotKeyPrefix+listID, encoded, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store snapshot for %s: %w", listID, err)
	}
	return nil
}

// Get returns the cached payload for a list plus its fetch time. Snapshots
// past the freshness window are deleted and reported as ErrNotFound.
func (s *Store) Get(listID string) (*models.WatchlistPayload, time.Time, error) {
	key := snapshotKeyPrefix + listID

	var encoded []byte
	var updatedAt time.Time
	err := s.conn.QueryRow(
		`SELECT payload, updated_at FROM snapshots WHERE cache_key = ?`, key,
	).Scan(&encoded, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read snapshot for %s: %w", listID, err)
	}

	if time.Since(updatedAt) > s.ttl {
		log.Printf("[cache] snapshot for %s is %s old, discarding", listID, time.Since(updatedAt).Round(time.Minute))
		if _, err := s.conn.Exec(`DELETE FROM snapshots WHERE cache_key = ?`, key); err != nil {
			log.Printf("[cache] failed to discard stale snapshot for %s: %v", listID, err)
		}
		return nil, time.Time{}, ErrNotFound
	}

	var payload models.WatchlistPayload
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot for %s: %w", listID, err)
	}
	return &payload, updatedAt, nil
}

// Clear drops every cached snapshot, e.g. on logout.
func (s *Store) Clear() error {
	if _, err := s.conn.Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}
