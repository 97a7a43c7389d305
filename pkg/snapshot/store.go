// ABOUTME: SQLite-backed snapshot catalog
// ABOUTME: Lists captures newest-first per collection for timeline construction

package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/nainya/mementod/pkg/memento"
)

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
    collection_id  TEXT NOT NULL,
    resource_id    TEXT NOT NULL,
    version        INTEGER NOT NULL CHECK (version > 0),
    timestamp      TEXT NOT NULL DEFAULT '',
    content_type   TEXT NOT NULL DEFAULT '',
    payload        BLOB,
    stored_at      INTEGER NOT NULL,
    PRIMARY KEY (collection_id, resource_id, version)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_resource ON snapshots(resource_id, collection_id, version DESC);
`,
	},
}

// Store is the persistent snapshot catalog
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog at path and applies migrations
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	// schema_versions may not exist yet
	current := 0
	_ = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&current)

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)`,
			m.version, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Put stores a capture. A zero Version is replaced with the next free version
// for the collection and resource. Storing an existing version overwrites it.
func (s *Store) Put(ctx context.Context, r *Record) error {
	if r.CollectionID == "" || r.ResourceID == "" {
		return fmt.Errorf("put snapshot: collection and resource are required")
	}
	if r.Version < 0 {
		return fmt.Errorf("put snapshot: negative version %d", r.Version)
	}
	if r.StoredAt.IsZero() {
		r.StoredAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if r.Version == 0 {
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE collection_id = ? AND resource_id = ?`,
			r.CollectionID, r.ResourceID).Scan(&r.Version)
		if err != nil {
			return fmt.Errorf("next version: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (collection_id, resource_id, version, timestamp, content_type, payload, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection_id, resource_id, version) DO UPDATE SET
			timestamp = excluded.timestamp,
			content_type = excluded.content_type,
			payload = excluded.payload,
			stored_at = excluded.stored_at`,
		r.CollectionID, r.ResourceID, r.Version, r.Timestamp, r.ContentType, r.Payload, r.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	return tx.Commit()
}

// Versions returns the captures of one resource in one collection, newest first
func (s *Store) Versions(ctx context.Context, collectionID, resourceID string) ([]memento.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, resource_id, version, timestamp FROM snapshots
		WHERE collection_id = ? AND resource_id = ?
		ORDER BY version DESC`, collectionID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, resourceID, collectionID)
	}
	return snaps, nil
}

// ByResource returns one newest-first version array per collection holding
// the resource, ordered by collection
func (s *Store) ByResource(ctx context.Context, resourceID string) ([][]memento.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, resource_id, version, timestamp FROM snapshots
		WHERE resource_id = ?
		ORDER BY collection_id, version DESC`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query resource: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resourceID)
	}

	var groups [][]memento.Snapshot
	start := 0
	for i := 1; i <= len(snaps); i++ {
		if i == len(snaps) || snaps[i].CollectionID != snaps[start].CollectionID {
			groups = append(groups, snaps[start:i])
			start = i
		}
	}
	return groups, nil
}

// Get returns one capture including its payload
func (s *Store) Get(ctx context.Context, collectionID, resourceID string, version int) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection_id, resource_id, version, timestamp, content_type, payload, stored_at
		FROM snapshots WHERE collection_id = ? AND resource_id = ? AND version = ?`,
		collectionID, resourceID, version)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s version %d in %s", ErrNotFound, resourceID, version, collectionID)
	}
	return r, err
}

// Latest returns the highest version of a resource. An empty collectionID
// picks the most recently stored capture from any collection.
func (s *Store) Latest(ctx context.Context, collectionID, resourceID string) (*Record, error) {
	var row *sql.Row
	if collectionID == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT collection_id, resource_id, version, timestamp, content_type, payload, stored_at
			FROM snapshots WHERE resource_id = ?
			ORDER BY stored_at DESC, version DESC LIMIT 1`, resourceID)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT collection_id, resource_id, version, timestamp, content_type, payload, stored_at
			FROM snapshots WHERE collection_id = ? AND resource_id = ?
			ORDER BY version DESC LIMIT 1`, collectionID, resourceID)
	}

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resourceID)
	}
	return r, err
}

// Resources lists the distinct resources of a collection
func (s *Store) Resources(ctx context.Context, collectionID string) ([]string, error) {
	return s.strings(ctx,
		`SELECT DISTINCT resource_id FROM snapshots WHERE collection_id = ? ORDER BY resource_id`,
		collectionID)
}

// Collections lists every collection holding at least one capture
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT collection_id FROM snapshots ORDER BY collection_id`)
}

// Stats summarizes the catalog
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT resource_id),
		       COUNT(DISTINCT collection_id),
		       COALESCE(SUM(LENGTH(payload)), 0)
		FROM snapshots`).Scan(&st.Snapshots, &st.Resources, &st.Collections, &st.PayloadBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Helper functions

func scanSnapshots(rows *sql.Rows) ([]memento.Snapshot, error) {
	var snaps []memento.Snapshot
	for rows.Next() {
		var s memento.Snapshot
		if err := rows.Scan(&s.CollectionID, &s.ResourceID, &s.Version, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		r        Record
		storedAt int64
	)
	err := row.Scan(&r.CollectionID, &r.ResourceID, &r.Version, &r.Timestamp,
		&r.ContentType, &r.Payload, &storedAt)
	if err != nil {
		return nil, err
	}
	r.StoredAt = time.UnixMilli(storedAt)
	return &r, nil
}
