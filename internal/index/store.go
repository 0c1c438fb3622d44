package index

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"lyriscope/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current store schema version. Bump when the schema
// changes; existing databases must be re-imported after a bump.
const schemaVersion = 1

// Meta keys recorded by the import tool.
const (
	MetaModel      = "model"
	MetaDimensions = "dimensions"
)

// Store persists image embeddings in SQLite. Vectors are stored as
// little-endian float32 blobs alongside the image path they describe.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one image embedding bound for or loaded from the store.
type Entry struct {
	ID     int64
	Path   string
	Label  string
	Vector []float32
}

// OpenStore initializes or connects to the vector database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "index", "open", "index path is empty", nil)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrIndexUnavailable, "index", "open", "create index directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrIndexUnavailable, "index", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrIndexUnavailable, "index", "open",
				fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open", "check schema_version table", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open", "read schema version", err)
	}
	if version != schemaVersion {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open",
			fmt.Sprintf("database has schema version %d, expected %d (re-run 'lyriscope index import')", version, schemaVersion), nil)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open", "begin schema tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open", "create schema", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open", "record schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "open", "commit schema", err)
	}
	return nil
}

// Add upserts one entry keyed by image path and returns its row id.
func (s *Store) Add(ctx context.Context, entry Entry) (int64, error) {
	if entry.Path == "" {
		return 0, services.Wrap(services.ErrValidation, "index", "add", "entry path is empty", nil)
	}
	if len(entry.Vector) == 0 {
		return 0, services.Wrap(services.ErrValidation, "index", "add", "entry vector is empty", nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO index_items (path, label, dims, vector, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             label = excluded.label,
             dims = excluded.dims,
             vector = excluded.vector`,
		entry.Path,
		nullableString(entry.Label),
		len(entry.Vector),
		encodeVector(entry.Vector),
		now,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "add", "insert entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "add", "last insert id", err)
	}
	return id, nil
}

// AddBatch upserts entries in a single transaction and reports how many rows
// were written.
func (s *Store) AddBatch(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "import", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO index_items (path, label, dims, vector, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             label = excluded.label,
             dims = excluded.dims,
             vector = excluded.vector`)
	if err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "import", "prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	written := 0
	for _, entry := range entries {
		if entry.Path == "" || len(entry.Vector) == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, entry.Path, nullableString(entry.Label), len(entry.Vector), encodeVector(entry.Vector), now); err != nil {
			return 0, services.Wrap(services.ErrIndexUnavailable, "index", "import",
				fmt.Sprintf("insert entry %q", entry.Path), err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "import", "commit tx", err)
	}
	return written, nil
}

// All loads every entry. The result order is stable (insertion order).
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, path, COALESCE(label, ''), vector FROM index_items ORDER BY id")
	if err != nil {
		return nil, services.Wrap(services.ErrIndexUnavailable, "index", "load", "query entries", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var blob []byte
		if err := rows.Scan(&entry.ID, &entry.Path, &entry.Label, &blob); err != nil {
			return nil, services.Wrap(services.ErrIndexUnavailable, "index", "load", "scan entry", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, services.Wrap(services.ErrIndexUnavailable, "index", "load",
				fmt.Sprintf("decode vector for %q", entry.Path), err)
		}
		entry.Vector = vec
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrIndexUnavailable, "index", "load", "iterate entries", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM index_items").Scan(&count); err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "count", "count entries", err)
	}
	return count, nil
}

// SetMeta records an informational key for `index info` reporting.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO index_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "meta", fmt.Sprintf("set meta %q", key), err)
	}
	return nil
}

// Meta returns the value for key, or "" when unset.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", services.Wrap(services.ErrIndexUnavailable, "index", "meta", fmt.Sprintf("get meta %q", key), err)
	}
	return value, nil
}

// Dimensions reports the vector dimensionality recorded at import time,
// falling back to the first stored row.
func (s *Store) Dimensions(ctx context.Context) (int, error) {
	if value, err := s.Meta(ctx, MetaDimensions); err == nil && value != "" {
		if dims, convErr := strconv.Atoi(value); convErr == nil && dims > 0 {
			return dims, nil
		}
	}
	var dims int
	err := s.db.QueryRowContext(ctx, "SELECT dims FROM index_items ORDER BY id LIMIT 1").Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, services.Wrap(services.ErrIndexUnavailable, "index", "meta", "read dimensions", err)
	}
	return dims, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
