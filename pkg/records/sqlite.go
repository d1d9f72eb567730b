package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// SQLiteStore keeps records in a single SQLite database. The full record is
// stored as a JSON document next to the indexed columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("records: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("records: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("records: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("records: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id         TEXT PRIMARY KEY,
			layer_type TEXT    NOT NULL,
			timestamp  INTEGER NOT NULL,
			doc        TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_layer_ts ON records(layer_type, timestamp DESC);
	`)
	return err
}

// Save inserts or replaces r.
func (s *SQLiteStore) Save(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	r.FileName = FileName(r.LayerType, r.ID)
	doc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	r.SizeBytes = int64(len(doc))
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, layer_type, timestamp, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			layer_type = excluded.layer_type,
			timestamp  = excluded.timestamp,
			doc        = excluded.doc`,
		r.ID, string(r.LayerType), r.Timestamp.UnixNano(), string(doc))
	return err
}

// List returns the records of one layer, newest first.
func (s *SQLiteStore) List(ctx context.Context, layer dag.Layer) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM records WHERE layer_type = ? ORDER BY timestamp DESC`, string(layer))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// ListAll returns every record grouped by layer.
func (s *SQLiteStore) ListAll(ctx context.Context) (map[dag.Layer][]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM records ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return group(recs), nil
}

// Get returns the record with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM records WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc(doc)
}

// Delete removes the record with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		r, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func decodeDoc(doc string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("records: decode: %w", err)
	}
	r.SizeBytes = int64(len(doc))
	r.Timestamp = r.Timestamp.In(time.UTC)
	return &r, nil
}

var _ Store = (*SQLiteStore)(nil)
