package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"mathrag/internal/domain"
	"mathrag/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	seq         INTEGER PRIMARY KEY,
	chunk_id    TEXT NOT NULL UNIQUE,
	chunk_index INTEGER NOT NULL,
	page        INTEGER NOT NULL,
	file_name   TEXT NOT NULL,
	text        TEXT NOT NULL,
	vector      BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS manifest (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	payload TEXT NOT NULL
);`

// Index is a durable vector index stored in <dir>/<collection>.db.
// Searches scan all rows and rank them by cosine similarity.
type Index struct {
	db         *sql.DB
	path       string
	collection string
}

// Open creates or reopens the collection file under dir. Reopening keeps
// whatever a previous Build wrote.
func Open(dir, collection string) (*Index, error) {
	if err := vectorstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(dir, collection+".db")

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema in %s: %w", path, err)
	}
	return &Index{db: db, path: path, collection: collection}, nil
}

// Location returns the database file path.
func (s *Index) Location() string { return s.path }

// Close closes the database connection.
func (s *Index) Close() error { return s.db.Close() }

// Build replaces every stored entry and the manifest in one transaction.
func (s *Index) Build(ctx context.Context, manifest vectorstore.Manifest, entries []vectorstore.Entry) error {
	if err := vectorstore.CheckEntries(manifest, entries); err != nil {
		return err
	}
	manifest.Collection = s.collection
	manifest.Entries = len(entries)
	payload, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("%w: encoding manifest: %v", domain.ErrIndexBuild, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrIndexBuild, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("%w: clearing entries: %v", domain.ErrIndexBuild, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (seq, chunk_id, chunk_index, page, file_name, text, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: preparing insert: %v", domain.ErrIndexBuild, err)
	}
	defer stmt.Close()
	for i := range entries {
		ch := entries[i].Chunk
		if _, err := stmt.ExecContext(ctx, i, ch.ID, ch.Index, ch.Page, ch.FileName, ch.Text,
			encodeVector(entries[i].Vector)); err != nil {
			return fmt.Errorf("%w: inserting chunk %s: %v", domain.ErrIndexBuild, ch.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO manifest (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, string(payload)); err != nil {
		return fmt.Errorf("%w: writing manifest: %v", domain.ErrIndexBuild, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrIndexBuild, err)
	}
	return nil
}

// Search ranks all stored entries against vector.
func (s *Index) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	manifest, built, err := s.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearch, err)
	}
	if !built {
		return nil, nil
	}
	if len(vector) != manifest.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", domain.ErrSearch, len(vector), manifest.Dimension)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_index, page, file_name, text, vector
		FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying entries: %v", domain.ErrSearch, err)
	}
	defer rows.Close()

	var entries []vectorstore.Entry
	for rows.Next() {
		var e vectorstore.Entry
		var blob []byte
		if err := rows.Scan(&e.Chunk.ID, &e.Chunk.Index, &e.Chunk.Page, &e.Chunk.FileName, &e.Chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %v", domain.ErrSearch, err)
		}
		e.Vector, err = decodeVector(blob, manifest.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", domain.ErrSearch, e.Chunk.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration: %v", domain.ErrSearch, err)
	}
	return vectorstore.Rank(entries, vector, topK), nil
}

// Manifest returns the stored manifest, or false when the collection has
// never been built.
func (s *Index) Manifest(ctx context.Context) (vectorstore.Manifest, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM manifest WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return vectorstore.Manifest{}, false, nil
	}
	if err != nil {
		return vectorstore.Manifest{}, false, fmt.Errorf("reading manifest: %w", err)
	}
	var m vectorstore.Manifest
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return vectorstore.Manifest{}, false, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, true, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte, dimension int) ([]float32, error) {
	if len(data) != dimension*4 {
		return nil, fmt.Errorf("vector blob has %d bytes, want %d", len(data), dimension*4)
	}
	out := make([]float32, dimension)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}
