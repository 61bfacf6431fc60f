package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

const (
	// DefaultBatchSize is the number of patches to buffer before flushing to the database.
	DefaultBatchSize = 100
)

// PatchEntry is a single patch waiting to be written.
type PatchEntry struct {
	Key  tile.Key
	Mesh *mesh.Mesh
}

// Writer writes patch meshes to a store database.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []PatchEntry
	metadata  Metadata
	batchSize int
	mu        sync.Mutex
}

// New creates a new store writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]PatchEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS patches (
			face INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			resolution INTEGER NOT NULL,
			mesh BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS patch_index ON patches (face, depth, x, y);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

// WritePatch adds a patch mesh to the batch. When the batch is full, it is
// automatically flushed.
func (w *Writer) WritePatch(key tile.Key, m *mesh.Mesh) error {
	if !key.Valid() {
		return fmt.Errorf("invalid patch key %s", key)
	}
	if m == nil {
		return fmt.Errorf("patch %s has no mesh", key)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, PatchEntry{Key: key, Mesh: m})

	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// Flush writes any buffered patches to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered patches to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO patches (face, depth, x, y, resolution, mesh) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range w.batch {
		blob, err := EncodeMesh(p.Mesh)
		if err != nil {
			return fmt.Errorf("failed to encode patch %s: %w", p.Key, err)
		}

		if _, err := stmt.Exec(int(p.Key.Face), p.Key.Z, p.Key.X, p.Key.Y, p.Mesh.Resolution, blob); err != nil {
			return fmt.Errorf("failed to insert patch %s: %w", p.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining patches and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
