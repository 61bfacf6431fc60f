package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// ErrNotFound is returned for patches missing from the store.
var ErrNotFound = errors.New("patch not found")

// Reader reads patch meshes from a store database.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a store database for reading.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='patches'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain patches table")
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// ReadPatch reads and decodes one patch mesh.
func (r *Reader) ReadPatch(key tile.Key) (*mesh.Mesh, error) {
	var blob []byte
	err := r.db.QueryRow(
		"SELECT mesh FROM patches WHERE face=? AND depth=? AND x=? AND y=?",
		int(key.Face), key.Z, key.X, key.Y,
	).Scan(&blob)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query patch: %w", err)
	}

	m, err := DecodeMesh(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch %s: %w", key, err)
	}
	return m, nil
}

// Keys lists every stored patch ordered by face, depth, y and x.
func (r *Reader) Keys() ([]tile.Key, error) {
	rows, err := r.db.Query("SELECT face, depth, x, y FROM patches ORDER BY face, depth, y, x")
	if err != nil {
		return nil, fmt.Errorf("failed to query patches: %w", err)
	}
	defer rows.Close()

	var keys []tile.Key
	for rows.Next() {
		var face, z, x, y int64
		if err := rows.Scan(&face, &z, &x, &y); err != nil {
			return nil, fmt.Errorf("failed to scan patch row: %w", err)
		}
		keys = append(keys, tile.NewKey(sphere.Face(face), uint32(z), uint32(x), uint32(y)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patches: %w", err)
	}
	return keys, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}

	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
