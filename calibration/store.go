package calibration

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// calibrationKey is the fixed row identifier. The engine manages one
// calibration per database; multi-board setups use separate files.
const calibrationKey = "active"

// Store persists calibration records in a sqlite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the calibration database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS calibration (
			id            TEXT PRIMARY KEY,
			image_points  TEXT NOT NULL,
			world_points  TEXT NOT NULL,
			matrix        TEXT NOT NULL,
			source_width  INTEGER NOT NULL,
			source_height INTEGER NOT NULL,
			created_at    TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the record, replacing any prior calibration.
func (s *Store) Save(rec *Record) error {
	imagePts, err := json.Marshal(rec.ImagePoints)
	if err != nil {
		return err
	}
	worldPts, err := json.Marshal(rec.WorldPoints)
	if err != nil {
		return err
	}
	matrix, err := json.Marshal(rec.Matrix)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO calibration (id, image_points, world_points, matrix, source_width, source_height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_points = excluded.image_points,
			world_points = excluded.world_points,
			matrix = excluded.matrix,
			source_width = excluded.source_width,
			source_height = excluded.source_height,
			created_at = excluded.created_at`,
		calibrationKey, string(imagePts), string(worldPts), string(matrix),
		rec.Source.Width, rec.Source.Height, rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving calibration: %v", err)
	}
	return nil
}

// Load reads the stored record. A missing row returns (nil, nil); rows
// whose JSON columns fail to parse are treated the same way so a
// corrupt file never blocks startup.
func (s *Store) Load() (*Record, error) {
	var imagePts, worldPts, matrix, createdAt string
	rec := &Record{}

	row := s.db.QueryRow(`
		SELECT image_points, world_points, matrix, source_width, source_height, created_at
		FROM calibration WHERE id = ?`, calibrationKey)
	err := row.Scan(&imagePts, &worldPts, &matrix, &rec.Source.Width, &rec.Source.Height, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading calibration: %v", err)
	}

	if json.Unmarshal([]byte(imagePts), &rec.ImagePoints) != nil {
		return nil, nil
	}
	if json.Unmarshal([]byte(worldPts), &rec.WorldPoints) != nil {
		return nil, nil
	}
	if json.Unmarshal([]byte(matrix), &rec.Matrix) != nil {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = ts
	}

	return rec, nil
}

// Delete removes the stored record. Deleting a missing record is not
// an error.
func (s *Store) Delete() error {
	_, err := s.db.Exec(`DELETE FROM calibration WHERE id = ?`, calibrationKey)
	return err
}
