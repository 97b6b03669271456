package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path        string             `json:"path"`
	Folder      string             `json:"folder"`
	Title       string             `json:"title"`
	Checksum    string             `json:"checksum"`
	Frontmatter models.Frontmatter `json:"frontmatter,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// UpsertNote inserts or replaces a note row.
func (db *DB) UpsertNote(n NoteRow) error {
	fmJSON, err := json.Marshal(n.Frontmatter)
	if err != nil {
		return fmt.Errorf("index: encode frontmatter: %w", err)
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}
	_, err = db.conn.Exec(`
		INSERT INTO notes (path, folder, title, checksum, frontmatter, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			folder      = excluded.folder,
			title       = excluded.title,
			checksum    = excluded.checksum,
			frontmatter = excluded.frontmatter,
			updated_at  = excluded.updated_at
	`, n.Path, n.Folder, n.Title, n.Checksum, string(fmJSON), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note row.
func (db *DB) DeleteNote(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns a single note row.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`
		SELECT path, folder, title, checksum, frontmatter, updated_at
		FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// RecentNotes returns notes updated at or after since, newest first.
func (db *DB) RecentNotes(since time.Time, limit int) ([]NoteRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT path, folder, title, checksum, frontmatter, updated_at
		FROM notes WHERE updated_at >= ?
		ORDER BY updated_at DESC, path ASC
		LIMIT ?`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("index: recent notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n      NoteRow
		fmJSON string
	)
	if err := s.Scan(&n.Path, &n.Folder, &n.Title, &n.Checksum, &fmJSON, &n.UpdatedAt); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(fmJSON), &raw); err == nil && len(raw) > 0 {
		n.Frontmatter = parser.Normalize(raw)
	}
	return &n, nil
}
