package index

import (
	"log/slog"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the configured folders and brings the catalog up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the catalog
func Sync(db *DB, store storage.Provider, folders []string, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	for _, folder := range folders {
		metas, err := store.List(folder)
		if err != nil {
			return err
		}
		for _, m := range metas {
			disk[m.Path] = struct{}{}

			if checksums[m.Path] == m.Checksum {
				continue
			}

			data, err := store.Read(m.Path)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				continue
			}
			if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
				logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: indexed", slog.String("path", m.Path))
			}
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	logger.Info("sync: done", slog.Int("notes", len(disk)))
	return nil
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, path string, data []byte, updated time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	folder, _, _ := strings.Cut(path, "/")
	return db.UpsertNote(NoteRow{
		Path:        path,
		Folder:      folder,
		Title:       res.Title,
		Checksum:    checksum.Sum(data),
		Frontmatter: res.Frontmatter,
		UpdatedAt:   updated,
	})
}
