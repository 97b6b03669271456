package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/storage"
)

// Change kinds reported to EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven catalog change.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the configured vault folders and
// processes file change events until ctx is cancelled. It calls cb (if
// non-nil) after each catalog mutation that changed content.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, folders []string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	for _, f := range folders {
		if err := addDirsRecursive(w, filepath.Join(root, f)); err != nil {
			return err
		}
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Int("folders", len(folders)))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	emit := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, folders, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// Files may have landed before the watch was added.
					scheduleReconcile()
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, idxErr := indexChanged(db, store, rel)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				if kind != "" {
					logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
					emit(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				emit(ChangeDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new path
				// arrives as a Create if it stays inside a watched dir.
				if delErr := db.DeleteNote(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					emit(ChangeDeleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexChanged re-indexes rel if its content differs from the catalog and
// reports whether it was created or updated ("" when unchanged).
func indexChanged(db *DB, store storage.Provider, rel string) (string, error) {
	data, err := store.Read(rel)
	if err != nil {
		return "", err
	}
	prev, err := db.GetChecksum(rel)
	if err != nil {
		return "", err
	}
	if prev == checksum.Sum(data) {
		return "", nil
	}
	if err := indexFile(db, rel, data, time.Now()); err != nil {
		return "", err
	}
	if prev == "" {
		return ChangeCreated, nil
	}
	return ChangeUpdated, nil
}

// reconcile removes catalog entries without a file on disk and indexes
// files that are missing or changed.
func reconcile(db *DB, store storage.Provider, folders []string, logger *slog.Logger, emit func(kind, rel string)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string)
	for _, f := range folders {
		metas, err := store.List(f)
		if err != nil {
			logger.Warn("reconcile: list failed", slog.String("folder", f), slog.String("error", err.Error()))
			return
		}
		for _, m := range metas {
			disk[m.Path] = m.Checksum
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteNote(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				emit(ChangeDeleted, p)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		kind, idxErr := indexChanged(db, store, p)
		if idxErr == nil && kind != "" {
			logger.Debug("reconcile: indexed", slog.String("path", p))
			emit(kind, p)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
// A missing root is skipped.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
