// Package vault implements the folder-structured document store: notes with
// frontmatter, the directive list and the flat attachments area. Store is the
// only component that writes vault files.
package vault

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/storage"
)

// Default layout names.
const (
	AttachmentsDir = "Attachments"
	BrainDir       = "_brain"
	ProjectsFolder = "Projects"
	InboxFolder    = "Inbox"
)

// DefaultFolders is the folder set used when none is configured.
var DefaultFolders = []string{"Projects", "Actions", "Media", "Reference", "Inbox"}

// ChangeFunc is notified after a successful directive mutation.
type ChangeFunc func(directives []string)

// Store is a concurrent-safe vault on top of a storage.Provider.
type Store struct {
	fs      storage.Provider
	folders []string
	known   map[string]struct{}
	logger  *slog.Logger

	dirMu sync.Mutex // directives file read-modify-rewrite
	attMu sync.Mutex // attachment name resolution + write

	folderMu map[string]*sync.Mutex         // note name resolution, per folder
	reserved map[string]map[string]struct{} // in-flight names, guarded by folderMu[folder]
	paths    keyedMutex                     // note writes, per path

	onDirectives ChangeFunc
}

// Option configures a Store.
type Option func(*Store)

// WithFolders overrides the default folder set.
func WithFolders(folders []string) Option {
	return func(s *Store) {
		if len(folders) > 0 {
			s.folders = append([]string(nil), folders...)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDirectivesHook registers fn to be called after every directive change.
func WithDirectivesHook(fn ChangeFunc) Option {
	return func(s *Store) { s.onDirectives = fn }
}

// New creates a Store. Call Initialize before first use.
func New(fs storage.Provider, opts ...Option) *Store {
	s := &Store{
		fs:      fs,
		folders: append([]string(nil), DefaultFolders...),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.known = make(map[string]struct{}, len(s.folders))
	s.folderMu = make(map[string]*sync.Mutex, len(s.folders))
	s.reserved = make(map[string]map[string]struct{}, len(s.folders))
	for _, f := range s.folders {
		s.known[f] = struct{}{}
		s.folderMu[f] = &sync.Mutex{}
		s.reserved[f] = make(map[string]struct{})
	}
	return s
}

// Initialize creates the folder layout and verifies the root is writable.
// It is idempotent.
func (s *Store) Initialize() error {
	dirs := append(append([]string(nil), s.folders...), AttachmentsDir, BrainDir)
	for _, d := range dirs {
		if err := s.fs.MkdirAll(d); err != nil {
			return fmt.Errorf("%w: vault: create %s: %w", apperr.ErrStorageUnavailable, d, err)
		}
	}

	if err := s.writeProbe(); err != nil {
		return err
	}

	s.logger.Info("vault: initialized",
		slog.String("root", s.fs.Root()),
		slog.Int("folders", len(s.folders)))
	return nil
}

// Ping checks that the layout created by Initialize is still present and
// writable. Unlike Initialize it creates nothing and does not log.
func (s *Store) Ping() error {
	dirs := append(append([]string(nil), s.folders...), AttachmentsDir, BrainDir)
	for _, d := range dirs {
		info, err := os.Stat(filepath.Join(s.fs.Root(), d))
		if err != nil {
			return fmt.Errorf("%w: vault: %s: %w", apperr.ErrStorageUnavailable, d, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: vault: %s is not a directory", apperr.ErrStorageUnavailable, d)
		}
	}
	return s.writeProbe()
}

func (s *Store) writeProbe() error {
	probe, err := os.CreateTemp(filepath.Join(s.fs.Root(), BrainDir), ".ansuz-probe-*")
	if err != nil {
		return fmt.Errorf("%w: vault: root not writable: %w", apperr.ErrStorageUnavailable, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: vault: remove probe: %w", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Root returns the absolute vault root.
func (s *Store) Root() string { return s.fs.Root() }

// Folders returns a copy of the configured folder set.
func (s *Store) Folders() []string { return append([]string(nil), s.folders...) }

// Provider returns the underlying storage provider (read access for the catalog).
func (s *Store) Provider() storage.Provider { return s.fs }

// HasFolder reports whether name is a configured folder.
func (s *Store) HasFolder(name string) bool {
	_, ok := s.known[name]
	return ok
}

// keyedMutex hands out one mutex per key. Entries are dropped when the last
// holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
