// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// WalkFunc receives each Markdown file found by Walk with its path relative
// to the vault root and its raw content.
type WalkFunc func(rel string, data []byte) error

// Provider is the interface for vault file operations.
type Provider interface {
	// Root returns the absolute vault root.
	Root() string
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.NoteMetadata, error)
	// Walk calls fn for every .md file under dir in lexical order.
	Walk(dir string, fn WalkFunc) error
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Exists reports whether path exists (relative to vault root).
	Exists(path string) (bool, error)
	// MkdirAll creates dir and any missing parents (relative to vault root).
	MkdirAll(dir string) error
	// Entries lists the names of the direct children of dir, split into sub-directories and files.
	Entries(dir string) (dirs []string, files []string, err error)
}
