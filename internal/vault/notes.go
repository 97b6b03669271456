package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// maxSuffix bounds the collision probe for notes and attachments.
const maxSuffix = 1000

const maxSlugLen = 80

var (
	slugUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases s and reduces it to [a-z0-9-]. An empty result becomes "note".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".md")
	s = slugUnsafe.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		return "note"
	}
	return s
}

// SaveNote renders frontmatter and body and writes them to a new file in
// folder. An existing file is never overwritten: the name is disambiguated
// with -1, -2, ... suffixes. Returns the vault-relative path.
func (s *Store) SaveNote(folder, slug string, fm models.Frontmatter, body string) (string, error) {
	if !s.HasFolder(folder) {
		return "", fmt.Errorf("%w: vault: unknown folder %q", apperr.ErrInvalidInput, folder)
	}
	data, err := parser.Render(fm, body)
	if err != nil {
		return "", fmt.Errorf("vault: render note: %w", err)
	}

	slug = Slugify(slug)
	rel, err := s.reserveNote(folder, slug)
	if err != nil {
		return "", err
	}
	defer s.release(folder, rel)

	unlock := s.paths.Lock(rel)
	defer unlock()

	if err := s.fs.Write(rel, data); err != nil {
		return "", fmt.Errorf("vault: write note: %w", err)
	}
	s.logger.Debug("vault: note saved", slog.String("path", rel))
	return rel, nil
}

// reserveNote picks the first free name for slug under the folder lock and
// marks it as in flight until release is called.
func (s *Store) reserveNote(folder, slug string) (string, error) {
	mu := s.folderMu[folder]
	mu.Lock()
	defer mu.Unlock()

	inFlight := s.reserved[folder]
	for i := 0; i <= maxSuffix; i++ {
		name := slug + ".md"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.md", slug, i)
		}
		rel := path.Join(folder, name)
		if _, busy := inFlight[rel]; busy {
			continue
		}
		exists, err := s.fs.Exists(rel)
		if err != nil {
			return "", fmt.Errorf("vault: probe %s: %w", rel, err)
		}
		if !exists {
			inFlight[rel] = struct{}{}
			return rel, nil
		}
	}
	return "", fmt.Errorf("%w: vault: %s/%s", apperr.ErrCollisionExhausted, folder, slug)
}

func (s *Store) release(folder, rel string) {
	mu := s.folderMu[folder]
	mu.Lock()
	delete(s.reserved[folder], rel)
	mu.Unlock()
}

// ReadNote loads and parses the note at the vault-relative path.
func (s *Store) ReadNote(rel string) (*models.Note, error) {
	folder, ok := s.noteFolder(rel)
	if !ok {
		return nil, fmt.Errorf("%w: vault: %s is not a note path", apperr.ErrInvalidInput, rel)
	}
	data, err := s.fs.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, rel)
		}
		return nil, fmt.Errorf("vault: read note: %w", err)
	}
	res, _ := parser.Parse(data)
	return &models.Note{
		Path:        rel,
		Folder:      folder,
		Filename:    path.Base(rel),
		Frontmatter: res.Frontmatter,
		Body:        res.Body,
		Checksum:    checksum.Sum(data),
	}, nil
}

// ReplaceNote rewrites an existing note. When ifMatch is non-empty it must
// equal the checksum of the current file content, otherwise ErrConflict is
// returned and nothing is written. Returns the new checksum.
func (s *Store) ReplaceNote(rel string, fm models.Frontmatter, body, ifMatch string) (string, error) {
	if _, ok := s.noteFolder(rel); !ok {
		return "", fmt.Errorf("%w: vault: %s is not a note path", apperr.ErrInvalidInput, rel)
	}
	data, err := parser.Render(fm, body)
	if err != nil {
		return "", fmt.Errorf("vault: render note: %w", err)
	}

	unlock := s.paths.Lock(rel)
	defer unlock()

	current, err := s.fs.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", apperr.ErrNotFound, rel)
		}
		return "", fmt.Errorf("vault: read note: %w", err)
	}
	if !checksum.Match(current, ifMatch) {
		return "", fmt.Errorf("%w: %s changed since it was read", apperr.ErrConflict, rel)
	}
	if err := s.fs.Write(rel, data); err != nil {
		return "", fmt.Errorf("vault: write note: %w", err)
	}
	s.logger.Debug("vault: note replaced", slog.String("path", rel))
	return checksum.Sum(data), nil
}

// noteFolder returns the configured folder a note path lives in.
func (s *Store) noteFolder(rel string) (string, bool) {
	if !strings.HasSuffix(rel, ".md") {
		return "", false
	}
	clean := path.Clean(rel)
	if clean != rel {
		return "", false
	}
	top, _, found := strings.Cut(clean, "/")
	if !found || !s.HasFolder(top) {
		return "", false
	}
	return top, true
}
