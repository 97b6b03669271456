package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeAttachmentName strips directory components and unsafe characters.
// An empty result becomes a random name.
func SanitizeAttachmentName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return uuid.NewString()
	}
	return name
}

// SaveAttachment stores data under a name derived from originalName. If that
// name is taken, stem-1.ext, stem-2.ext, ... are probed in order. Returns the
// stored name.
func (s *Store) SaveAttachment(originalName string, data []byte) (string, error) {
	name := SanitizeAttachmentName(originalName)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	s.attMu.Lock()
	defer s.attMu.Unlock()

	for i := 0; i <= maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		rel := path.Join(AttachmentsDir, candidate)
		exists, err := s.fs.Exists(rel)
		if err != nil {
			return "", fmt.Errorf("vault: probe %s: %w", rel, err)
		}
		if exists {
			continue
		}
		if err := s.fs.Write(rel, data); err != nil {
			return "", fmt.Errorf("vault: write attachment: %w", err)
		}
		s.logger.Debug("vault: attachment saved",
			slog.String("name", candidate),
			slog.Int("bytes", len(data)))
		return candidate, nil
	}
	return "", fmt.Errorf("%w: vault: attachment %s", apperr.ErrCollisionExhausted, name)
}

// ReadAttachment returns the bytes of a stored attachment.
func (s *Store) ReadAttachment(storedName string) ([]byte, error) {
	if storedName == "" || storedName != path.Base(storedName) || strings.HasPrefix(storedName, ".") {
		return nil, fmt.Errorf("%w: vault: bad attachment name %q", apperr.ErrInvalidInput, storedName)
	}
	data, err := s.fs.Read(path.Join(AttachmentsDir, storedName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: attachment %s", apperr.ErrNotFound, storedName)
		}
		return nil, fmt.Errorf("vault: read attachment: %w", err)
	}
	return data, nil
}
