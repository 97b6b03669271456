package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// DirectivesFile is the vault-relative path of the directive list.
var DirectivesFile = path.Join(BrainDir, "directives.md")

// Directives returns a snapshot of the directive list in append order.
func (s *Store) Directives() ([]string, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	return s.readDirectives()
}

// AddDirective appends text and returns the updated list. Embedded newlines
// are replaced by a space.
func (s *Store) AddDirective(text string) ([]string, error) {
	text = normalizeDirective(text)
	if text == "" {
		return nil, fmt.Errorf("%w: vault: empty directive", apperr.ErrInvalidInput)
	}

	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	list, err := s.readDirectives()
	if err != nil {
		return nil, err
	}
	list = append(list, text)
	if err := s.writeDirectives(list); err != nil {
		return nil, err
	}
	s.logger.Info("vault: directive added", slog.Int("total", len(list)))
	s.notifyDirectives(list)
	return list, nil
}

// RemoveDirective deletes the directive at the 1-based index. An index out of
// range reports ok=false with the unchanged list and leaves the file untouched.
func (s *Store) RemoveDirective(index int) (string, bool, []string, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	list, err := s.readDirectives()
	if err != nil {
		return "", false, nil, err
	}
	if index < 1 || index > len(list) {
		return "", false, list, nil
	}
	removed := list[index-1]
	next := make([]string, 0, len(list)-1)
	next = append(next, list[:index-1]...)
	next = append(next, list[index:]...)
	if err := s.writeDirectives(next); err != nil {
		return "", false, nil, err
	}
	s.logger.Info("vault: directive removed",
		slog.Int("index", index),
		slog.Int("total", len(next)))
	s.notifyDirectives(next)
	return removed, true, next, nil
}

func (s *Store) readDirectives() ([]string, error) {
	data, err := s.fs.Read(DirectivesFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("vault: read directives: %w", err)
	}
	list := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			list = append(list, line)
		}
	}
	return list, nil
}

func (s *Store) writeDirectives(list []string) error {
	var b strings.Builder
	for _, d := range list {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	if err := s.fs.Write(DirectivesFile, []byte(b.String())); err != nil {
		return fmt.Errorf("vault: write directives: %w", err)
	}
	return nil
}

func (s *Store) notifyDirectives(list []string) {
	if s.onDirectives != nil {
		s.onDirectives(append([]string(nil), list...))
	}
}

func normalizeDirective(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
	return strings.TrimSpace(text)
}
