// Package briefing writes a daily summary note into the vault.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/agents"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/oracle"
	"github.com/starford/ansuz/internal/vault"
)

const (
	// ActionsFolder holds the open action items summarized each morning.
	ActionsFolder = "Actions"
	slugPrefix    = "daily-briefing-"
	recentLimit   = 50
)

// Vault is the subset of the vault store the briefing reads and writes.
type Vault interface {
	SearchNotes(keywords, folders []string) ([]models.NoteMatch, error)
	Directives() ([]string, error)
	ReadNote(path string) (*models.Note, error)
	SaveNote(folder, slug string, fm models.Frontmatter, body string) (string, error)
}

// RecentSource lists catalog entries changed since a point in time.
type RecentSource interface {
	RecentNotes(since time.Time, limit int) ([]index.NoteRow, error)
}

// ReadyFunc is called with the vault path of each new briefing.
type ReadyFunc func(path string)

// Scheduler generates one briefing per day at a fixed local hour.
type Scheduler struct {
	vault  Vault
	recent RecentSource
	oracle oracle.Oracle
	hour   int
	now    agents.Clock
	ready  ReadyFunc
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides time.Now.
func WithClock(c agents.Clock) Option { return func(s *Scheduler) { s.now = c } }

// WithReady registers a callback for finished briefings.
func WithReady(fn ReadyFunc) Option { return func(s *Scheduler) { s.ready = fn } }

// New creates a scheduler firing at hour (0-23). recent may be nil.
func New(v Vault, recent RecentSource, o oracle.Oracle, hour int, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{vault: v, recent: recent, oracle: o, hour: hour, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slug returns the note slug used for day's briefing.
func Slug(day time.Time) string { return slugPrefix + day.Format("2006-01-02") }

// NextRun returns the first time at or after now whose clock hour is hour.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, generating a briefing at each
// scheduled time. Failures are logged and retried the next day.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := NextRun(s.now(), s.hour)
		s.logger.Info("briefing: scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		path, err := s.Generate(ctx, s.now())
		if err != nil {
			s.logger.Error("briefing: failed", slog.String("error", err.Error()))
			continue
		}
		if path != "" {
			s.logger.Info("briefing: written", slog.String("path", path))
		}
	}
}

// Generate writes the briefing for day into the Inbox and returns its path.
// An existing briefing for the same day is left alone and "" is returned.
func (s *Scheduler) Generate(ctx context.Context, day time.Time) (string, error) {
	slug := Slug(day)
	existing := vault.InboxFolder + "/" + slug + ".md"
	if _, err := s.vault.ReadNote(existing); err == nil {
		return "", nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("briefing: check existing: %w", err)
	}

	actions, err := s.vault.SearchNotes(nil, []string{ActionsFolder})
	if err != nil {
		return "", fmt.Errorf("briefing: actions: %w", err)
	}
	directives, err := s.vault.Directives()
	if err != nil {
		s.logger.Warn("briefing: directives unavailable", slog.String("error", err.Error()))
	}

	var recent []index.NoteRow
	if s.recent != nil {
		recent, err = s.recent.RecentNotes(day.Add(-24*time.Hour), recentLimit)
		if err != nil {
			s.logger.Warn("briefing: recent notes unavailable", slog.String("error", err.Error()))
		}
	}

	resp, err := s.oracle.Generate(ctx, oracle.Request{
		System: system(directives),
		Prompt: prompt(day, actions, recent),
	})
	if err != nil {
		return "", fmt.Errorf("briefing: %w", err)
	}

	fm := models.Frontmatter{
		"type":    "briefing",
		"date":    day.Format("2006-01-02"),
		"created": day.Format("2006-01-02 15:04"),
		"source":  "briefing",
	}
	title := "# Daily Briefing " + day.Format("Monday, January 2")
	path, err := s.vault.SaveNote(vault.InboxFolder, slug, fm, title+"\n\n"+strings.TrimSpace(resp.Text))
	if err != nil {
		return "", err
	}
	if s.ready != nil {
		s.ready(path)
	}
	return path, nil
}

func system(directives []string) string {
	var b strings.Builder
	b.WriteString("You write a short morning briefing for the owner of a personal knowledge vault.\n")
	b.WriteString("Summarize open actions first, ordered by urgency, then notable captures from the last day.\n")
	b.WriteString("Use Markdown bullet lists. Do not invent items that are not listed.\n")
	if len(directives) > 0 {
		b.WriteString("\n## Directives\n")
		for i, d := range directives {
			fmt.Fprintf(&b, "%d. %s\n", i+1, d)
		}
	}
	return b.String()
}

func prompt(day time.Time, actions []models.NoteMatch, recent []index.NoteRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n\n## Open Actions\n", day.Format("Monday, 2006-01-02"))
	if len(actions) == 0 {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(agents.FormatMatches(actions))
		b.WriteString("\n")
	}

	b.WriteString("\n## Captured In The Last Day\n")
	n := 0
	for _, r := range recent {
		if r.Folder == ActionsFolder || strings.HasPrefix(r.Path, vault.InboxFolder+"/"+slugPrefix) {
			continue
		}
		title := r.Title
		if title == "" {
			title = r.Path
		}
		fmt.Fprintf(&b, "- %s (%s)\n", title, r.Path)
		n++
	}
	if n == 0 {
		b.WriteString("(none)\n")
	}
	return b.String()
}
