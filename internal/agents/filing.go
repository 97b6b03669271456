package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/oracle"
	"github.com/starford/ansuz/internal/parser"
)

// Filing turns a message into a new vault note. It is the default intent.
type Filing struct {
	vault    Vault
	oracle   oracle.Oracle
	fallback string
	now      Clock
	logger   *slog.Logger
}

// NewFiling creates the filing handler. fallbackFolder receives notes whose
// suggested folder is unknown or whose oracle reply cannot be parsed.
func NewFiling(v Vault, o oracle.Oracle, fallbackFolder string, now Clock, logger *slog.Logger) *Filing {
	if now == nil {
		now = time.Now
	}
	return &Filing{vault: v, oracle: o, fallback: fallbackFolder, now: now, logger: logger}
}

func (f *Filing) Name() string { return FilingName }

func (f *Filing) Description() string {
	return "Files new information into the vault as a note: ideas, tasks, links, media, " +
		"reference material, photos and documents. Use this for anything that should be captured."
}

type filingPlan struct {
	Folder      string         `json:"folder"`
	Slug        string         `json:"slug"`
	Frontmatter map[string]any `json:"frontmatter"`
	Body        string         `json:"body"`
}

func (f *Filing) Handle(ctx context.Context, mc *agent.MessageContext) (*agent.Result, error) {
	projects, err := f.vault.ListProjects()
	if err != nil {
		f.logger.Warn("filing: list projects failed", slog.String("error", err.Error()))
	}
	directives, err := f.vault.Directives()
	if err != nil {
		f.logger.Warn("filing: directives unavailable", slog.String("error", err.Error()))
	}

	var parts []agent.Fragment
	for _, frag := range mc.Attachments {
		if frag.IsBinary() || frag.Text != "" {
			parts = append(parts, frag)
		}
	}

	resp, err := f.oracle.Generate(ctx, oracle.Request{
		System: f.system(projects, directives),
		Prompt: f.prompt(mc),
		Parts:  parts,
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("filing: %w", err)
	}

	plan := f.plan(resp.Text, mc.RawText)
	plan.Body = appendLinks(plan.Body, mc.Attachments)

	fm := parser.Normalize(plan.Frontmatter)
	if fm == nil {
		fm = models.Frontmatter{}
	}
	fm["created"] = f.now().Format("2006-01-02 15:04")

	rel, err := f.vault.SaveNote(plan.Folder, plan.Slug, fm, plan.Body)
	if err != nil {
		return nil, fmt.Errorf("filing: %w", err)
	}
	f.logger.Info("filing: saved note",
		slog.String("path", rel),
		slog.Int("tokens", resp.TokensUsed))

	return &agent.Result{
		ResponseText: fmt.Sprintf("📂 Filed to `%s/` as `%s` (%d tokens)", plan.Folder, path.Base(rel), resp.TokensUsed),
		FiledPath:    rel,
		TokensUsed:   resp.TokensUsed,
	}, nil
}

// plan decodes the oracle reply. Anything unusable falls back to filing the
// raw text into the fallback folder.
func (f *Filing) plan(reply, raw string) filingPlan {
	var p filingPlan
	obj, err := oracle.ExtractJSON(reply)
	if err == nil {
		err = json.Unmarshal([]byte(obj), &p)
	}
	if err != nil || strings.TrimSpace(p.Body) == "" {
		if err != nil {
			f.logger.Warn("filing: unparsable plan, filing raw text", slog.String("error", err.Error()))
		}
		return filingPlan{
			Folder:      f.fallback,
			Slug:        firstWords(raw, 6),
			Frontmatter: map[string]any{"source": "chat"},
			Body:        raw,
		}
	}
	if !f.vault.HasFolder(p.Folder) {
		f.logger.Info("filing: unknown folder, using fallback", slog.String("folder", p.Folder))
		p.Folder = f.fallback
	}
	if strings.TrimSpace(p.Slug) == "" {
		p.Slug = firstWords(p.Body, 6)
	}
	return p
}

func (f *Filing) system(projects, directives []string) string {
	var b strings.Builder
	b.WriteString("You file the user's message into their personal knowledge vault as a single Markdown note.\n\n")
	fmt.Fprintf(&b, "Vault folders: %s\n", strings.Join(f.vault.Folders(), ", "))
	if len(projects) > 0 {
		fmt.Fprintf(&b, "Existing projects: %s\n", strings.Join(projects, ", "))
	}
	fmt.Fprintf(&b, "Current time: %s\n\n", f.now().Format("2006-01-02 15:04"))
	b.WriteString("Pick the best folder. Actions are tasks with an optional due date, Media is books, films, " +
		"music and articles, Reference is durable facts, Projects is work tied to a project, Inbox is anything else.\n" +
		"Reply with JSON only: " +
		`{"folder": "<folder>", "slug": "<short-kebab-name>", "frontmatter": {"title": "...", "tags": ["..."]}, "body": "<markdown>"}` +
		"\n")
	if s := directivesSection(directives); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return b.String()
}

func (f *Filing) prompt(mc *agent.MessageContext) string {
	var b strings.Builder
	if len(mc.History) > 0 {
		b.WriteString("## Conversation so far\n")
		b.WriteString(agent.FormatHistory(mc.History))
		b.WriteString("\n")
	}
	b.WriteString("## Message to file\n")
	b.WriteString(mc.RawText)
	b.WriteString("\n")
	if len(mc.Attachments) > 0 {
		b.WriteString("\n## Attachments\n")
		for _, frag := range mc.Attachments {
			fmt.Fprintf(&b, "- %s (%s)", frag.Name, frag.MIME)
			if frag.Link != "" {
				fmt.Fprintf(&b, " saved as %s", frag.Link)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// appendLinks adds the embed of every saved attachment the body does not
// already reference.
func appendLinks(body string, frags []agent.Fragment) string {
	var missing []string
	for _, frag := range frags {
		if frag.Link != "" && !strings.Contains(body, frag.Link) {
			missing = append(missing, frag.Link)
		}
	}
	if len(missing) == 0 {
		return body
	}
	return strings.TrimRight(body, "\n") + "\n\n" + strings.Join(missing, "\n") + "\n"
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
