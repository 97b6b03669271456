package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/oracle"
)

// NoMatchesReply is sent when a vault query finds nothing.
const NoMatchesReply = "I searched the vault but didn't find any matching notes. " +
	"Try rephrasing your question or being more specific about what you're looking for."

// VaultQuery searches note names and frontmatter and asks the oracle to
// answer the question from those matches.
type VaultQuery struct {
	vault  Vault
	oracle oracle.Oracle
	now    Clock
	logger *slog.Logger
}

// NewVaultQuery creates the vault query handler.
func NewVaultQuery(v Vault, o oracle.Oracle, now Clock, logger *slog.Logger) *VaultQuery {
	if now == nil {
		now = time.Now
	}
	return &VaultQuery{vault: v, oracle: o, now: now, logger: logger}
}

func (q *VaultQuery) Name() string { return VaultQueryName }

func (q *VaultQuery) Description() string {
	return "Answers questions about previously saved vault content: " +
		"open actions, filed media, project notes, recent captures."
}

func (q *VaultQuery) ParameterHint() string {
	return "search_terms (list of keywords), folders (optional list of vault folders), question"
}

func (q *VaultQuery) Handle(ctx context.Context, mc *agent.MessageContext) (*agent.Result, error) {
	terms, _ := agent.StringsParam(mc.RouterData, "search_terms")
	folders, _ := agent.StringsParam(mc.RouterData, "folders")
	question, ok := agent.StringParam(mc.RouterData, "question")
	if !ok {
		question = mc.RawText
	}

	matches, err := q.vault.SearchNotes(terms, folders)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &agent.Result{ResponseText: NoMatchesReply}, nil
	}

	directives, err := q.vault.Directives()
	if err != nil {
		q.logger.Warn("vault_query: directives unavailable", slog.String("error", err.Error()))
	}

	resp, err := q.oracle.Generate(ctx, oracle.Request{
		System: q.system(directives),
		Prompt: fmt.Sprintf("## Matching Notes\n%s\n\n## Question\n%s\n", FormatMatches(matches), question),
	})
	if err != nil {
		return nil, fmt.Errorf("vault_query: %w", err)
	}
	q.logger.Info("vault_query: answered",
		slog.Int("matches", len(matches)),
		slog.Int("tokens", resp.TokensUsed))
	return &agent.Result{ResponseText: strings.TrimSpace(resp.Text), TokensUsed: resp.TokensUsed}, nil
}

func (q *VaultQuery) system(directives []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful assistant answering questions about the user's personal knowledge vault. "+
		"The vault is organised into folders: %s.\n\n", strings.Join(q.vault.Folders(), ", "))
	fmt.Fprintf(&b, "Current time: %s\n\n", q.now().Format("2006-01-02 15:04"))
	b.WriteString("Below is a list of matching notes with their filenames and frontmatter metadata. " +
		"Use ONLY this information to answer the question. If the metadata is insufficient, say so.\n\n" +
		"Respond in concise, conversational plain text. Use bullet points or numbered lists where appropriate. " +
		"Do NOT return JSON.\n")
	if s := directivesSection(directives); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return b.String()
}

// FormatMatches renders matches as a compact list for prompts.
func FormatMatches(matches []models.NoteMatch) string {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		line := fmt.Sprintf("- **%s** (in %s/)", m.Filename, m.Folder)
		if meta := formatFrontmatter(m.Frontmatter); meta != "" {
			line += "\n  " + meta
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
