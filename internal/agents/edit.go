package agents

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/oracle"
)

// NoEditTargetReply is sent when no note matches the edit request.
const NoEditTargetReply = "I couldn't find a note to edit. Try naming the note or project more specifically."

// VaultEdit amends an existing note. The note's checksum is captured before
// the oracle call and checked on write, so a concurrent change fails with a
// conflict instead of being overwritten.
type VaultEdit struct {
	vault  Vault
	oracle oracle.Oracle
	now    Clock
	logger *slog.Logger
}

// NewVaultEdit creates the vault edit handler.
func NewVaultEdit(v Vault, o oracle.Oracle, now Clock, logger *slog.Logger) *VaultEdit {
	if now == nil {
		now = time.Now
	}
	return &VaultEdit{vault: v, oracle: o, now: now, logger: logger}
}

func (e *VaultEdit) Name() string { return VaultEditName }

func (e *VaultEdit) Description() string {
	return "Changes an existing vault note: append to it, mark an action done, correct or rewrite content."
}

func (e *VaultEdit) ParameterHint() string {
	return "search_terms (keywords naming the note), folders (optional), instruction (what to change)"
}

func (e *VaultEdit) Handle(ctx context.Context, mc *agent.MessageContext) (*agent.Result, error) {
	terms, ok := agent.StringsParam(mc.RouterData, "search_terms")
	if !ok {
		return &agent.Result{ResponseText: NoEditTargetReply}, nil
	}
	folders, _ := agent.StringsParam(mc.RouterData, "folders")
	instruction, ok := agent.StringParam(mc.RouterData, "instruction")
	if !ok {
		instruction = mc.RawText
	}

	matches, err := e.vault.SearchNotes(terms, folders)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &agent.Result{ResponseText: NoEditTargetReply}, nil
	}

	note, err := e.vault.ReadNote(matches[0].Path)
	if err != nil {
		return nil, err
	}

	resp, err := e.oracle.Generate(ctx, oracle.Request{
		System: "You edit a Markdown note from the user's knowledge vault. " +
			"Apply the instruction and reply with the complete revised note body only: " +
			"no frontmatter, no explanation, no code fences.",
		Prompt: fmt.Sprintf("## Note %s\n%s\n\n## Current body\n%s\n\n## Instruction\n%s\n",
			note.Path, formatFrontmatter(note.Frontmatter), note.Body, instruction),
	})
	if err != nil {
		return nil, fmt.Errorf("vault_edit: %w", err)
	}
	body := stripFences(resp.Text)
	if body == "" {
		return nil, fmt.Errorf("vault_edit: oracle returned an empty body for %s", note.Path)
	}

	fm := maps.Clone(note.Frontmatter)
	if fm == nil {
		fm = map[string]any{}
	}
	fm["updated"] = e.now().Format("2006-01-02 15:04")

	if _, err := e.vault.ReplaceNote(note.Path, fm, body, note.Checksum); err != nil {
		return nil, fmt.Errorf("vault_edit: %w", err)
	}
	e.logger.Info("vault_edit: updated note",
		slog.String("path", note.Path),
		slog.Int("tokens", resp.TokensUsed))

	return &agent.Result{
		ResponseText: fmt.Sprintf("✏️ Updated `%s` (%d tokens)", note.Path, resp.TokensUsed),
		FiledPath:    note.Path,
		TokensUsed:   resp.TokensUsed,
	}, nil
}
