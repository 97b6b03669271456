package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/ansuz/internal/agent"
)

// Memory adds, removes and lists persistent directives.
type Memory struct {
	vault  Vault
	logger *slog.Logger
}

// NewMemory creates the memory handler.
func NewMemory(v Vault, logger *slog.Logger) *Memory {
	return &Memory{vault: v, logger: logger}
}

func (m *Memory) Name() string { return MemoryName }

func (m *Memory) Description() string {
	return "Manages persistent directives: 'remember' adds a behaviour rule, " +
		"'forget' removes one by number, 'list directives' shows all current rules."
}

func (m *Memory) ParameterHint() string {
	return `memory_action ("add" | "remove" | "list"), directive_text (for add), directive_index (1-based, for remove)`
}

// Handle dispatches on memory_action. Anything unrecognized lists.
func (m *Memory) Handle(_ context.Context, mc *agent.MessageContext) (*agent.Result, error) {
	action, _ := agent.StringParam(mc.RouterData, "memory_action")
	switch strings.ToLower(action) {
	case "add":
		if text, ok := agent.StringParam(mc.RouterData, "directive_text"); ok {
			return m.add(text)
		}
	case "remove":
		if idx, ok := agent.IntParam(mc.RouterData, "directive_index"); ok {
			return m.remove(idx)
		}
	}
	return m.list()
}

func (m *Memory) add(text string) (*agent.Result, error) {
	list, err := m.vault.AddDirective(text)
	if err != nil {
		return nil, err
	}
	m.logger.Info("memory: added directive", slog.Int("total", len(list)))
	return &agent.Result{ResponseText: fmt.Sprintf(
		"✅ Remembered: _%s_\nI now have %d directive(s).", list[len(list)-1], len(list))}, nil
}

func (m *Memory) remove(idx int) (*agent.Result, error) {
	removed, ok, list, err := m.vault.RemoveDirective(idx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &agent.Result{ResponseText: fmt.Sprintf(
			"⚠️ No directive #%d. I have %d directive(s). Use 'list directives' to see them.", idx, len(list))}, nil
	}
	m.logger.Info("memory: removed directive", slog.Int("index", idx), slog.Int("total", len(list)))
	return &agent.Result{ResponseText: fmt.Sprintf(
		"🗑️ Forgot directive #%d: _%s_\n%d directive(s) remaining.", idx, removed, len(list))}, nil
}

func (m *Memory) list() (*agent.Result, error) {
	list, err := m.vault.Directives()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return &agent.Result{ResponseText: "I don't have any directives yet. Send me 'remember: <rule>' to add one."}, nil
	}
	var b strings.Builder
	b.WriteString("📋 *Current Directives:*\n")
	for i, d := range list {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, d)
	}
	fmt.Fprintf(&b, "\n_%d directive(s). Say 'forget #N' to remove one._", len(list))
	return &agent.Result{ResponseText: b.String()}, nil
}
