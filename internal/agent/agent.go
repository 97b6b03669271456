// Package agent defines the handler capability the router dispatches to, the
// per-message context it receives and the registry that maps intents to
// handlers.
package agent

import (
	"context"
	"strings"
)

// Role of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior message of the conversation thread.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Fragment is an opaque prompt part produced from an attachment: either a
// text block or binary content with its MIME type.
type Fragment struct {
	Name string
	MIME string
	Text string
	Data []byte
	// Link is the vault embed for an attachment saved to the vault, e.g.
	// "![[photo.jpg]]". Empty when the content was not stored.
	Link string
}

// IsBinary reports whether the fragment carries raw bytes rather than text.
func (f Fragment) IsBinary() bool { return len(f.Data) > 0 }

// MessageContext is built once per inbound message and discarded after the
// handler returns.
type MessageContext struct {
	RawText     string
	Attachments []Fragment
	History     []Turn // oldest first
	// RouterData holds the classification parameters merged in by the router.
	RouterData map[string]any
}

// Result is what a handler returns.
type Result struct {
	ResponseText string `json:"response_text,omitempty"`
	FiledPath    string `json:"filed_path,omitempty"`
	TokensUsed   int    `json:"tokens_used"`
}

// Agent handles messages routed to its intent.
type Agent interface {
	// Name is the intent identifier used by the router and classifier.
	Name() string
	// Description is injected into the classification prompt.
	Description() string
	Handle(ctx context.Context, mc *MessageContext) (*Result, error)
}

// ParameterHinter is implemented by agents that want to describe the
// parameters the classifier should extract for them.
type ParameterHinter interface {
	ParameterHint() string
}

// FormatHistory renders history as labelled turns, one per line.
func FormatHistory(history []Turn) string {
	var b strings.Builder
	for _, t := range history {
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(t.Text))
		b.WriteByte('\n')
	}
	return b.String()
}
