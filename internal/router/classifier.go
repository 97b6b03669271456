// Package router classifies inbound messages into registered intents and
// dispatches them to the matching agent.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/oracle"
)

// DefaultClassifyTimeout bounds a classification call when none is configured.
const DefaultClassifyTimeout = 20 * time.Second

const classifyMaxTokens = 512

// Decision is the classification outcome. An empty Intent means unresolved.
type Decision struct {
	Intent     string
	Parameters map[string]any
}

// Resolved reports whether the decision names an intent.
func (d Decision) Resolved() bool { return d.Intent != "" }

// Input is everything the classifier needs to know about a message.
type Input struct {
	Text           string
	History        []agent.Turn
	HasAttachments bool
	Candidates     []agent.Descriptor
	Projects       []string
	Folders        []string
}

// Classifier asks an oracle which intent a message belongs to.
type Classifier struct {
	oracle  oracle.Oracle
	timeout time.Duration
}

// NewClassifier creates a Classifier. A non-positive timeout selects
// DefaultClassifyTimeout.
func NewClassifier(o oracle.Oracle, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	return &Classifier{oracle: o, timeout: timeout}
}

// Classify returns a resolved decision, or an unresolved one together with an
// error wrapping apperr.ErrOracleTransport, apperr.ErrOracleRequest or
// apperr.ErrUnresolved.
func (c *Classifier) Classify(ctx context.Context, in Input) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.oracle.Generate(ctx, oracle.Request{
		System:    classifySystem,
		Prompt:    buildPrompt(in),
		JSON:      true,
		MaxTokens: classifyMaxTokens,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("router: classify: %w", oracle.Classify(err))
	}

	d, err := parseDecision(resp.Text)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: router: classify: %w", apperr.ErrOracleRequest, err)
	}
	if d.Intent == "" {
		return Decision{Parameters: d.Parameters}, fmt.Errorf("%w: router: no intent in response", apperr.ErrUnresolved)
	}
	for _, cand := range in.Candidates {
		if strings.EqualFold(cand.Name, d.Intent) {
			d.Intent = cand.Name
			return d, nil
		}
	}
	return Decision{Parameters: d.Parameters}, fmt.Errorf("%w: router: unknown intent %q", apperr.ErrUnresolved, d.Intent)
}

const classifySystem = `You are the router of a personal knowledge-base assistant. ` +
	`Decide which single agent should handle the user's latest message and extract the parameters that agent needs.`

func buildPrompt(in Input) string {
	var b strings.Builder

	if len(in.History) > 0 {
		b.WriteString("## Conversation so far\n")
		b.WriteString(agent.FormatHistory(in.History))
		b.WriteString("\n")
	}

	b.WriteString("## Latest message\n")
	b.WriteString("User: ")
	b.WriteString(strings.TrimSpace(in.Text))
	b.WriteString("\n")
	if in.HasAttachments {
		b.WriteString("(The message includes attachments.)\n")
	}

	b.WriteString("\n## Agents\n")
	for _, cand := range in.Candidates {
		fmt.Fprintf(&b, "- %s: %s\n", cand.Name, cand.Description)
		if cand.Hint != "" {
			fmt.Fprintf(&b, "  parameters: %s\n", cand.Hint)
		}
	}

	if len(in.Folders) > 0 {
		fmt.Fprintf(&b, "\nVault folders: %s\n", strings.Join(in.Folders, ", "))
	}
	if len(in.Projects) > 0 {
		fmt.Fprintf(&b, "Existing projects: %s\n", strings.Join(in.Projects, ", "))
	}

	b.WriteString("\nRespond with JSON only, in the form " +
		`{"intent": "<agent name>", "parameters": {...}}` +
		". Use an empty parameters object when the agent needs none.\n")
	return b.String()
}

type rawDecision struct {
	Intent     string         `json:"intent"`
	Parameters map[string]any `json:"parameters"`
}

// parseDecision extracts the JSON object from text, tolerating Markdown code
// fences and surrounding prose.
func parseDecision(text string) (Decision, error) {
	obj, err := oracle.ExtractJSON(text)
	if err != nil {
		return Decision{}, err
	}
	var raw rawDecision
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	if raw.Parameters == nil {
		raw.Parameters = map[string]any{}
	}
	return Decision{
		Intent:     strings.ToLower(strings.TrimSpace(raw.Intent)),
		Parameters: raw.Parameters,
	}, nil
}
