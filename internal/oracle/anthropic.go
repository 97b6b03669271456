package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 2048

// Anthropic calls the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(apiKey, model string, maxTokens int) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	return &Anthropic{client: &client, model: model, maxTokens: maxTokens}
}

// Generate sends one user message built from the prompt and attachment parts.
// Binary parts other than images are described by name only.
func (a *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	for _, f := range req.Parts {
		switch {
		case f.IsBinary() && strings.HasPrefix(f.MIME, "image/"):
			blocks = append(blocks, anthropic.NewImageBlockBase64(f.MIME, base64.StdEncoding.EncodeToString(f.Data)))
		case f.IsBinary():
			blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("[attachment %s (%s) not shown]", f.Name, f.MIME)))
		case f.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(f.Text))
		}
	}

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(pickMaxTokens(req.MaxTokens, a.maxTokens)),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	return &Response{
		Text:       text.String(),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}
