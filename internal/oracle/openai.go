package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(apiKey, model string, maxTokens int) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{client: &client, model: model, maxTokens: maxTokens}
}

// Generate sends the prompt with attachment parts as a multi-part user message.
func (o *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(req.Prompt)}
	for _, f := range req.Parts {
		switch {
		case f.IsBinary() && strings.HasPrefix(f.MIME, "image/"):
			url := "data:" + f.MIME + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		case f.IsBinary():
			parts = append(parts, openai.TextContentPart(fmt.Sprintf("[attachment %s (%s) not shown]", f.Name, f.MIME)))
		case f.Text != "":
			parts = append(parts, openai.TextContentPart(f.Text))
		}
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(parts))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: msgs,
	}
	if n := pickMaxTokens(req.MaxTokens, o.maxTokens); n > 0 {
		params.MaxCompletionTokens = openai.Int(int64(n))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	return &Response{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}
