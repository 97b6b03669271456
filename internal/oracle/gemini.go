package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API through google.golang.org/genai.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini creates a Gemini client for the given API key and model.
func NewGemini(ctx context.Context, apiKey, model string, maxTokens int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle: gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, maxTokens: maxTokens}, nil
}

// Generate sends the prompt and any attachment parts as one user turn.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, f := range req.Parts {
		if f.IsBinary() {
			parts = append(parts, genai.NewPartFromBytes(f.Data, f.MIME))
			continue
		}
		if f.Text != "" {
			parts = append(parts, genai.NewPartFromText(f.Text))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if n := pickMaxTokens(req.MaxTokens, g.maxTokens); n > 0 {
		cfg.MaxOutputTokens = int32(n)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	out := &Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func pickMaxTokens(req, def int) int {
	if req > 0 {
		return req
	}
	return def
}
