package normalize

import (
	"context"
	"log/slog"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider calls Claude to produce a NormalizedProduct opinion.
// It follows the same client-construction and message shape as the
// reference service's AnthropicClient, narrowed to a single non-streaming
// call since normalization needs one JSON object, not a token stream.
type anthropicProvider struct {
	apiKey  string
	modelID string
}

func newAnthropicProvider(apiKey, modelID string) *anthropicProvider {
	if modelID == "" {
		modelID = "claude-3-5-haiku-20241022"
	}
	return &anthropicProvider{apiKey: apiKey, modelID: modelID}
}

func (p *anthropicProvider) name() string { return "anthropic" }

func (p *anthropicProvider) normalizeRaw(ctx context.Context, req Request) (*aiResponse, error) {
	if p.apiKey == "" {
		return nil, ErrAIDisabled
	}

	prompt := normalizePrompt(req)
	slog.Debug("anthropic normalizer prompt", "estimated_tokens", logPromptSize(p.name(), prompt))

	client := anthropic.NewClient(option.WithAPIKey(p.apiKey))
	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
		Model:       anthropic.Model(p.modelID),
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "API call failed", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, &ProviderError{Provider: p.name(), Message: "no content returned"}
	}

	parsed, err := parseAIResponse(text)
	if err != nil {
		slog.Warn("anthropic normalizer: unparseable response", "error", err)
		return nil, &ProviderError{Provider: p.name(), Message: "unparseable response", Err: err}
	}
	return parsed, nil
}
