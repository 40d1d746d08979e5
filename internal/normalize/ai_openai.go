package normalize

import (
	"context"
	"log/slog"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiProvider mirrors anthropicProvider using the reference service's
// OpenAIClient construction pattern (openai.NewClient + Chat.Completions.New).
type openaiProvider struct {
	apiKey  string
	modelID string
}

func newOpenAIProvider(apiKey, modelID string) *openaiProvider {
	if modelID == "" {
		modelID = "gpt-4.1-mini-2025-04-14"
	}
	return &openaiProvider{apiKey: apiKey, modelID: modelID}
}

func (p *openaiProvider) name() string { return "openai" }

func (p *openaiProvider) normalizeRaw(ctx context.Context, req Request) (*aiResponse, error) {
	if p.apiKey == "" {
		return nil, ErrAIDisabled
	}

	prompt := normalizePrompt(req)
	slog.Debug("openai normalizer prompt", "estimated_tokens", logPromptSize(p.name(), prompt))

	client := openai.NewClient(option.WithAPIKey(p.apiKey))
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(p.modelID),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "API call failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name(), Message: "no choices returned"}
	}

	text := resp.Choices[0].Message.Content
	parsed, err := parseAIResponse(text)
	if err != nil {
		slog.Warn("openai normalizer: unparseable response", "error", err)
		return nil, &ProviderError{Provider: p.name(), Message: "unparseable response", Err: err}
	}
	return parsed, nil
}
