package normalize

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter estimates prompt size for AI normalizer calls so the AI
// providers can log cost-relevant token counts without round-tripping
// through each provider's own usage metering. cl100k_base is the closest
// available encoding for every provider this package talks to (OpenAI,
// Anthropic, Ollama-hosted models); it is an estimate, never billed from.
type tokenCounter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	return &tokenCounter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

var globalTokenCounter = newTokenCounter()

// estimatePromptTokens returns the encoded token count for text, or a
// char/4 estimate if the encoding can't be loaded.
func estimatePromptTokens(text string) int {
	return globalTokenCounter.count(text)
}

func (tc *tokenCounter) count(text string) int {
	enc, err := tc.getEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func (tc *tokenCounter) getEncoding(name string) (*tiktoken.Tiktoken, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if enc, ok := tc.encodings[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	tc.encodings[name] = enc
	return enc, nil
}

// logPromptSize is a one-line helper the AI providers call right before
// dispatch, so prompt cost is visible in logs without instrumenting every
// call site with the same three lines.
func logPromptSize(provider, prompt string) int {
	return estimatePromptTokens(strings.TrimSpace(prompt))
}
