package normalize

import "context"

// noneProvider is selected by AI_PROVIDER=none (the default); it always
// reports the AI normalizer as disabled so the composite strategy falls
// straight through to the heuristic.
type noneProvider struct{}

func (noneProvider) name() string { return "none" }

func (noneProvider) normalizeRaw(_ context.Context, _ Request) (*aiResponse, error) {
	return nil, ErrAIDisabled
}
