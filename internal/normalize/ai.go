package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/auctioncompare/api/internal/canon"
)

// ErrAIDisabled is returned by the "none" provider and by any provider
// whose API key is missing; the composite strategy treats it exactly like
// any other AI failure and falls back to the heuristic.
var ErrAIDisabled = fmt.Errorf("normalize: AI normalizer disabled")

// ProviderError carries provider context the way the reference service's
// LLM client errors do, so the composite can log which upstream failed
// without ever surfacing it to the caller (spec.md §7: AI errors are
// invisible).
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("normalize: [%s] %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// aiResponse is the wire shape an AI normalizer must emit. Only
// condition_grade and functional_state reach the resulting Product (via
// toOpinion); the other fields are parsed and not used.
type aiResponse struct {
	Brand           string  `json:"brand"`
	Model           string  `json:"model"`
	Reference       string  `json:"reference"`
	Capacity        string  `json:"capacity"`
	Category        string  `json:"category"`
	ConditionGrade  string  `json:"condition_grade"`
	FunctionalState string  `json:"functional_state"`
	IsAccessory     bool    `json:"is_accessory"`
	Confidence      float64 `json:"confidence"`
}

// normalizePrompt builds the instruction sent to every AI provider. It
// embeds the deterministic hints per spec.md §4.D so the model has the
// same signal the heuristic normalizer does, without being allowed to
// override it afterward.
func normalizePrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You normalize noisy auction-listing titles into structured product data.\n")
	b.WriteString("Output JSON only, matching exactly this shape:\n")
	b.WriteString(`{"brand":"","model":"","reference":"","capacity":"","category":"product|vehicle","condition_grade":"new|used|unknown","functional_state":"ok|broken|unknown","is_accessory":false,"confidence":0.0}`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Raw title: %q\n", req.RawTitle)
	if req.SiteDomain != "" {
		fmt.Fprintf(&b, "Site: %s\n", req.SiteDomain)
	}
	if req.Locale != "" {
		fmt.Fprintf(&b, "Locale: %s\n", req.Locale)
	}
	if req.BrandHint != "" {
		fmt.Fprintf(&b, "Brand hint: %s\n", req.BrandHint)
	}
	if req.ModelHint != "" {
		fmt.Fprintf(&b, "Model hint: %s\n", req.ModelHint)
	}
	if req.CategoryHint != "" {
		fmt.Fprintf(&b, "Category hint: %s\n", req.CategoryHint)
	}
	fmt.Fprintf(&b, "Deterministic broken confidence: %.2f, matched: %v\n", req.Hints.BrokenConfidence, req.Hints.BrokenIndicators)
	fmt.Fprintf(&b, "Deterministic condition confidence: %.2f, matched: %v\n", req.Hints.ConditionConfidence, req.Hints.ConditionIndicators)
	return b.String()
}

// parseAIResponse tolerates a fenced ```json code block around the
// payload, per spec.md §4.D's parser contract.
func parseAIResponse(raw string) (*aiResponse, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parse AI response: %w", err)
	}
	return &resp, nil
}

// toOpinion projects the raw AI response down to what the canonicalizer's
// resolvers are allowed to see; the AI never gets to set signatures,
// confidence caps, or query strings directly.
func (r *aiResponse) toOpinion() canon.AIOpinion {
	return canon.AIOpinion{
		Present:         true,
		FunctionalState: canon.FunctionalState(r.FunctionalState),
		ConditionGrade:  canon.ConditionGrade(r.ConditionGrade),
	}
}

// aiProvider is implemented by every concrete AI backend (anthropic,
// openai, ollama, none). It is deliberately narrower than Provider: it
// returns the raw AI opinion plus whatever extra fields (reference,
// capacity string, is_accessory, confidence) it extracted, and lets the
// caller (the composite) run it back through the canonicalizer so
// deterministic hints always get the final say on functional_state and
// condition_grade.
type aiProvider interface {
	name() string
	normalizeRaw(ctx context.Context, req Request) (*aiResponse, error)
}
