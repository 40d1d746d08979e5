package normalize

import (
	"context"
	"log/slog"

	"github.com/auctioncompare/api/internal/canon"
)

// Composite implements Provider by trying the AI normalizer first and
// falling back to the heuristic on any error, exactly as spec.md §4.D and
// §9 ("try AI, catch any, fall back to heuristic") require. The AI is
// never allowed to skip the canonicalizer's state resolution: its opinion
// is threaded back through Heuristic.normalize so deterministic hints keep
// the final say on functional_state/condition_grade.
type Composite struct {
	heuristic *Heuristic
	ai        aiProvider
}

// NewComposite builds the AI-with-heuristic-fallback strategy for the
// configured provider.
func NewComposite(heuristic *Heuristic, provider aiProvider) *Composite {
	return &Composite{heuristic: heuristic, ai: provider}
}

// Normalize runs the heuristic's deterministic extraction (brand, model,
// reference, capacity, query) unconditionally — the AI never invents those
// fields on its own — then asks the AI for an opinion on condition grade
// and functional state, and reruns canonicalization with that opinion.
func (c *Composite) Normalize(ctx context.Context, req Request) (*Product, error) {
	aiReq := req
	aiReq.Hints = canon.DetectHints(req.RawTitle)
	ai := c.queryAI(ctx, aiReq)
	return c.heuristic.normalize(req, ai), nil
}

func (c *Composite) queryAI(ctx context.Context, req Request) canon.AIOpinion {
	raw, err := c.ai.normalizeRaw(ctx, req)
	if err != nil {
		if err != ErrAIDisabled {
			slog.Warn("AI normalizer failed, falling back to heuristic", "provider", c.ai.name(), "error", err)
		}
		return canon.AIOpinion{}
	}
	return raw.toOpinion()
}
