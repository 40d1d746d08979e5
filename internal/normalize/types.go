// Package normalize turns a noisy auction title into a canonical
// NormalizedProduct, merging deterministic signal extraction with an
// optional AI normalizer and caching the result.
package normalize

import (
	"context"

	"github.com/auctioncompare/api/internal/canon"
)

// Request is the input to any Provider implementation (heuristic, AI, or
// the composite that chains them).
type Request struct {
	RawTitle    string
	SiteDomain  string
	Locale      string
	BrandHint   string
	ModelHint   string
	CategoryHint canon.Category
	Hints       canon.Hints
}

// Product is the canonical descriptor produced by normalization. It mirrors
// spec.md §3.1 exactly; Signatures is always computed last, after state
// resolution, by the canonicalizer.
type Product struct {
	NormalizedTitle     string
	Brand               string
	Model               string
	Reference           string
	Capacity            string
	CapacityGB          int
	Category            canon.Category
	ConditionGrade      canon.ConditionGrade
	FunctionalState     canon.FunctionalState
	IsAccessory         bool
	Query               string
	AltQueries          []string
	Confidence          float64
	ConditionConfidence float64
	Hints               canon.Hints
	Signatures          canon.Signatures
}

// Provider is the single capability both the heuristic normalizer and the
// AI normalizer implement: produce a Product from a Request. Modeling both
// as one interface lets the composite strategy try one and fall back to
// the other without the caller knowing which ran.
type Provider interface {
	Normalize(ctx context.Context, req Request) (*Product, error)
}
