package ledger

import (
	"errors"
	"fmt"
	"os"
)

// ErrUnknownPack is returned when a requested packId has no catalog entry.
var ErrUnknownPack = errors.New("ledger: unknown credit pack")

// CreditPack is a static, server-trusted offer. Per spec.md §3.6, this
// registry is the sole source of credits/priceCents — webhook handlers
// never read amounts from client- or event-provided metadata.
type CreditPack struct {
	PackID      string `json:"packId"`
	Credits     int64  `json:"credits"`
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
	DisplayName string `json:"displayName"`
	Badge       string `json:"badge,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	StripePriceID string `json:"-"`
}

// packCatalog is the fixed set of purchasable packs; sizes match the
// STRIPE_PRICE_PACK_{1,5,10,30,100} env vars named in spec.md §6.5.
var packCatalog = []struct {
	packID      string
	credits     int64
	priceCents  int64
	displayName string
	badge       string
	sortOrder   int
}{
	{"pack_1", 1, 199, "Single lookup", "", 0},
	{"pack_5", 5, 799, "5-pack", "", 1},
	{"pack_10", 10, 1399, "10-pack", "popular", 2},
	{"pack_30", 30, 3499, "30-pack", "", 3},
	{"pack_100", 100, 9999, "100-pack", "best value", 4},
}

// LoadCreditPacks builds the CreditPack registry, reading each pack's
// Stripe Price ID from its STRIPE_PRICE_PACK_<n> env var. A pack with no
// configured price ID is skipped (not yet purchasable in this deployment).
func LoadCreditPacks(currency string) []CreditPack {
	packs := make([]CreditPack, 0, len(packCatalog))
	for _, p := range packCatalog {
		envVar := fmt.Sprintf("STRIPE_PRICE_PACK_%d", p.credits)
		priceID := os.Getenv(envVar)
		if priceID == "" {
			continue
		}
		packs = append(packs, CreditPack{
			PackID:        p.packID,
			Credits:       p.credits,
			PriceCents:    p.priceCents,
			Currency:      currency,
			DisplayName:   p.displayName,
			Badge:         p.badge,
			SortOrder:     p.sortOrder,
			StripePriceID: priceID,
		})
	}
	return packs
}

// Registry looks packs up by id for webhook intake.
type Registry struct {
	byID map[string]CreditPack
}

// NewRegistry indexes packs by PackID.
func NewRegistry(packs []CreditPack) *Registry {
	r := &Registry{byID: make(map[string]CreditPack, len(packs))}
	for _, p := range packs {
		r.byID[p.PackID] = p
	}
	return r
}

// Lookup returns the pack and whether it exists. Unknown pack ids must be
// rejected by the caller (spec.md §4.I step 2).
func (r *Registry) Lookup(packID string) (CreditPack, bool) {
	p, ok := r.byID[packID]
	return p, ok
}

// All returns every registered pack, sorted by SortOrder by construction.
func (r *Registry) All() []CreditPack {
	out := make([]CreditPack, 0, len(r.byID))
	for _, p := range packCatalog {
		if pack, ok := r.byID[p.packID]; ok {
			out = append(out, pack)
		}
	}
	return out
}

// ParsePackCredits looks a pack id up in the static catalog and returns
// its credit count, without touching the DB.
func ParsePackCredits(packID string) (int64, error) {
	for _, p := range packCatalog {
		if p.packID == packID {
			return p.credits, nil
		}
	}
	return 0, ErrUnknownPack
}
