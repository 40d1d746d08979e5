// Package relevance filters and scores comparable listings and derives the
// market statistics, confidence, and verdict the compare orchestrator
// returns to the caller.
package relevance

import (
	"sort"

	"github.com/auctioncompare/api/internal/canon"
	"github.com/auctioncompare/api/internal/shopping"
)

const (
	productThreshold    = 0.25
	vehicleThreshold    = 0.15
	fallbackThreshold   = 0.05
	vehicleSanityFactor = 0.2
	maxSurvivors        = 10
)

// Filter drops irrelevant results per spec.md §4.G: a category-specific
// relevance floor, an additional price-sanity floor for vehicles, and a
// cap of the top 10 by relevance. If nothing survives the primary
// threshold, it retries once at the 0.05 fallback threshold.
func Filter(results []shopping.Result, category canon.Category, auctionPriceCents int64) []shopping.Result {
	threshold := productThreshold
	if category == canon.CategoryVehicle {
		threshold = vehicleThreshold
	}

	survivors := filterAt(results, category, auctionPriceCents, threshold)
	if len(survivors) == 0 {
		survivors = filterAt(results, category, auctionPriceCents, fallbackThreshold)
	}
	return survivors
}

func filterAt(results []shopping.Result, category canon.Category, auctionPriceCents int64, threshold float64) []shopping.Result {
	var kept []shopping.Result
	for _, r := range results {
		if r.Relevance < threshold {
			continue
		}
		if category == canon.CategoryVehicle && auctionPriceCents > 0 {
			if float64(r.PriceCents) < vehicleSanityFactor*float64(auctionPriceCents) {
				continue
			}
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Relevance > kept[j].Relevance })
	if len(kept) > maxSurvivors {
		kept = kept[:maxSurvivors]
	}
	return kept
}

// Stats summarizes the surviving results' prices.
type Stats struct {
	MinCents     int64
	MedianCents  int64
	MaxCents     int64
	AverageCents int64
	Count        int
}

// ComputeStats computes min/median/max/average/count over survivors.
// Survivors is assumed non-empty; callers treat an empty slice as NO_RESULTS
// before reaching this function.
func ComputeStats(survivors []shopping.Result) Stats {
	prices := make([]int64, len(survivors))
	var sum int64
	for i, r := range survivors {
		prices[i] = r.PriceCents
		sum += r.PriceCents
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

	return Stats{
		MinCents:     prices[0],
		MedianCents:  median(prices),
		MaxCents:     prices[len(prices)-1],
		AverageCents: sum / int64(len(prices)),
		Count:        len(prices),
	}
}

func median(sorted []int64) int64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Confidence is the qualitative reliability of Stats.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ComputeConfidence implements spec.md §4.G's monotonicity contract
// (high >= medium >= low as relevant data is added): at least 8 results
// with a tight interquartile spread is high, at least 4 is medium,
// otherwise low.
func ComputeConfidence(survivors []shopping.Result, stats Stats) Confidence {
	if stats.Count >= 8 && iqrIsTight(survivors) {
		return ConfidenceHigh
	}
	if stats.Count >= 4 {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// iqrIsTight reports whether the interquartile range is small relative to
// the median, a simple dispersion check that does not require a full
// statistics library.
func iqrIsTight(survivors []shopping.Result) bool {
	prices := make([]int64, len(survivors))
	for i, r := range survivors {
		prices[i] = r.PriceCents
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

	n := len(prices)
	q1 := prices[n/4]
	q3 := prices[(3*n)/4]
	med := median(prices)
	if med == 0 {
		return false
	}
	iqr := float64(q3 - q1)
	return iqr/float64(med) <= 0.5
}

// Verdict is the auction-price-versus-market-stats comparison.
type Verdict string

const (
	VerdictWorthIt     Verdict = "worth_it"
	VerdictNotWorthIt  Verdict = "not_worth_it"
	VerdictBorderline  Verdict = "borderline"
)

// ComputeVerdict compares auctionPriceCents against stats using a margin
// threshold (0..1, e.g. 0.10 for 10%): worth_it if the auction price is at
// or below min*(1-margin), not_worth_it if it's at or above the median,
// borderline otherwise. This is a pure function of its three inputs per
// spec.md §8 testable property 8.
func ComputeVerdict(auctionPriceCents int64, stats Stats, marginThreshold float64) Verdict {
	worthItCeiling := float64(stats.MinCents) * (1 - marginThreshold)
	switch {
	case float64(auctionPriceCents) <= worthItCeiling:
		return VerdictWorthIt
	case auctionPriceCents >= stats.MedianCents:
		return VerdictNotWorthIt
	default:
		return VerdictBorderline
	}
}
