package normalize

import (
	"context"
	"strings"
	"testing"

	"github.com/auctioncompare/api/internal/canon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic_Normalize_AppleiPhone(t *testing.T) {
	h := NewHeuristic()
	product, err := h.Normalize(context.Background(), Request{
		RawTitle:     "iPhone 13 Pro 256 Go",
		Locale:       "fr",
		SiteDomain:   "x",
		CategoryHint: canon.CategoryProduct,
	})
	require.NoError(t, err)
	assert.Equal(t, "Apple", product.Brand)
	assert.Equal(t, 256, product.CapacityGB)
	assert.Equal(t, canon.FunctionalOK, product.FunctionalState)
	assert.Equal(t, canon.ConditionUnknown, product.ConditionGrade)
}

func TestHeuristic_Normalize_BrokenOverridesEverything(t *testing.T) {
	h := NewHeuristic()
	product, err := h.Normalize(context.Background(), Request{
		RawTitle: "iPhone 12 HS pour pièces",
		Locale:   "fr",
	})
	require.NoError(t, err)
	assert.Equal(t, canon.FunctionalBroken, product.FunctionalState)
}

func TestHeuristic_Normalize_IdempotentOnCleanInput(t *testing.T) {
	h := NewHeuristic()
	first, err := h.Normalize(context.Background(), Request{RawTitle: "iPhone 13 Pro 256 Go", Locale: "fr"})
	require.NoError(t, err)

	second, err := h.Normalize(context.Background(), Request{RawTitle: first.NormalizedTitle, Locale: "fr"})
	require.NoError(t, err)

	assert.Equal(t, first.Signatures, second.Signatures)
}

func TestHeuristic_VehicleQueryUsesYearAndEngineNotCapacity(t *testing.T) {
	h := NewHeuristic()
	product, err := h.Normalize(context.Background(), Request{
		RawTitle:     "Volkswagen Golf 2015 2.0 TDI 140ch",
		CategoryHint: canon.CategoryVehicle,
	})
	require.NoError(t, err)
	assert.Contains(t, product.Query, "2015")
	assert.Contains(t, strings.ToLower(product.Query), "tdi")
}

func TestHeuristic_QueryCappedAt60Chars(t *testing.T) {
	h := NewHeuristic()
	product, err := h.Normalize(context.Background(), Request{
		RawTitle: "Apple iPhone 13 Pro Max Extremely Long Descriptive Title With Many Extra Words 256 Go",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(product.Query), 60)
}
