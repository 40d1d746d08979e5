package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectHints_Broken(t *testing.T) {
	h := DetectHints("iPhone 12 HS pour pièces")
	assert.Equal(t, 1.0, h.BrokenConfidence)
}

func TestResolveFunctionalState_HighConfidenceOverridesAI(t *testing.T) {
	got := ResolveFunctionalState(1.0, AIOpinion{Present: true, FunctionalState: FunctionalOK})
	assert.Equal(t, FunctionalBroken, got)
}

func TestResolveFunctionalState_MidConfidenceSafety(t *testing.T) {
	got := ResolveFunctionalState(0.6, AIOpinion{Present: true, FunctionalState: FunctionalOK})
	assert.Equal(t, FunctionalUnknown, got)

	got2 := ResolveFunctionalState(0.6, AIOpinion{Present: true, FunctionalState: FunctionalBroken})
	assert.Equal(t, FunctionalBroken, got2)
}

func TestResolveFunctionalState_LowConfidenceUsesAIOrOK(t *testing.T) {
	got := ResolveFunctionalState(0.1, AIOpinion{})
	assert.Equal(t, FunctionalOK, got)

	got2 := ResolveFunctionalState(0.1, AIOpinion{Present: true, FunctionalState: FunctionalBroken})
	assert.Equal(t, FunctionalBroken, got2)
}

func TestExtractCapacityGB(t *testing.T) {
	cases := []struct {
		title string
		gb    int
		ok    bool
	}{
		{"iPhone 13 Pro 256 Go", 256, true},
		{"MacBook Pro 2TB", 2048, true},
		{"Disque dur 1 To", 1024, true},
		{"Galaxy S21 128GB", 128, true},
		{"PlayStation 5 825", 0, false},
	}
	for _, tc := range cases {
		gb, _, ok := ExtractCapacityGB(tc.title)
		assert.Equal(t, tc.ok, ok, tc.title)
		if ok {
			assert.Equal(t, tc.gb, gb, tc.title)
		}
	}
}

func TestComputeSignatures_PureFunctionOfTuple(t *testing.T) {
	a := ComputeSignatures(SignatureInput{
		Brand: "Apple", Model: "iPhone 13 Pro", CapacityGB: 256,
		FunctionalState: FunctionalOK, ConditionGrade: ConditionUnknown, Locale: "fr",
	})
	b := ComputeSignatures(SignatureInput{
		Brand: " APPLE ", Model: "IPHONE 13 PRO", CapacityGB: 256,
		FunctionalState: FunctionalOK, ConditionGrade: ConditionUnknown, Locale: "FR",
	})
	assert.Equal(t, a.Strict, b.Strict)
	assert.Equal(t, a.Loose, b.Loose)
	assert.Len(t, a.Strict, 32)
	assert.Len(t, a.Loose, 32)
}

func TestComputeSignatures_ConditionChangesStrictNotLoose(t *testing.T) {
	newGrade := ComputeSignatures(SignatureInput{
		Brand: "Apple", Model: "iPhone 13 Pro", CapacityGB: 256,
		FunctionalState: FunctionalOK, ConditionGrade: ConditionNew, Locale: "fr",
	})
	unknownGrade := ComputeSignatures(SignatureInput{
		Brand: "Apple", Model: "iPhone 13 Pro", CapacityGB: 256,
		FunctionalState: FunctionalOK, ConditionGrade: ConditionUnknown, Locale: "fr",
	})
	assert.NotEqual(t, newGrade.Strict, unknownGrade.Strict)
	assert.Equal(t, newGrade.Loose, unknownGrade.Loose)
}

func TestComputeSignatures_BrokenChangesSignature(t *testing.T) {
	broken := ComputeSignatures(SignatureInput{
		Brand: "Apple", Model: "iPhone 12", FunctionalState: FunctionalBroken, ConditionGrade: ConditionUnknown, Locale: "fr",
	})
	ok := ComputeSignatures(SignatureInput{
		Brand: "Apple", Model: "iPhone 12", FunctionalState: FunctionalOK, ConditionGrade: ConditionUnknown, Locale: "fr",
	})
	assert.NotEqual(t, broken.Strict, ok.Strict)
	assert.NotEqual(t, broken.Loose, ok.Loose)
}

func TestNormalizeBrand_Aliases(t *testing.T) {
	assert.Equal(t, "Apple", NormalizeBrand("iphone"))
	assert.Equal(t, "Samsung", NormalizeBrand("Galaxy"))
	assert.Equal(t, "Volkswagen", NormalizeBrand("VW"))
	assert.Equal(t, "Nikon", NormalizeBrand("nikon"))
}
