package normalize

import "testing"

func TestEstimatePromptTokens_NonEmptyTextCountsAboveZero(t *testing.T) {
	n := estimatePromptTokens("a noisy auction title needing normalization")
	if n <= 0 {
		t.Fatalf("expected positive token count, got %d", n)
	}
}

func TestEstimatePromptTokens_LongerTextCountsMore(t *testing.T) {
	short := estimatePromptTokens("iphone 12")
	long := estimatePromptTokens("apple iphone 12 pro max 256gb unlocked excellent condition with box and charger")
	if long <= short {
		t.Fatalf("expected longer text to produce more tokens: short=%d long=%d", short, long)
	}
}
