package normalize

import (
	"context"
	"regexp"
	"strings"

	"github.com/auctioncompare/api/internal/canon"
)

// boilerplatePatterns strip auction-listing noise (lot numbers, references,
// VAT markers) that would otherwise pollute the canonical title and query.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blot\s*n?°?\s*\d+\b`),
	regexp.MustCompile(`(?i)\bref\.?\s*:?\s*[a-z0-9-]+\b`),
	regexp.MustCompile(`(?i)\bauction\b`),
	regexp.MustCompile(`(?i)\bvente\s+aux\s+ench[eè]res\b`),
	regexp.MustCompile(`(?i)\btva\s+(r[eé]cup[eé]rable|non\s+r[eé]cup[eé]rable)\b`),
	regexp.MustCompile(`(?i)\bvat\s+(applicable|not\s+applicable)\b`),
}

var accessoryPattern = regexp.MustCompile(`(?i)\b(case|coque|charger|chargeur|strap|bracelet|cable|câble|cover|housse|sacoche)\b`)

var referencePattern = regexp.MustCompile(`\b[A-Z]{2,}\d{3,}\b`)

// yearPattern and enginePattern extract the vehicle-specific query terms
// spec.md §4.C calls for in place of capacity.
var yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)

var enginePattern = regexp.MustCompile(`(?i)\b\d\.\d\s?(?:tdi|tsi|hdi|dci|vti)?\b|\b(?:tdi|tsi|hdi|dci|diesel|essence|hybrid|[ée]lectrique|electric)\b`)

// modelPattern looks for a model token: a word followed by a one-to-four
// digit number and an optional Pro/Max/Plus/Ultra/Mini/SE suffix.
var modelPattern = regexp.MustCompile(`(?i)\b([A-Z][a-zA-Z]*\s?\d{1,4}(?:\s?(?:Pro|Max|Plus|Ultra|Mini|SE))?)\b`)

var knownBrands = []string{
	"apple", "iphone", "ipad", "macbook", "samsung", "galaxy", "sony",
	"playstation", "microsoft", "xbox", "google", "pixel", "volkswagen", "vw",
	"renault", "peugeot", "bmw", "audi", "mercedes", "toyota", "nikon", "canon",
}

const maxQueryLen = 60

// Heuristic is the deterministic normalizer described in spec.md §4.C.
// It never fails: in the worst case it returns a low-confidence Product
// built entirely from the raw title.
type Heuristic struct {
	canonicalizer *canon.Canonicalizer
}

// NewHeuristic constructs a Heuristic normalizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{canonicalizer: canon.New()}
}

// Normalize implements Provider without consulting any AI opinion.
func (h *Heuristic) Normalize(_ context.Context, req Request) (*Product, error) {
	return h.normalize(req, canon.AIOpinion{}), nil
}

// normalize is the shared implementation used both standalone and as the
// deterministic half of the composite strategy (which re-runs state
// resolution with a real AI opinion afterward).
func (h *Heuristic) normalize(req Request, ai canon.AIOpinion) *Product {
	cleaned := stripBoilerplate(req.RawTitle)

	brand := req.BrandHint
	if brand == "" {
		brand = detectBrand(cleaned)
	}

	isAccessory := accessoryPattern.MatchString(cleaned)

	model := req.ModelHint
	if model == "" {
		model = detectModel(cleaned, brand)
	}

	reference := ""
	if m := referencePattern.FindString(cleaned); m != "" {
		reference = m
	}

	category := req.CategoryHint
	if category == "" {
		category = canon.CategoryProduct
	}

	locale := req.Locale
	resolved := h.canonicalizer.Resolve(req.RawTitle, brand, model, reference, locale, ai)

	confidence := 0.3
	if resolved.Brand != "" {
		confidence += 0.2
	}
	if model != "" {
		confidence += 0.2
	}
	if reference != "" {
		confidence += 0.1
	}
	if !isAccessory {
		confidence += 0.1
	}
	if confidence > 0.8 {
		confidence = 0.8
	}

	var year, engine string
	if category == canon.CategoryVehicle {
		year = detectYear(cleaned)
		engine = detectEngine(cleaned)
	}

	query := buildQuery(resolved.Brand, model, resolved.CapacityRaw, year, engine, category)
	altQueries := buildAltQueries(resolved.Brand, model, resolved.ConditionGrade)

	return &Product{
		NormalizedTitle:     cleaned,
		Brand:               resolved.Brand,
		Model:               model,
		Reference:           reference,
		Capacity:            resolved.CapacityRaw,
		CapacityGB:          resolved.CapacityGB,
		Category:            category,
		ConditionGrade:      resolved.ConditionGrade,
		FunctionalState:     resolved.FunctionalState,
		IsAccessory:         isAccessory,
		Query:               query,
		AltQueries:          altQueries,
		Confidence:          confidence,
		ConditionConfidence: resolved.Hints.ConditionConfidence,
		Hints:               resolved.Hints,
		Signatures:          resolved.Signatures,
	}
}

func stripBoilerplate(title string) string {
	cleaned := title
	for _, p := range boilerplatePatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

func detectBrand(title string) string {
	lower := strings.ToLower(title)
	for _, b := range knownBrands {
		if strings.Contains(lower, b) {
			return canon.NormalizeBrand(b)
		}
	}
	return ""
}

func detectModel(title, brand string) string {
	m := modelPattern.FindString(title)
	if m == "" {
		return ""
	}
	if brand != "" && strings.EqualFold(strings.TrimSpace(m), brand) {
		return ""
	}
	return strings.TrimSpace(m)
}

func buildQuery(brand, model, capacity, year, engine string, category canon.Category) string {
	var parts []string
	if brand != "" {
		parts = append(parts, brand)
	}
	if model != "" {
		parts = append(parts, model)
	}
	if category == canon.CategoryVehicle {
		if year != "" {
			parts = append(parts, year)
		}
		if engine != "" {
			parts = append(parts, engine)
		}
	} else if capacity != "" {
		parts = append(parts, capacity)
	}
	query := strings.Join(parts, " ")
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}
	return strings.TrimSpace(query)
}

func detectYear(title string) string {
	return yearPattern.FindString(title)
}

func detectEngine(title string) string {
	return strings.TrimSpace(enginePattern.FindString(title))
}

func buildAltQueries(brand, model string, grade canon.ConditionGrade) []string {
	var alt []string
	if brand != "" && model != "" {
		alt = append(alt, strings.TrimSpace(brand+" "+model))
	}
	if len(alt) > 0 && grade == canon.ConditionUsed {
		alt = append(alt, strings.TrimSpace(alt[0]+" occasion"))
	}
	if len(alt) > 2 {
		alt = alt[:2]
	}
	return alt
}
