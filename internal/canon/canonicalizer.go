package canon

// Canonicalizer exposes the deterministic pipeline described in spec.md
// §4.B as a single entry point the heuristic normalizer and the
// orchestrator's deterministic-skip path both call.
type Canonicalizer struct{}

// New returns a stateless Canonicalizer; it holds no fields because every
// rule is a pure function of its inputs.
func New() *Canonicalizer {
	return &Canonicalizer{}
}

// Resolved is the output of running the full deterministic + AI-arbitration
// pipeline over a raw title.
type Resolved struct {
	Hints           Hints
	Brand           string
	CapacityGB      int
	CapacityRaw     string
	FunctionalState FunctionalState
	ConditionGrade  ConditionGrade
	Signatures      Signatures
}

// Resolve runs hint detection, capacity extraction, and state resolution
// for a title, brand, and the tuple needed to key the cache. The caller
// (heuristic normalizer or orchestrator) supplies the already-extracted
// model/reference plus locale since those aren't canon's concern.
func (c *Canonicalizer) Resolve(rawTitle, brandHint, model, reference, locale string, ai AIOpinion) Resolved {
	hints := DetectHints(rawTitle)
	capacityGB, capacityRaw, _ := ExtractCapacityGB(rawTitle)

	brand := ""
	if brandHint != "" {
		brand = NormalizeBrand(brandHint)
	}

	isNew, condConfidence := DetectedConditionIsNew(rawTitle)
	deterministicGrade := ConditionGradeFromHints(isNew, condConfidence)
	// The confidence that actually won the new/used contest is hints.ConditionConfidence.
	conditionGrade := ResolveConditionGrade(deterministicGrade, hints.ConditionConfidence, ai)

	functionalState := ResolveFunctionalState(hints.BrokenConfidence, ai)

	sig := ComputeSignatures(SignatureInput{
		Brand:           brand,
		Model:           model,
		Reference:       reference,
		CapacityGB:      capacityGB,
		FunctionalState: functionalState,
		ConditionGrade:  conditionGrade,
		Locale:          locale,
	})

	return Resolved{
		Hints:           hints,
		Brand:           brand,
		CapacityGB:      capacityGB,
		CapacityRaw:     capacityRaw,
		FunctionalState: functionalState,
		ConditionGrade:  conditionGrade,
		Signatures:      sig,
	}
}
