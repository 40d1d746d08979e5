package canon

// AIOpinion carries the subset of an AI normalizer's output that the
// deterministic resolvers need to arbitrate against.
type AIOpinion struct {
	FunctionalState FunctionalState
	ConditionGrade  ConditionGrade
	Present         bool // false when no AI opinion was obtained
}

// ResolveFunctionalState implements the deterministic-wins-on-high-
// confidence policy:
//   - brokenConfidence >= 0.8  -> broken, regardless of AI.
//   - 0.5 <= brokenConfidence < 0.8: AI says broken/unknown -> broken,
//     else unknown (safety: we are not confident it works).
//   - otherwise: AI's value if present, else ok.
func ResolveFunctionalState(brokenConfidence float64, ai AIOpinion) FunctionalState {
	switch {
	case brokenConfidence >= 0.8:
		return FunctionalBroken
	case brokenConfidence >= 0.5:
		if ai.Present && (ai.FunctionalState == FunctionalBroken || ai.FunctionalState == FunctionalUnknown) {
			return FunctionalBroken
		}
		return FunctionalUnknown
	default:
		if ai.Present && ai.FunctionalState != "" {
			return ai.FunctionalState
		}
		return FunctionalOK
	}
}

// ResolveConditionGrade uses the deterministic grade when its confidence is
// high enough, otherwise prefers a non-unknown AI opinion, otherwise falls
// back to the deterministic grade (possibly unknown).
func ResolveConditionGrade(deterministicGrade ConditionGrade, deterministicConfidence float64, ai AIOpinion) ConditionGrade {
	if deterministicConfidence >= 0.7 {
		return deterministicGrade
	}
	if ai.Present && ai.ConditionGrade != "" && ai.ConditionGrade != ConditionUnknown {
		return ai.ConditionGrade
	}
	return deterministicGrade
}

// ConditionGradeFromHints turns the winning new/used detection into a
// ConditionGrade, using ConditionUnknown when neither family matched.
func ConditionGradeFromHints(isNew bool, confidence float64) ConditionGrade {
	if confidence <= 0 {
		return ConditionUnknown
	}
	if isNew {
		return ConditionNew
	}
	return ConditionUsed
}
