package canon

import (
	"regexp"
	"strings"
)

// weightedPattern pairs a compiled detector with the confidence it
// contributes when it matches.
type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
}

// brokenPatterns lists FR+EN "broken / for parts" detectors. Weights
// mirror how unambiguous the phrase is on its own.
var brokenPatterns = []weightedPattern{
	{regexp.MustCompile(`(?i)\bpour\s+pi[eè]ces?\b`), 1.0},
	{regexp.MustCompile(`(?i)\bfor\s+parts\b`), 1.0},
	{regexp.MustCompile(`(?i)\bhs\b`), 1.0},
	{regexp.MustCompile(`(?i)\bhors\s+service\b`), 1.0},
	{regexp.MustCompile(`(?i)\bne\s+(s'allume|demarre|fonctionne)\s+pas\b`), 0.9},
	{regexp.MustCompile(`(?i)\bdoes\s*n[o']?t\s+(turn\s+on|work|power\s+on)\b`), 0.9},
	{regexp.MustCompile(`(?i)\bnot\s+working\b`), 0.85},
	{regexp.MustCompile(`(?i)\bbroken\b`), 0.8},
	{regexp.MustCompile(`(?i)\bcass[eé]e?\b`), 0.75},
	{regexp.MustCompile(`(?i)\bd[ée]fectueux(se)?\b`), 0.75},
	{regexp.MustCompile(`(?i)\bfaulty\b`), 0.7},
	{regexp.MustCompile(`(?i)\b[ée]cran\s+cass[eé]\b`), 0.7},
	{regexp.MustCompile(`(?i)\bcracked\s+screen\b`), 0.7},
	{regexp.MustCompile(`(?i)\bas[-\s]?is\b`), 0.5},
	{regexp.MustCompile(`(?i)\bspares?\s+or\s+repair\b`), 0.9},
	{regexp.MustCompile(`(?i)\bpanne\b`), 0.65},
}

// newConditionPatterns and usedConditionPatterns list new/used detectors; the per-family max weight
// wins, so "neuf" (1.0) beats "tres bon etat" if both match.
var newConditionPatterns = []weightedPattern{
	{regexp.MustCompile(`(?i)\bbrand\s*new\b`), 1.0},
	{regexp.MustCompile(`(?i)\bneuf\b`), 1.0},
	{regexp.MustCompile(`(?i)\bneuve\b`), 1.0},
	{regexp.MustCompile(`(?i)\bsealed\b`), 0.95},
	{regexp.MustCompile(`(?i)\bunder\s+seal\b`), 0.95},
	{regexp.MustCompile(`(?i)\bnib\b`), 0.9}, // new in box
	{regexp.MustCompile(`(?i)\bjamais\s+servi\b`), 0.9},
}

var usedConditionPatterns = []weightedPattern{
	{regexp.MustCompile(`(?i)\boccasion\b`), 0.9},
	{regexp.MustCompile(`(?i)\bused\b`), 0.85},
	{regexp.MustCompile(`(?i)\bpre[-\s]?owned\b`), 0.85},
	{regexp.MustCompile(`(?i)\bsecond\s*hand\b`), 0.8},
	{regexp.MustCompile(`(?i)\b(tres\s+)?bon\s+[ée]tat\b`), 0.75},
	{regexp.MustCompile(`(?i)\bgood\s+condition\b`), 0.7},
	{regexp.MustCompile(`(?i)\busag[ée]e?\b`), 0.7},
}

// DetectHints scans a raw title against the deterministic pattern families
// and returns the highest-weight match per family plus matched substrings.
func DetectHints(rawTitle string) Hints {
	brokenConf, brokenMatches := maxMatch(rawTitle, brokenPatterns)

	newConf, newMatches := maxMatch(rawTitle, newConditionPatterns)
	usedConf, usedMatches := maxMatch(rawTitle, usedConditionPatterns)

	conditionConf := newConf
	conditionMatches := newMatches
	if usedConf > conditionConf {
		conditionConf = usedConf
		conditionMatches = usedMatches
	}

	return Hints{
		BrokenIndicators:    brokenMatches,
		ConditionIndicators: conditionMatches,
		BrokenConfidence:    brokenConf,
		ConditionConfidence: conditionConf,
	}
}

// DetectedConditionIsNew reports whether the winning condition family was
// "new" rather than "used"; used by ResolveConditionGrade.
func DetectedConditionIsNew(rawTitle string) (isNew bool, confidence float64) {
	newConf, _ := maxMatch(rawTitle, newConditionPatterns)
	usedConf, _ := maxMatch(rawTitle, usedConditionPatterns)
	if newConf >= usedConf {
		return true, newConf
	}
	return false, usedConf
}

func maxMatch(title string, patterns []weightedPattern) (float64, []string) {
	var best float64
	var matches []string
	for _, p := range patterns {
		if m := p.re.FindString(title); m != "" {
			matches = append(matches, m)
			if p.weight > best {
				best = p.weight
			}
		}
	}
	return best, matches
}

// brandAliases collapses subnames/slang to a canonical brand.
var brandAliases = map[string]string{
	"iphone":     "Apple",
	"ipad":       "Apple",
	"macbook":    "Apple",
	"imac":       "Apple",
	"airpods":    "Apple",
	"apple watch": "Apple",
	"galaxy":     "Samsung",
	"samsung":    "Samsung",
	"vw":         "Volkswagen",
	"volkswagen": "Volkswagen",
	"pixel":      "Google",
	"playstation": "Sony",
	"ps5":        "Sony",
	"ps4":        "Sony",
	"xbox":       "Microsoft",
	"surface":    "Microsoft",
}

// NormalizeBrand maps a raw detected brand token through the alias table,
// falling back to title case when no alias applies.
func NormalizeBrand(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := brandAliases[key]; ok {
		return canonical
	}
	return titleCase(raw)
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
