package resolve

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kapjain-rh/error-resolver/internal/detect"
)

// Scoring constants. These are empirically tuned calibration values; they are
// deliberately not configurable.
const (
	typeNameBonus        = 40
	phraseBonus          = 30
	multiKeywordBonus    = 20
	indicatorBonus       = 10
	strongIndicatorBonus = 15
	filePathBonus        = 10
	shortDocPenalty      = 10
	shortDocThreshold    = 500
	inclusionThreshold   = 50
	confidenceCap        = 95
	sectionBonus         = 3
	spreadRange          = 45.0
)

// minKeywordLen is the shortest token kept when extracting keywords.
const minKeywordLen = 4

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "been": {},
	"were": {}, "they": {}, "their": {}, "there": {}, "which": {}, "while": {},
	"when": {}, "where": {}, "what": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "into": {}, "your": {}, "because": {}, "about": {},
	"after": {}, "before": {}, "does": {}, "doing": {}, "then": {}, "than": {},
	"them": {}, "some": {}, "such": {}, "only": {}, "also": {}, "more": {},
	"most": {}, "other": {}, "over": {}, "under": {}, "very": {},
}

// Rarity weight term lists. Product-specific terms get the strongest boost;
// common error vocabulary gets none.
var (
	productTerms = map[string]struct{}{
		"kubernetes": {}, "docker": {}, "webpack": {}, "typescript": {},
		"eslint": {}, "babel": {}, "gradle": {}, "maven": {}, "postgres": {},
		"postgresql": {}, "mysql": {}, "redis": {}, "nginx": {}, "terraform": {},
		"ansible": {}, "openshift": {}, "vite": {}, "django": {}, "flask": {},
	}
	mediumTerms = map[string]struct{}{
		"timeout": {}, "connection": {}, "module": {}, "dependency": {},
		"permission": {}, "certificate": {}, "registry": {}, "package": {},
		"version": {}, "import": {}, "syntax": {}, "undefined": {},
	}
	commonTerms = map[string]struct{}{
		"error": {}, "failed": {}, "failure": {}, "cannot": {}, "found": {},
		"file": {}, "line": {}, "command": {}, "exit": {}, "code": {},
	}
)

var (
	versionTokenRe = regexp.MustCompile(`^v?\d+(\.\d+)+$`)
	filePathLineRe = regexp.MustCompile(`[\w./\\-]+\.\w+:\d+|line \d+`)
	sectionRe      = regexp.MustCompile(`(?im)^#*\s*(solution|resolution|fix)\b`)
)

var solutionIndicators = []string{
	"fix", "solution", "resolution", "resolve", "workaround", "steps to",
}

// strongIndicators is the trio that earns the one-time extra bonus.
var strongIndicators = map[string]struct{}{
	"solution": {}, "resolution": {}, "fix": {},
}

// Keywords extracts the error's keyword set: tokens longer than 3 characters,
// lowercased, stop words removed, first occurrence order preserved, deduped.
func Keywords(detected *detect.DetectedError) []string {
	raw := detected.Message
	if detected.File != "" {
		raw += " " + detected.File
	}

	var keywords []string
	seen := make(map[string]struct{})

	for _, tok := range strings.Fields(strings.ToLower(raw)) {
		tok = strings.Trim(tok, ".,:;!?()[]{}'\"`<>")
		if len(tok) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}

// rarityWeight returns the multiplier for one keyword.
func rarityWeight(keyword string) float64 {
	if _, ok := productTerms[keyword]; ok {
		return 2.0
	}
	if versionTokenRe.MatchString(keyword) {
		return 1.8
	}
	if len(keyword) > 8 && strings.Contains(keyword, "-") {
		return 1.6
	}
	if _, ok := mediumTerms[keyword]; ok {
		return 1.3
	}
	if _, ok := commonTerms[keyword]; ok {
		return 1.0
	}
	return 1.2
}

// ScoreDocument computes the relevance score of a candidate document against
// a detected error. The score is a non-negative integer; documents scoring
// below the inclusion threshold should be discarded (see DocumentConfidence).
func ScoreDocument(docText string, detected *detect.DetectedError, keywords []string) int {
	doc := strings.ToLower(docText)
	score := 0

	if detected.Type != "" && strings.Contains(doc, strings.ToLower(detected.Type)) {
		score += typeNameBonus
	}

	// Adjacent keyword pairs found verbatim as a phrase.
	for i := 0; i+1 < len(keywords); i++ {
		if strings.Contains(doc, keywords[i]+" "+keywords[i+1]) {
			score += phraseBonus
		}
	}

	matched := 0
	for _, kw := range keywords {
		occurrences := strings.Count(doc, kw)
		if occurrences == 0 {
			continue
		}
		matched++
		extra := occurrences - 1
		if extra > 3 {
			extra = 3
		}
		score += int(math.Round(float64(15+5*extra) * rarityWeight(kw)))
	}

	if matched >= 3 {
		score += multiKeywordBonus
	}

	strongSeen := false
	for _, indicator := range solutionIndicators {
		if !strings.Contains(doc, indicator) {
			continue
		}
		score += indicatorBonus
		if _, strong := strongIndicators[indicator]; strong && !strongSeen {
			score += strongIndicatorBonus
			strongSeen = true
		}
	}

	if filePathLineRe.MatchString(doc) {
		score += filePathBonus
	}

	if len(docText) < shortDocThreshold {
		score -= shortDocPenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}

// DocumentConfidence converts a relevance score into a raw confidence value,
// or reports that the document should be excluded. A document with an
// explicit Solution/Resolution/Fix section earns a small flat bonus.
func DocumentConfidence(docText string, score int) (confidence int, included bool) {
	if score < inclusionThreshold {
		return 0, false
	}

	confidence = 50 + score/2
	if confidence > confidenceCap {
		confidence = confidenceCap
	}
	if sectionRe.MatchString(docText) {
		confidence += sectionBonus
		if confidence > confidenceCap {
			confidence = confidenceCap
		}
	}
	return confidence, true
}

// SpreadConfidence sorts one provider's result set by raw confidence
// descending (stable) and rewrites each confidence to
// min(original, round(95 - rankFraction*45)), spreading otherwise-identical
// top scores apart without ever raising a raw value. The result is truncated
// to at most max entries.
func SpreadConfidence(resolutions []Resolution, max int) []Resolution {
	if len(resolutions) == 0 {
		return resolutions
	}

	sorted := make([]Resolution, len(resolutions))
	copy(sorted, resolutions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	if n := len(sorted); n > 1 {
		for i := range sorted {
			rankFraction := float64(i) / float64(n-1)
			spread := int(math.Round(95 - rankFraction*spreadRange))
			if spread < sorted[i].Confidence {
				sorted[i].Confidence = spread
			}
		}
	}

	if max > 0 && len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// Rank merges already-spread provider results into their final order:
// descending confidence, ties broken by the existing (provider-arrival)
// order. The merged list is truncated to at most max entries.
func Rank(resolutions []Resolution, max int) []Resolution {
	ranked := make([]Resolution, len(resolutions))
	copy(ranked, resolutions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}
