package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapjain-rh/error-resolver/internal/detect"
)

func testError(msg, errType string) *detect.DetectedError {
	return &detect.DetectedError{Message: msg, Type: errType}
}

func TestKeywords(t *testing.T) {
	e := testError("ModuleNotFoundError: No module named 'requests'", "python")
	keywords := Keywords(e)

	assert.Contains(t, keywords, "modulenotfounderror")
	assert.Contains(t, keywords, "module")
	assert.Contains(t, keywords, "named")
	assert.Contains(t, keywords, "requests")
	// "No" is too short, stripped.
	assert.NotContains(t, keywords, "no")
}

func TestKeywords_StopWordsAndDedup(t *testing.T) {
	e := testError("this error error error happened because of timeout", "generic")
	keywords := Keywords(e)

	assert.NotContains(t, keywords, "this")
	assert.NotContains(t, keywords, "because")

	count := 0
	for _, kw := range keywords {
		if kw == "error" {
			count++
		}
	}
	assert.Equal(t, 1, count, "keywords must be deduplicated")
}

func TestScoreDocument_TypeNameBonus(t *testing.T) {
	e := testError("zzqx yyqw", "npm")
	keywords := Keywords(e)

	filler := strings.Repeat("lorem ipsum dolor sit amet ", 25)
	without := ScoreDocument(filler+"nothing relevant here at all", e, keywords)
	with := ScoreDocument(filler+"this document is about npm problems", e, keywords)

	assert.Equal(t, typeNameBonus, with-without)
}

func TestScoreDocument_MonotonicInMatchedKeywords(t *testing.T) {
	e := testError("alpha bravo charlie delta", "generic")
	keywords := Keywords(e)
	require.Len(t, keywords, 4)

	filler := strings.Repeat("lorem ipsum dolor sit amet ", 25) // avoid the short-doc penalty

	prev := -1
	for n := 0; n <= len(keywords); n++ {
		doc := filler + strings.Join(keywords[:n], " zz ")
		score := ScoreDocument(doc, e, keywords)
		assert.GreaterOrEqual(t, score, prev,
			"score must be non-decreasing in matched keyword count (n=%d)", n)
		prev = score
	}
}

func TestScoreDocument_ShortDocPenalty(t *testing.T) {
	e := testError("alpha bravo", "generic")
	keywords := Keywords(e)

	shortDoc := "alpha"
	longDoc := "alpha " + strings.Repeat("x", shortDocThreshold)

	assert.Greater(t, ScoreDocument(longDoc, e, keywords), ScoreDocument(shortDoc, e, keywords))
}

func TestScoreDocument_FloorsAtZero(t *testing.T) {
	e := testError("zzqx", "zzz")
	score := ScoreDocument("tiny", e, Keywords(e))
	assert.Equal(t, 0, score)
}

func TestScoreDocument_PhraseBonus(t *testing.T) {
	e := testError("connection refused immediately", "generic")
	keywords := Keywords(e)
	require.GreaterOrEqual(t, len(keywords), 2)

	filler := strings.Repeat("pad ", 150)
	scattered := filler + "connection ... refused ... immediately"
	phrased := filler + "connection refused immediately happened"

	assert.Greater(t, ScoreDocument(phrased, e, keywords), ScoreDocument(scattered, e, keywords))
}

func TestDocumentConfidence_Threshold(t *testing.T) {
	_, included := DocumentConfidence("whatever", inclusionThreshold-1)
	assert.False(t, included)

	confidence, included := DocumentConfidence("whatever", inclusionThreshold)
	assert.True(t, included)
	assert.Equal(t, 50+inclusionThreshold/2, confidence)
}

func TestDocumentConfidence_Cap(t *testing.T) {
	confidence, included := DocumentConfidence("whatever", 1000)
	assert.True(t, included)
	assert.Equal(t, confidenceCap, confidence)
}

func TestDocumentConfidence_SectionBonus(t *testing.T) {
	plain, _ := DocumentConfidence("some document body", 60)
	withSection, _ := DocumentConfidence("## Solution\ndo the thing", 60)
	assert.Equal(t, plain+sectionBonus, withSection)
}

func TestSpreadConfidence_NeverIncreases(t *testing.T) {
	in := []Resolution{
		{Title: "a", Confidence: 80},
		{Title: "b", Confidence: 80},
		{Title: "c", Confidence: 30},
	}
	out := SpreadConfidence(in, 5)
	require.Len(t, out, 3)

	byTitle := map[string]int{}
	for _, r := range in {
		byTitle[r.Title] = r.Confidence
	}
	for _, r := range out {
		assert.LessOrEqual(t, r.Confidence, byTitle[r.Title],
			"spreading must never raise a result's raw confidence")
	}
}

func TestSpreadConfidence_TopIsHighest(t *testing.T) {
	in := []Resolution{
		{Title: "a", Confidence: 90},
		{Title: "b", Confidence: 90},
		{Title: "c", Confidence: 90},
	}
	out := SpreadConfidence(in, 5)
	require.Len(t, out, 3)

	assert.GreaterOrEqual(t, out[0].Confidence, out[1].Confidence)
	assert.GreaterOrEqual(t, out[1].Confidence, out[2].Confidence)
	// Identical raw scores must come out visually distinct.
	assert.Greater(t, out[0].Confidence, out[2].Confidence)
}

func TestSpreadConfidence_SingleResultUntouched(t *testing.T) {
	out := SpreadConfidence([]Resolution{{Title: "a", Confidence: 72}}, 5)
	require.Len(t, out, 1)
	assert.Equal(t, 72, out[0].Confidence)
}

func TestSpreadConfidence_Truncates(t *testing.T) {
	in := make([]Resolution, 9)
	for i := range in {
		in[i] = Resolution{Title: "r", Confidence: 90 - i}
	}
	out := SpreadConfidence(in, 5)
	assert.Len(t, out, 5)
}

func TestRank_StableTies(t *testing.T) {
	in := []Resolution{
		{Title: "first", Source: SourceCodebase, Confidence: 70},
		{Title: "second", Source: SourceRCA, Confidence: 70},
		{Title: "third", Source: SourceWebSearch, Confidence: 90},
	}
	out := Rank(in, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "third", out[0].Title)
	assert.Equal(t, "first", out[1].Title, "ties keep provider-arrival order")
	assert.Equal(t, "second", out[2].Title)
}
