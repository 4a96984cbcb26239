package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet(t *testing.T, patterns []Pattern) *Set {
	t.Helper()
	return NewSet(patterns, newTestLogger(t))
}

func TestAggregator_NpmScenario(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "npm", Enabled: true, Type: "npm", Regex: `npm ERR! (.*)`, Priority: 100},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{"npm ERR! code E404"})
	require.Len(t, errors, 1)
	assert.Equal(t, "npm", errors[0].Type)
	assert.Equal(t, "code E404", errors[0].Message)
	assert.False(t, errors[0].CreatedAt.IsZero())
}

func TestAggregator_GroupConsecutive(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100, GroupConsecutive: true},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{
		"X ERR first part",
		"some output",
		"X ERR second part",
	})
	require.Len(t, errors, 1)
	assert.Equal(t, "first part\nsecond part", errors[0].Message)
}

func TestAggregator_NoGroupingWhenFlagOff(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100, GroupConsecutive: false},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{
		"X ERR first part",
		"X ERR second part",
	})
	assert.Len(t, errors, 2)
}

func TestAggregator_NoGroupingBeyondDistance(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100, GroupConsecutive: true},
	})
	cfg := DefaultAggregatorConfig()
	cfg.GroupDistance = 2
	agg := NewAggregator(set, cfg, newTestLogger(t))

	errors := agg.Analyze([]string{
		"X ERR first part",
		"a", "b", "c",
		"X ERR second part",
	})
	assert.Len(t, errors, 2)
}

func TestAggregator_NoGroupingAcrossTypes(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100, GroupConsecutive: true},
		{Name: "y", Enabled: true, Type: "y", Regex: `Y ERR (.*)`, Priority: 100, GroupConsecutive: true},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{
		"X ERR one",
		"Y ERR two",
	})
	require.Len(t, errors, 2)
	assert.Equal(t, "x", errors[0].Type)
	assert.Equal(t, "y", errors[1].Type)
}

func TestAggregator_NearDuplicateNotAppended(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100, GroupConsecutive: true},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{
		"X ERR connection refused at host",
		"X ERR connection refused",
	})
	require.Len(t, errors, 1)
	assert.Equal(t, "connection refused at host", errors[0].Message)
}

func TestAggregator_DedupWithinPass(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100, GroupConsecutive: false},
	})
	cfg := DefaultAggregatorConfig()
	agg := NewAggregator(set, cfg, newTestLogger(t))

	errors := agg.Analyze([]string{
		"X ERR same message",
		"unrelated",
		"X ERR same message",
	})
	assert.Len(t, errors, 1)
}

func TestAggregator_ContextWidensOnMerge(t *testing.T) {
	set := testSet(t, []Pattern{
		{
			Name: "x", Enabled: true, Type: "x", Regex: `X ERR (.*)`, Priority: 100,
			GroupConsecutive: true, Context: ContextWindow{Above: 1, Below: 1},
		},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	lines := []string{
		"before",
		"X ERR one",
		"between",
		"X ERR two",
		"after",
	}
	errors := agg.Analyze(lines)
	require.Len(t, errors, 1)
	assert.Equal(t, lines, errors[0].Context)
}

func TestAggregator_FieldsPopulated(t *testing.T) {
	set := testSet(t, []Pattern{
		{
			Name: "go", Enabled: true, Type: "go",
			Regex: `^([\w./\-]+\.go):\d+:\d+:`, Priority: 100,
			Extractors: []FieldExtractor{
				{Field: "file", Regex: `^([\w./\-]+\.go):`, Group: 1},
				{Field: "line", Regex: `\.go:(\d+):`, Group: 1},
			},
		},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{"pkg/server.go:17:2: undefined: listenAddr"})
	require.Len(t, errors, 1)
	assert.Equal(t, "pkg/server.go", errors[0].File)
	assert.Equal(t, 17, errors[0].Line)
}

func TestAggregator_OutputOrderedByFirstOccurrence(t *testing.T) {
	set := testSet(t, []Pattern{
		{Name: "a", Enabled: true, Type: "a", Regex: `A ERR (.*)`, Priority: 100},
		{Name: "b", Enabled: true, Type: "b", Regex: `B ERR (.*)`, Priority: 200},
	})
	agg := NewAggregator(set, DefaultAggregatorConfig(), newTestLogger(t))

	errors := agg.Analyze([]string{
		"A ERR first",
		"B ERR second",
	})
	require.Len(t, errors, 2)
	assert.Equal(t, "a", errors[0].Type)
	assert.Equal(t, "b", errors[1].Type)
}
