// Package detect implements error detection over reassembled shell output
// lines: pattern matching, field extraction, stack-trace capture, and
// aggregation of multi-line error bursts into DetectedError records.
package detect

import (
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
)

// FieldExtractor pulls a structured field (file path, line number, ...) out of
// a matched line using its own regular expression and capture group index.
type FieldExtractor struct {
	Field string `yaml:"field"`
	Regex string `yaml:"regex"`
	Group int    `yaml:"group"`
}

// StackTraceConfig enables stack-trace capture for a pattern.
type StackTraceConfig struct {
	MaxDepth int `yaml:"maxDepth"`
}

// ContextWindow is the number of surrounding lines captured with a match.
type ContextWindow struct {
	Above int `yaml:"above"`
	Below int `yaml:"below"`
}

// Pattern is one error pattern definition. Patterns are immutable once loaded
// for a session; the active set is deduplicated by name and sorted by priority
// descending, and the first pattern that matches a line wins for that line.
type Pattern struct {
	Name             string            `yaml:"name"`
	Enabled          bool              `yaml:"enabled"`
	Type             string            `yaml:"type"`
	Regex            string            `yaml:"regex"`
	Priority         int               `yaml:"priority"`
	GroupConsecutive bool              `yaml:"groupConsecutive"`
	Context          ContextWindow     `yaml:"context"`
	StackTrace       *StackTraceConfig `yaml:"stackTrace,omitempty"`
	Extractors       []FieldExtractor  `yaml:"extractors,omitempty"`
}

// DetectedError is one logical error produced by the aggregator, possibly
// merged from several consecutive matches of the same type.
type DetectedError struct {
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	StackTrace string    `json:"stack_trace,omitempty"`
	File       string    `json:"file,omitempty"`
	Line       int       `json:"line,omitempty"`
	Context    []string  `json:"context,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Line positions of the first and last contributing match, used for
	// consecutive-match grouping and context widening.
	firstLine int
	lastLine  int
}

// compiledExtractor is a FieldExtractor with its regex compiled.
type compiledExtractor struct {
	field string
	re    *regexp.Regexp
	group int
}

// compiledPattern is a Pattern with its regexes compiled.
type compiledPattern struct {
	Pattern
	re         *regexp.Regexp
	extractors []compiledExtractor
}

// Set is the active, compiled pattern set for a session.
type Set struct {
	patterns []*compiledPattern
	logger   *logger.Logger
}

// NewSet compiles the given patterns into an active set. Disabled patterns are
// dropped. A pattern whose regex fails to compile is skipped and logged;
// detection continues with the remaining patterns. The result is sorted by
// priority descending, ties keeping list order.
func NewSet(patterns []Pattern, log *logger.Logger) *Set {
	s := &Set{logger: log.WithFields(zap.String("component", "pattern-set"))}

	for _, p := range patterns {
		if !p.Enabled {
			continue
		}

		re, err := regexp.Compile(p.Regex)
		if err != nil {
			s.logger.Warn("skipping pattern with invalid regex",
				zap.String("pattern", p.Name),
				zap.Error(err))
			continue
		}

		cp := &compiledPattern{Pattern: p, re: re}
		for _, ex := range p.Extractors {
			exRe, err := regexp.Compile(ex.Regex)
			if err != nil {
				s.logger.Warn("skipping field extractor with invalid regex",
					zap.String("pattern", p.Name),
					zap.String("field", ex.Field),
					zap.Error(err))
				continue
			}
			cp.extractors = append(cp.extractors, compiledExtractor{
				field: ex.Field,
				re:    exRe,
				group: ex.Group,
			})
		}
		s.patterns = append(s.patterns, cp)
	}

	sort.SliceStable(s.patterns, func(i, j int) bool {
		return s.patterns[i].Priority > s.patterns[j].Priority
	})

	return s
}

// Len returns the number of usable patterns in the set.
func (s *Set) Len() int {
	return len(s.patterns)
}

// Merge deduplicates patterns from multiple sources by name. Earlier sources
// win: a later pattern with a name already present is dropped.
func Merge(sources ...[]Pattern) []Pattern {
	var merged []Pattern
	seen := make(map[string]struct{})

	for _, source := range sources {
		for _, p := range source {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}
