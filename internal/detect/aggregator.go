package detect

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
)

// dedupPrefixLen bounds the message prefix used as the in-pass dedup key.
const dedupPrefixLen = 50

// AggregatorConfig controls grouping and context capture.
type AggregatorConfig struct {
	// GroupDistance is the maximum line distance between two matches of the
	// same type for them to merge into one error.
	GroupDistance int

	// ContextAbove/ContextBelow are fallback context window sizes for
	// patterns that do not define their own.
	ContextAbove int
	ContextBelow int

	// StackTraceMaxDepth caps stack-trace capture regardless of what a
	// pattern asks for.
	StackTraceMaxDepth int
}

// DefaultAggregatorConfig returns the default aggregation configuration.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		GroupDistance:      3,
		ContextAbove:       2,
		ContextBelow:       2,
		StackTraceMaxDepth: 20,
	}
}

// Aggregator runs the pattern set over one analysis pass (a debounced output
// burst) and emits DetectedError records: consecutive matches of the same
// type are grouped, repeats within the pass are deduplicated.
type Aggregator struct {
	set    *Set
	config AggregatorConfig
	logger *logger.Logger
}

// NewAggregator creates an aggregator over the given active pattern set.
func NewAggregator(set *Set, config AggregatorConfig, log *logger.Logger) *Aggregator {
	if config.GroupDistance <= 0 {
		config.GroupDistance = 3
	}
	if config.StackTraceMaxDepth <= 0 {
		config.StackTraceMaxDepth = 20
	}
	return &Aggregator{
		set:    set,
		config: config,
		logger: log.WithFields(zap.String("component", "aggregator")),
	}
}

// Analyze runs one analysis pass over the batch of lines and returns the
// detected errors in line order of first occurrence.
func (a *Aggregator) Analyze(lines []string) []*DetectedError {
	var errors []*DetectedError
	seen := make(map[string]struct{})

	for i := range lines {
		m := a.set.Match(lines, i, a.config.StackTraceMaxDepth)
		if m == nil {
			continue
		}

		// Group into the previous error when the pattern allows it, the
		// types match, and the lines are close enough.
		if len(errors) > 0 && m.Pattern.GroupConsecutive {
			prev := errors[len(errors)-1]
			if prev.Type == m.Pattern.Type && i-prev.lastLine <= a.config.GroupDistance {
				a.mergeInto(prev, m, lines)
				continue
			}
		}

		key := dedupKey(m.Pattern.Type, m.Message)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		errors = append(errors, a.newError(m, lines))
	}

	if len(errors) > 0 {
		a.logger.Debug("analysis pass complete",
			zap.Int("lines", len(lines)),
			zap.Int("errors", len(errors)))
	}

	return errors
}

// newError builds a DetectedError from a single match.
func (a *Aggregator) newError(m *Match, lines []string) *DetectedError {
	e := &DetectedError{
		Message:   m.Message,
		Type:      m.Pattern.Type,
		Context:   a.contextFor(m.Pattern, lines, m.LineIndex, m.LineIndex),
		CreatedAt: time.Now().UTC(),
		firstLine: m.LineIndex,
		lastLine:  m.LineIndex,
	}

	if len(m.StackTrace) > 0 {
		e.StackTrace = strings.Join(m.StackTrace, "\n")
	}
	if file, ok := m.Fields["file"]; ok {
		e.File = file
	}
	if lineStr, ok := m.Fields["line"]; ok {
		if n, err := strconv.Atoi(lineStr); err == nil {
			e.Line = n
		}
	}

	return e
}

// mergeInto merges a grouped match into the preceding error: the context
// window widens to cover both line positions and the message is appended
// unless it is a near-duplicate of what is already there.
func (a *Aggregator) mergeInto(prev *DetectedError, m *Match, lines []string) {
	prev.lastLine = m.LineIndex
	prev.Context = a.contextFor(m.Pattern, lines, prev.firstLine, prev.lastLine)

	if !nearDuplicate(prev.Message, m.Message) {
		prev.Message = prev.Message + "\n" + m.Message
	}

	if prev.StackTrace == "" && len(m.StackTrace) > 0 {
		prev.StackTrace = strings.Join(m.StackTrace, "\n")
	}
	if prev.File == "" {
		if file, ok := m.Fields["file"]; ok {
			prev.File = file
		}
	}
	if prev.Line == 0 {
		if lineStr, ok := m.Fields["line"]; ok {
			if n, err := strconv.Atoi(lineStr); err == nil {
				prev.Line = n
			}
		}
	}
}

// contextFor returns the context lines surrounding [first, last], using the
// pattern's window when it defines one.
func (a *Aggregator) contextFor(p *Pattern, lines []string, first, last int) []string {
	above := p.Context.Above
	below := p.Context.Below
	if above == 0 && below == 0 {
		above = a.config.ContextAbove
		below = a.config.ContextBelow
	}

	start := first - above
	if start < 0 {
		start = 0
	}
	end := last + below + 1
	if end > len(lines) {
		end = len(lines)
	}

	ctx := make([]string, end-start)
	copy(ctx, lines[start:end])
	return ctx
}

// dedupKey builds the in-pass deduplication key from the error type and a
// bounded message prefix.
func dedupKey(errType, message string) string {
	prefix := message
	if len(prefix) > dedupPrefixLen {
		prefix = prefix[:dedupPrefixLen]
	}
	return errType + "\x00" + prefix
}

// nearDuplicate reports whether one message is a whitespace-trimmed prefix of
// the other, which is how repeated lines of the same dump look.
func nearDuplicate(existing, incoming string) bool {
	a := strings.TrimSpace(existing)
	b := strings.TrimSpace(incoming)
	if a == "" || b == "" {
		return true
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
