package detect

import (
	"strings"
)

// Match is a single-line pattern match with extracted fields. At most one
// match is produced per line: the highest-priority matching pattern wins,
// which prevents duplicate detections of the same line under overlapping
// patterns.
type Match struct {
	Pattern    *Pattern
	Message    string
	Fields     map[string]string
	LineIndex  int
	StackTrace []string
}

// Match evaluates the pattern set against the line at index idx of lines and
// returns the first-priority match, or nil. When the winning pattern requests
// stack-trace capture, subsequent lines are scanned for trace frames.
func (s *Set) Match(lines []string, idx int, stackTraceMaxDepth int) *Match {
	line := lines[idx]

	for _, cp := range s.patterns {
		groups := cp.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}

		m := &Match{
			Pattern:   &cp.Pattern,
			Message:   primaryMessage(groups),
			Fields:    make(map[string]string),
			LineIndex: idx,
		}

		for _, ex := range cp.extractors {
			exGroups := ex.re.FindStringSubmatch(line)
			if exGroups == nil {
				continue
			}
			// An out-of-range group index skips this field.
			if ex.group < 0 || ex.group >= len(exGroups) {
				continue
			}
			m.Fields[ex.field] = exGroups[ex.group]
		}

		if cp.StackTrace != nil {
			depth := cp.StackTrace.MaxDepth
			if depth <= 0 || depth > stackTraceMaxDepth {
				depth = stackTraceMaxDepth
			}
			m.StackTrace = scanStackTrace(lines, idx+1, depth)
		}

		return m
	}

	return nil
}

// primaryMessage returns the first capture group when the pattern defines
// one, otherwise the whole match.
func primaryMessage(groups []string) string {
	if len(groups) > 1 && groups[1] != "" {
		return strings.TrimSpace(groups[1])
	}
	return strings.TrimSpace(groups[0])
}

// scanStackTrace consumes lines that look like trace frames starting at
// index start, up to maxDepth frames. Blank lines are allowed as interior
// separators; the scan stops immediately at the first non-blank line that is
// not a frame. Trailing blanks are not included.
func scanStackTrace(lines []string, start, maxDepth int) []string {
	var frames []string
	var pendingBlanks int

	for i := start; i < len(lines) && len(frames) < maxDepth; i++ {
		line := lines[i]

		if strings.TrimSpace(line) == "" {
			pendingBlanks++
			continue
		}

		if !isTraceFrame(line) {
			break
		}

		for ; pendingBlanks > 0; pendingBlanks-- {
			frames = append(frames, "")
		}
		frames = append(frames, line)
	}

	return frames
}

// isTraceFrame reports whether a line looks like a stack-trace frame in one
// of the common ecosystems: an indented "at ..." (JavaScript), "File ..."
// (Python), an indented "in ..." / "from ..." (Ruby, gcc), or a JVM
// "Caused by:" continuation.
func isTraceFrame(line string) bool {
	indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
	trimmed := strings.TrimLeft(line, " \t")

	if strings.HasPrefix(trimmed, "File ") || strings.HasPrefix(trimmed, "Caused by:") {
		return true
	}
	if !indented {
		return false
	}

	return strings.HasPrefix(trimmed, "at ") ||
		strings.HasPrefix(trimmed, "in ") ||
		strings.HasPrefix(trimmed, "from ") ||
		strings.HasPrefix(trimmed, "raise ")
}
