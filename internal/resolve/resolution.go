// Package resolve dispatches detected errors to independent resolution
// providers, merges their results, and ranks them by calibrated confidence.
package resolve

import (
	"time"

	"github.com/kapjain-rh/error-resolver/internal/detect"
)

// SourceKind identifies which provider produced a resolution.
type SourceKind string

const (
	SourceCodebase  SourceKind = "codebase"
	SourceRCA       SourceKind = "rca"
	SourceWebSearch SourceKind = "web_search"
	SourceAI        SourceKind = "ai"
)

// Resolution is one candidate fix. Confidence is 0..100 and is rewritten at
// most once, by the percentile-spreading step.
type Resolution struct {
	Source      SourceKind `json:"source"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CodeSnippet string     `json:"code_snippet,omitempty"`
	File        string     `json:"file,omitempty"`
	Line        int        `json:"line,omitempty"`
	URL         string     `json:"url,omitempty"`
	Confidence  int        `json:"confidence"`
}

// ErrorResolution is the unit returned to the caller: one detected error with
// its candidate resolutions ordered by descending confidence, ties broken by
// provider-arrival order.
type ErrorResolution struct {
	Error       *detect.DetectedError `json:"error"`
	Resolutions []Resolution          `json:"resolutions"`
	Timestamp   time.Time             `json:"timestamp"`
}
