package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

// WebSearch builds search links for the error without performing any network
// call; opening them is the presentation layer's job.
type WebSearch struct{}

// NewWebSearch creates the web-search-link provider.
func NewWebSearch() *WebSearch {
	return &WebSearch{}
}

// Name implements resolve.Provider.
func (w *WebSearch) Name() string { return "web_search" }

// Resolve implements resolve.Provider.
func (w *WebSearch) Resolve(ctx context.Context, detected *detect.DetectedError) ([]resolve.Resolution, error) {
	query := searchQuery(detected)
	if query == "" {
		return nil, nil
	}

	escaped := url.QueryEscape(query)
	return []resolve.Resolution{
		{
			Source:      resolve.SourceWebSearch,
			Title:       fmt.Sprintf("Search Stack Overflow for %q", query),
			Description: "Community answers for this error message.",
			URL:         "https://stackoverflow.com/search?q=" + escaped,
			Confidence:  55,
		},
		{
			Source:      resolve.SourceWebSearch,
			Title:       fmt.Sprintf("Search the web for %q", query),
			Description: "General web search for this error message.",
			URL:         "https://www.google.com/search?q=" + escaped,
			Confidence:  45,
		},
	}, nil
}

// searchQuery builds a compact query from the error type and the first line
// of the message.
func searchQuery(detected *detect.DetectedError) string {
	message := detected.Message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		message = message[:idx]
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}

	const maxQueryLen = 120
	query := strings.TrimSpace(detected.Type + " " + message)
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}
	return query
}
