package providers

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

// snippetRe pulls the first fenced code block out of a document body.
var snippetRe = regexp.MustCompile("(?s)```[a-zA-Z]*\n(.*?)```")

// RCA scores curated root-cause-analysis documents against the error's
// keyword set and returns the ones that clear the inclusion threshold.
type RCA struct {
	store  *RCAStore
	logger *logger.Logger
}

// NewRCA creates the knowledge-base provider over the given store.
func NewRCA(store *RCAStore, log *logger.Logger) *RCA {
	return &RCA{
		store:  store,
		logger: log.WithFields(zap.String("component", "rca-provider")),
	}
}

// Name implements resolve.Provider.
func (r *RCA) Name() string { return "rca" }

// Resolve implements resolve.Provider.
func (r *RCA) Resolve(ctx context.Context, detected *detect.DetectedError) ([]resolve.Resolution, error) {
	docs, err := r.store.Candidates(ctx, detected.Type)
	if err != nil {
		return nil, err
	}

	keywords := resolve.Keywords(detected)

	var resolutions []resolve.Resolution
	for _, doc := range docs {
		text := doc.Title + "\n" + doc.Body
		score := resolve.ScoreDocument(text, detected, keywords)

		confidence, included := resolve.DocumentConfidence(text, score)
		if !included {
			continue
		}

		r.logger.Debug("RCA document matched",
			zap.String("document", doc.ID),
			zap.Int("score", score),
			zap.Int("confidence", confidence))

		resolutions = append(resolutions, resolve.Resolution{
			Source:      resolve.SourceRCA,
			Title:       doc.Title,
			Description: summarize(doc.Body),
			CodeSnippet: extractSnippet(doc.Body),
			URL:         doc.URL,
			Confidence:  confidence,
		})
	}

	return resolutions, nil
}

// summarize returns the leading prose of a document body, bounded for display.
func summarize(body string) string {
	const maxLen = 400

	body = strings.TrimSpace(body)
	if idx := strings.Index(body, "```"); idx > 0 {
		body = strings.TrimSpace(body[:idx])
	}
	if len(body) > maxLen {
		body = body[:maxLen] + "..."
	}
	return body
}

// extractSnippet returns the first fenced code block, if any.
func extractSnippet(body string) string {
	m := snippetRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
