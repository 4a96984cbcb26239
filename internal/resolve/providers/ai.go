package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

// AI sends the detected error to an external analysis endpoint and maps the
// response into resolutions. The endpoint is opaque to the core: it receives
// the error as JSON and answers with suggestions. Disabled by default.
type AI struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

// NewAI creates the AI analysis provider targeting the given endpoint.
func NewAI(endpoint string, log *logger.Logger) *AI {
	return &AI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   log.WithFields(zap.String("component", "ai-provider")),
	}
}

// Name implements resolve.Provider.
func (a *AI) Name() string { return "ai" }

type aiRequest struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	StackTrace string   `json:"stack_trace,omitempty"`
	Context    []string `json:"context,omitempty"`
}

type aiSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CodeSnippet string `json:"code_snippet,omitempty"`
	Confidence  int    `json:"confidence"`
}

type aiResponse struct {
	Suggestions []aiSuggestion `json:"suggestions"`
}

// Resolve implements resolve.Provider.
func (a *AI) Resolve(ctx context.Context, detected *detect.DetectedError) ([]resolve.Resolution, error) {
	payload, err := json.Marshal(aiRequest{
		Type:       detected.Type,
		Message:    detected.Message,
		StackTrace: detected.StackTrace,
		Context:    detected.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode AI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build AI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AI request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI endpoint returned status %d", resp.StatusCode)
	}

	var parsed aiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode AI response: %w", err)
	}

	resolutions := make([]resolve.Resolution, 0, len(parsed.Suggestions))
	for _, s := range parsed.Suggestions {
		confidence := s.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
		resolutions = append(resolutions, resolve.Resolution{
			Source:      resolve.SourceAI,
			Title:       s.Title,
			Description: s.Description,
			CodeSnippet: s.CodeSnippet,
			Confidence:  confidence,
		})
	}

	a.logger.Debug("AI analysis complete", zap.Int("suggestions", len(resolutions)))
	return resolutions, nil
}
