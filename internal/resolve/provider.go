package resolve

import (
	"context"

	"github.com/kapjain-rh/error-resolver/internal/detect"
)

// Provider is the single contract every resolution source implements.
// Resolve must respect ctx cancellation and must not block indefinitely;
// network calls, file-system search, and external AI calls all sit behind it.
type Provider interface {
	// Name identifies the provider in logs and configuration.
	Name() string

	// Resolve returns candidate resolutions for the error. An error return
	// degrades this provider to zero resolutions; it never aborts siblings.
	Resolve(ctx context.Context, detected *detect.DetectedError) ([]Resolution, error)
}
