package resolve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
)

// DispatcherConfig controls provider fan-out.
type DispatcherConfig struct {
	// ProviderTimeout bounds each provider call independently.
	ProviderTimeout time.Duration

	// MaxResolutions caps both each provider's spread result set and the
	// final merged list.
	MaxResolutions int
}

// DefaultDispatcherConfig returns the default dispatch configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		ProviderTimeout: 10 * time.Second,
		MaxResolutions:  5,
	}
}

// Dispatcher fans a detected error out to every registered provider
// concurrently and merges the results. A provider that fails, times out, or
// panics contributes zero resolutions and never aborts its siblings.
type Dispatcher struct {
	providers []Provider
	config    DispatcherConfig
	logger    *logger.Logger
}

// NewDispatcher creates a dispatcher over the given providers. Provider
// registration order is the tie-break order for equal confidences.
func NewDispatcher(providers []Provider, config DispatcherConfig, log *logger.Logger) *Dispatcher {
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 10 * time.Second
	}
	if config.MaxResolutions <= 0 {
		config.MaxResolutions = 5
	}
	return &Dispatcher{
		providers: providers,
		config:    config,
		logger:    log.WithFields(zap.String("component", "dispatcher")),
	}
}

// Providers returns the registered provider names in registration order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, len(d.providers))
	for i, p := range d.providers {
		names[i] = p.Name()
	}
	return names
}

// Dispatch invokes every provider concurrently, waits for all of them to
// settle, applies percentile spreading per provider, and returns the merged,
// ranked ErrorResolution.
func (d *Dispatcher) Dispatch(ctx context.Context, detected *detect.DetectedError) *ErrorResolution {
	results := make([][]Resolution, len(d.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range d.providers {
		i, p := i, p
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, d.config.ProviderTimeout)
			defer cancel()

			start := time.Now()
			resolutions, err := d.resolveSafely(callCtx, p, detected)
			if err != nil {
				// Isolated per provider: log and contribute nothing.
				d.logger.Warn("provider failed",
					zap.String("provider", p.Name()),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err))
				return nil
			}

			results[i] = SpreadConfidence(resolutions, d.config.MaxResolutions)
			d.logger.Debug("provider resolved",
				zap.String("provider", p.Name()),
				zap.Int("resolutions", len(results[i])),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		})
	}
	_ = g.Wait()

	// Concatenate in provider-registration order, then rank.
	var merged []Resolution
	for _, r := range results {
		merged = append(merged, r...)
	}

	return &ErrorResolution{
		Error:       detected,
		Resolutions: Rank(merged, d.config.MaxResolutions),
		Timestamp:   time.Now().UTC(),
	}
}

// resolveSafely calls a provider and converts a panic into an error so a
// misbehaving provider cannot take down the analysis pass.
func (d *Dispatcher) resolveSafely(ctx context.Context, p Provider, detected *detect.DetectedError) (resolutions []Resolution, err error) {
	defer func() {
		if r := recover(); r != nil {
			resolutions = nil
			err = &providerPanicError{provider: p.Name(), value: r}
		}
	}()
	return p.Resolve(ctx, detected)
}

// providerPanicError wraps a recovered provider panic.
type providerPanicError struct {
	provider string
	value    interface{}
}

func (e *providerPanicError) Error() string {
	return fmt.Sprintf("provider %s panicked: %v", e.provider, e.value)
}
