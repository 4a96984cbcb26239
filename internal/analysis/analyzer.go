// Package analysis runs the debounced detection pipeline for a session:
// output bursts are collected, matched against the pattern set, aggregated
// into detected errors, and fanned out to the resolution providers.
package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

// Notifier receives the ranked resolution for each detected error.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, er *resolve.ErrorResolution) bool
}

// Config controls the per-session analysis loop.
type Config struct {
	DebounceDelay time.Duration
	Aggregator    detect.AggregatorConfig
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 500 * time.Millisecond,
		Aggregator:    detect.DefaultAggregatorConfig(),
	}
}

// Analyzer owns one session's debounce timer and analysis passes. Each output
// burst restarts the timer; a pass runs only when the timer fires
// uninterrupted. At most one pass is in flight: lines arriving during a pass
// fold into the next debounce window so detected-error ordering stays stable.
type Analyzer struct {
	sessionID  string
	logger     *logger.Logger
	aggregator *detect.Aggregator
	dispatcher *resolve.Dispatcher
	notifier   Notifier
	debounce   time.Duration

	mu       sync.Mutex
	pending  []string
	timer    *time.Timer
	inFlight bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalyzer creates an analyzer for one session.
func NewAnalyzer(sessionID string, set *detect.Set, cfg Config, dispatcher *resolve.Dispatcher, notifier Notifier, log *logger.Logger) *Analyzer {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Analyzer{
		sessionID:  sessionID,
		logger:     log.WithSessionID(sessionID).WithFields(zap.String("component", "analyzer")),
		aggregator: detect.NewAggregator(set, cfg.Aggregator, log),
		dispatcher: dispatcher,
		notifier:   notifier,
		debounce:   cfg.DebounceDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddLine queues one output line and restarts the debounce timer.
func (a *Analyzer) AddLine(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = append(a.pending, line)
	a.restartTimerLocked(a.debounce)
}

// AnalyzeNow queues lines and schedules an immediate pass, used for the
// post-hoc screen dump when leaving passthrough mode.
func (a *Analyzer) AnalyzeNow(lines []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || len(lines) == 0 {
		return
	}
	a.pending = append(a.pending, lines...)
	a.restartTimerLocked(0)
}

// restartTimerLocked (re)arms the debounce timer. Called with mu held.
func (a *Analyzer) restartTimerLocked(delay time.Duration) {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(delay, a.firePass)
}

func (a *Analyzer) firePass() {
	a.mu.Lock()
	if a.closed || len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	if a.inFlight {
		// Fold into the next window rather than run concurrently.
		a.restartTimerLocked(a.debounce)
		a.mu.Unlock()
		return
	}
	lines := a.pending
	a.pending = nil
	a.inFlight = true
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runPass(lines)

		a.mu.Lock()
		a.inFlight = false
		if !a.closed && len(a.pending) > 0 {
			a.restartTimerLocked(a.debounce)
		}
		a.mu.Unlock()
	}()
}

// runPass executes one full analysis pass over a burst of lines.
func (a *Analyzer) runPass(lines []string) {
	detected := a.aggregator.Analyze(lines)
	if len(detected) == 0 {
		return
	}
	a.logger.Debug("analysis pass detected errors",
		zap.Int("lines", len(lines)), zap.Int("errors", len(detected)))

	for _, d := range detected {
		if a.ctx.Err() != nil {
			return
		}
		er := a.dispatcher.Dispatch(a.ctx, d)
		if a.ctx.Err() != nil {
			// Torn down mid-dispatch: nothing may be delivered.
			return
		}
		a.notifier.Notify(a.ctx, a.sessionID, er)
	}
}

// Close cancels the debounce timer and any in-flight provider calls. No
// notification is delivered after Close returns.
func (a *Analyzer) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = nil
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}
