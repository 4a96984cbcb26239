package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/events/bus"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "debug",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func moduleNotFound() *resolve.ErrorResolution {
	return &resolve.ErrorResolution{
		Error: &detect.DetectedError{
			Type:    "python",
			Message: "ModuleNotFoundError: No module named 'x'",
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestNotifier_DedupWithinWindow(t *testing.T) {
	n := NewNotifier(nil, 5*time.Minute, newTestLogger(t))

	current := time.Now()
	n.now = func() time.Time { return current }

	assert.True(t, n.Notify(context.Background(), "s1", moduleNotFound()))

	// Identical error inside the window: suppressed.
	current = current.Add(time.Minute)
	assert.False(t, n.Notify(context.Background(), "s1", moduleNotFound()))

	// After the window expires the entry is evicted and notifies again.
	current = current.Add(5 * time.Minute)
	assert.True(t, n.Notify(context.Background(), "s1", moduleNotFound()))
}

func TestNotifier_DifferentErrorsNotDeduped(t *testing.T) {
	n := NewNotifier(nil, 5*time.Minute, newTestLogger(t))

	assert.True(t, n.Notify(context.Background(), "s1", moduleNotFound()))

	other := moduleNotFound()
	other.Error.Message = "ModuleNotFoundError: No module named 'y'"
	assert.True(t, n.Notify(context.Background(), "s1", other))
}

func TestNotifier_PublishesToBus(t *testing.T) {
	memBus := bus.NewMemoryEventBus(newTestLogger(t))
	defer memBus.Close()

	var published atomic.Int64
	_, err := memBus.Subscribe(bus.SubjectErrorResolved, func(ctx context.Context, ev *bus.Event) error {
		published.Add(1)
		return nil
	})
	require.NoError(t, err)

	n := NewNotifier(memBus, 5*time.Minute, newTestLogger(t))
	require.True(t, n.Notify(context.Background(), "s1", moduleNotFound()))

	assert.Eventually(t, func() bool {
		return published.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifier_RecentNewestFirst(t *testing.T) {
	n := NewNotifier(nil, 5*time.Minute, newTestLogger(t))

	first := moduleNotFound()
	second := moduleNotFound()
	second.Error.Message = "different"

	n.Notify(context.Background(), "s1", first)
	n.Notify(context.Background(), "s1", second)

	recent := n.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "different", recent[0].Error.Message)

	assert.Len(t, n.Recent(1), 1)
}
