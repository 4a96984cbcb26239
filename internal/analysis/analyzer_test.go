package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
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

type recordingNotifier struct {
	mu       sync.Mutex
	received []*resolve.ErrorResolution
}

func (n *recordingNotifier) Notify(ctx context.Context, sessionID string, er *resolve.ErrorResolution) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, er)
	return true
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.received)
}

func (n *recordingNotifier) last() *resolve.ErrorResolution {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.received) == 0 {
		return nil
	}
	return n.received[len(n.received)-1]
}

type fixedProvider struct {
	resolutions []resolve.Resolution
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Resolve(ctx context.Context, d *detect.DetectedError) ([]resolve.Resolution, error) {
	return p.resolutions, nil
}

func npmSet(t *testing.T) *detect.Set {
	return detect.NewSet([]detect.Pattern{{
		Name:     "npm-error",
		Enabled:  true,
		Type:     "npm",
		Regex:    `npm ERR! (.*)`,
		Priority: 100,
	}}, newTestLogger(t))
}

func newTestAnalyzer(t *testing.T, debounce time.Duration, notifier Notifier) *Analyzer {
	cfg := DefaultConfig()
	cfg.DebounceDelay = debounce

	dispatcher := resolve.NewDispatcher([]resolve.Provider{
		&fixedProvider{resolutions: []resolve.Resolution{{Title: "try again", Confidence: 60}}},
	}, resolve.DefaultDispatcherConfig(), newTestLogger(t))

	a := NewAnalyzer("test-session", npmSet(t), cfg, dispatcher, notifier, newTestLogger(t))
	t.Cleanup(a.Close)
	return a
}

func TestAnalyzer_DetectsAfterDebounce(t *testing.T) {
	notifier := &recordingNotifier{}
	a := newTestAnalyzer(t, 30*time.Millisecond, notifier)

	a.AddLine("npm ERR! code E404")

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	er := notifier.last()
	require.NotNil(t, er.Error)
	assert.Equal(t, "npm", er.Error.Type)
	assert.Equal(t, "code E404", er.Error.Message)
	require.Len(t, er.Resolutions, 1)
	assert.Equal(t, "try again", er.Resolutions[0].Title)
}

func TestAnalyzer_BurstCoalescesIntoOnePass(t *testing.T) {
	notifier := &recordingNotifier{}
	a := newTestAnalyzer(t, 50*time.Millisecond, notifier)

	// Lines arriving faster than the debounce delay are one burst: the two
	// distinct errors are detected in a single pass.
	a.AddLine("npm ERR! code E404")
	a.AddLine("some unrelated output")
	a.AddLine("npm ERR! code EACCES")

	require.Eventually(t, func() bool {
		return notifier.count() == 2
	}, 3*time.Second, 10*time.Millisecond)

	// And nothing more afterwards.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, notifier.count())
}

func TestAnalyzer_NoMatchNoNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	a := newTestAnalyzer(t, 20*time.Millisecond, notifier)

	a.AddLine("all good here")
	a.AddLine("build succeeded")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, notifier.count())
}

func TestAnalyzer_AnalyzeNowSkipsDebounce(t *testing.T) {
	notifier := &recordingNotifier{}
	a := newTestAnalyzer(t, 10*time.Second, notifier)

	a.AnalyzeNow([]string{"npm ERR! code E404"})

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestAnalyzer_CloseStopsPendingPass(t *testing.T) {
	notifier := &recordingNotifier{}
	a := newTestAnalyzer(t, 100*time.Millisecond, notifier)

	a.AddLine("npm ERR! code E404")
	a.Close()

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, notifier.count(), "no delivery after teardown")
}

func TestAnalyzer_AddLineAfterCloseIsNoop(t *testing.T) {
	notifier := &recordingNotifier{}
	a := newTestAnalyzer(t, 10*time.Millisecond, notifier)
	a.Close()

	a.AddLine("npm ERR! code E404")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, notifier.count())
}
