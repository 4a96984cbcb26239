// Package notify delivers ranked error resolutions to consumers, suppressing
// repeats of the same error within a configurable window.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/events/bus"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
)

// maxRecent bounds the in-memory history served to the API.
const maxRecent = 100

// Notifier publishes ErrorResolution events on the bus. Deduplication is
// time-boxed and keyed by (type, message): a repeat within the expiry window
// is suppressed; after the window the entry is evicted and the error can
// notify again.
type Notifier struct {
	logger *logger.Logger
	bus    bus.EventBus
	expiry time.Duration

	mu     sync.Mutex
	seen   map[string]time.Time
	recent []*resolve.ErrorResolution

	now func() time.Time
}

// NewNotifier creates a notifier with the given dedup expiry.
func NewNotifier(eventBus bus.EventBus, expiry time.Duration, log *logger.Logger) *Notifier {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &Notifier{
		logger: log.WithFields(zap.String("component", "notifier")),
		bus:    eventBus,
		expiry: expiry,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Notify publishes the resolution unless an identical error already notified
// within the dedup window. Returns whether a notification went out.
func (n *Notifier) Notify(ctx context.Context, sessionID string, er *resolve.ErrorResolution) bool {
	if er == nil || er.Error == nil {
		return false
	}
	key := er.Error.Type + "\x00" + er.Error.Message

	n.mu.Lock()
	now := n.now()
	n.evictExpired(now)

	if last, ok := n.seen[key]; ok && now.Sub(last) < n.expiry {
		n.mu.Unlock()
		n.logger.Debug("notification suppressed",
			zap.String("session_id", sessionID),
			zap.String("error_type", er.Error.Type))
		return false
	}
	n.seen[key] = now

	n.recent = append(n.recent, er)
	if len(n.recent) > maxRecent {
		n.recent = n.recent[len(n.recent)-maxRecent:]
	}
	n.mu.Unlock()

	if n.bus != nil {
		ev := bus.NewEvent(bus.SubjectErrorResolved, "notifier", map[string]interface{}{
			"session_id": sessionID,
			"resolution": er,
		})
		if err := n.bus.Publish(ctx, bus.SubjectErrorResolved, ev); err != nil {
			n.logger.Warn("failed to publish resolution",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	n.logger.Info("error resolution notified",
		zap.String("session_id", sessionID),
		zap.String("error_type", er.Error.Type),
		zap.Int("resolutions", len(er.Resolutions)))
	return true
}

// Recent returns up to limit most recent notifications, newest first.
func (n *Notifier) Recent(limit int) []*resolve.ErrorResolution {
	n.mu.Lock()
	defer n.mu.Unlock()

	if limit <= 0 || limit > len(n.recent) {
		limit = len(n.recent)
	}
	out := make([]*resolve.ErrorResolution, 0, limit)
	for i := len(n.recent) - 1; i >= len(n.recent)-limit; i-- {
		out = append(out, n.recent[i])
	}
	return out
}

// evictExpired drops entries older than the window. Called with mu held.
func (n *Notifier) evictExpired(now time.Time) {
	for key, last := range n.seen {
		if now.Sub(last) >= n.expiry {
			delete(n.seen, key)
		}
	}
}
