package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
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

func TestNewMemoryEventBus(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)

	if bus == nil {
		t.Fatal("Expected non-nil bus")
	}
	if !bus.IsConnected() {
		t.Error("Expected bus to be connected")
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Event, 1)

	sub, err := bus.Subscribe(SubjectErrorResolved, func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	event := NewEvent("error.resolved", "test-source", map[string]interface{}{"type": "npm"})
	if err := bus.Publish(ctx, SubjectErrorResolved, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != event.ID {
			t.Errorf("received event ID = %s, want %s", got.ID, event.ID)
		}
		if got.Data["type"] != "npm" {
			t.Errorf("received event data type = %v, want npm", got.Data["type"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryEventBus_WildcardSubscribe(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	var count atomic.Int64

	sub, err := bus.Subscribe("session.*", func(ctx context.Context, event *Event) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	_ = bus.Publish(ctx, SubjectSessionStarted, NewEvent("session.started", "test", nil))
	_ = bus.Publish(ctx, SubjectSessionExited, NewEvent("session.exited", "test", nil))
	_ = bus.Publish(ctx, SubjectErrorResolved, NewEvent("error.resolved", "test", nil))

	deadline := time.Now().Add(time.Second)
	for count.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := count.Load(); got != 2 {
		t.Errorf("wildcard subscription received %d events, want 2", got)
	}
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	var count atomic.Int64

	sub, err := bus.Subscribe("test.subject", func(ctx context.Context, event *Event) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if !sub.IsValid() {
		t.Error("subscription should be valid before Unsubscribe")
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if sub.IsValid() {
		t.Error("subscription should be invalid after Unsubscribe")
	}

	_ = bus.Publish(ctx, "test.subject", NewEvent("test", "test", nil))
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("unsubscribed handler received %d events, want 0", got)
	}
}

func TestMemoryEventBus_PublishAfterClose(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	bus.Close()

	if bus.IsConnected() {
		t.Error("Expected bus to be disconnected after Close")
	}

	err := bus.Publish(context.Background(), "test.subject", NewEvent("test", "test", nil))
	if err == nil {
		t.Error("Expected Publish to fail after Close")
	}
}
