package websocket

import (
	"context"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/events/bus"
	"github.com/kapjain-rh/error-resolver/internal/session"
	ws "github.com/kapjain-rh/error-resolver/pkg/websocket"
)

// Notifier bridges the event bus into the hub: resolution and session
// lifecycle events become WebSocket notifications for every client.
type Notifier struct {
	hub    *Hub
	logger *logger.Logger
	subs   []bus.Subscription
}

// NewNotifier subscribes the hub to the bus subjects it relays.
func NewNotifier(eventBus bus.EventBus, hub *Hub, log *logger.Logger) (*Notifier, error) {
	n := &Notifier{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws-notifier")),
	}

	relay := func(action string) bus.EventHandler {
		return func(ctx context.Context, ev *bus.Event) error {
			msg, err := ws.NewNotification(action, ev.Data)
			if err != nil {
				return err
			}
			hub.Broadcast(msg)
			return nil
		}
	}

	sub, err := eventBus.Subscribe(bus.SubjectErrorResolved, relay(ws.ActionResolutionArrived))
	if err != nil {
		return nil, err
	}
	n.subs = append(n.subs, sub)

	sub, err = eventBus.Subscribe(bus.SubjectSessionExited, relay(ws.ActionSessionExited))
	if err != nil {
		return nil, err
	}
	n.subs = append(n.subs, sub)

	return n, nil
}

// Close drops the bus subscriptions.
func (n *Notifier) Close() {
	for _, sub := range n.subs {
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}
	n.subs = nil
}

// outputFrame is the payload of session.output notifications.
type outputFrame struct {
	SessionID string   `json:"session_id"`
	Kind      string   `json:"kind"` // line, partial, raw, echo
	Data      string   `json:"data,omitempty"`
	Lines     []string `json:"lines,omitempty"`
	ExitCode  int      `json:"exit_code,omitempty"`
}

// StreamSession forwards one session's output events to its hub subscribers
// until the session exits. Returns immediately; streaming runs in the
// background.
func StreamSession(sess *session.Session, hub *Hub, log *logger.Logger) {
	subID, events := sess.Subscribe()
	streamLog := log.WithSessionID(sess.ID).WithFields(zap.String("component", "ws-stream"))

	go func() {
		defer sess.Unsubscribe(subID)

		for ev := range events {
			frame := outputFrame{SessionID: sess.ID}
			switch ev.Kind {
			case session.EventLine:
				frame.Kind = "line"
				frame.Data = ev.Data
			case session.EventPartial:
				frame.Kind = "partial"
				frame.Data = ev.Data
			case session.EventRaw:
				frame.Kind = "raw"
				frame.Data = ev.Data
			case session.EventEcho:
				frame.Kind = "echo"
				frame.Data = ev.Data
			case session.EventScreen:
				frame.Kind = "screen"
				frame.Lines = ev.Lines
			case session.EventExit:
				frame.Kind = "exit"
				frame.ExitCode = ev.ExitCode
			}

			msg, err := ws.NewNotification(ws.ActionSessionOutput, frame)
			if err != nil {
				streamLog.Error("failed to build output frame", zap.Error(err))
				continue
			}
			hub.SendToSession(sess.ID, msg)

			if ev.Kind == session.EventExit {
				return
			}
		}
	}()
}
