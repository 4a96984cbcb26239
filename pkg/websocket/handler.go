package websocket

import "context"

// HandlerFunc processes one request frame and returns the response frame.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

// Dispatcher routes request frames to handlers by action name.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// RegisterFunc binds a handler to an action. Later registrations replace
// earlier ones.
func (d *Dispatcher) RegisterFunc(action string, handler HandlerFunc) {
	d.handlers[action] = handler
}

// Dispatch routes a frame. An unknown action yields an error frame, not a
// Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Message, error) {
	handler, ok := d.handlers[msg.Action]
	if !ok {
		return NewError(msg.ID, msg.Action, ErrorCodeUnknownAction, "unknown action: "+msg.Action)
	}
	return handler(ctx, msg)
}
