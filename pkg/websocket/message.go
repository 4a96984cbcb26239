// Package websocket defines the wire protocol spoken on the gateway's
// WebSocket endpoint: a single JSON envelope for requests, responses,
// server-push notifications, and errors.
package websocket

import (
	"encoding/json"
	"time"
)

// MessageType discriminates the envelope.
type MessageType string

const (
	MessageTypeRequest      MessageType = "request"
	MessageTypeResponse     MessageType = "response"
	MessageTypeNotification MessageType = "notification"
	MessageTypeError        MessageType = "error"
)

// Message is the envelope for every frame in both directions. ID correlates
// a response with its request and is empty on notifications.
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorPayload is the payload of MessageTypeError frames.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMessage(id string, t MessageType, action string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        id,
		Type:      t,
		Action:    action,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponse builds a response to the request with the given ID.
func NewResponse(id, action string, payload interface{}) (*Message, error) {
	return newMessage(id, MessageTypeResponse, action, payload)
}

// NewNotification builds an unsolicited server-push frame.
func NewNotification(action string, payload interface{}) (*Message, error) {
	return newMessage("", MessageTypeNotification, action, payload)
}

// NewError builds an error frame answering the request with the given ID.
func NewError(id, action, code, message string) (*Message, error) {
	return newMessage(id, MessageTypeError, action, ErrorPayload{Code: code, Message: message})
}

// ParsePayload unmarshals the payload into v. A missing payload is not an
// error; v is left untouched.
func (m *Message) ParsePayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
