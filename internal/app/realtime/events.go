/*
Package realtime pushes conversation events to connected clients over
WebSocket and accepts the small set of inbound commands a live session needs.

The Hub keeps a per-user registry of connections. A user may hold several
connections at once (multiple devices); presence flips online on the first
connection and offline on the last disconnect.
*/
package realtime

import (
	"encoding/json"
	"time"

	"veilchat/internal/app/chat"
)

// EventType tags a frame on the WebSocket wire, both directions.
type EventType string

const (
	// server -> client
	TypeMessageNew  EventType = "MESSAGE_NEW"
	TypeChatUpdated EventType = "CHAT_UPDATED"
	TypeChatDeleted EventType = "CHAT_DELETED"
	TypeConfirm     EventType = "CONFIRM"
	TypeError       EventType = "ERROR"

	// client -> server
	TypeSendMessage EventType = "SEND_MESSAGE"
	TypeMarkRead    EventType = "MARK_READ"
)

// Event is the wire envelope for every frame.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// TempID echoes the client-supplied correlation id on CONFIRM frames.
	TempID string `json:"tempId,omitempty"`
}

// NewEvent marshals payload into an envelope of the given type.
func NewEvent(t EventType, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: raw}, nil
}

// MessageNewPayload carries a freshly appended message to the counterpart.
type MessageNewPayload struct {
	ChatID  string        `json:"chatId"`
	Message *chat.Message `json:"message"`
}

// ChatEventPayload identifies the conversation a CHAT_UPDATED or CHAT_DELETED
// frame refers to. Clients re-fetch or drop the entry accordingly.
type ChatEventPayload struct {
	ChatID string `json:"chatId"`
}

// ConfirmPayload acknowledges an inbound SEND_MESSAGE with the authoritative
// id and timestamp.
type ConfirmPayload struct {
	MessageID string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a rejected inbound command.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendMessagePayload is the inbound SEND_MESSAGE body.
type SendMessagePayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// MarkReadPayload is the inbound MARK_READ body.
type MarkReadPayload struct {
	ChatID string `json:"chatId"`
}
