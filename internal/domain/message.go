package domain

import "time"

type MessageType string

const (
	MessageTypeText MessageType = "TEXT"
	MessageTypeCall MessageType = "CALL"
)

type CallAction string

const (
	CallStarted CallAction = "started"
	CallEnded   CallAction = "ended"
)

// Message is a chat message row. The core only ever creates CALL messages.
type Message struct {
	ID        string      `json:"id"`
	RoomID    RoomID      `json:"roomId"`
	Type      MessageType `json:"type"`
	Body      string      `json:"body"`
	CallID    CallID      `json:"callId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
