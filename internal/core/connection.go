package core

import (
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

// Connection abstracts a live transport session.
// Owned by the adapter; the core only sends to it and, on policy decisions, closes it.
type Connection interface {
	ID() domain.ConnID
	// Send enqueues one outbound event. It must not block.
	Send(event string, payload any) error
	Close()
	// Done is closed once the transport is gone.
	Done() <-chan struct{}
}

// Emitter delivers an outbound event to a single connection by id.
// Unknown or closed connections are dropped silently.
type Emitter interface {
	Emit(to domain.ConnID, event string, payload any)
}

// ConnInfo is a read-only view of a registry entry.
type ConnInfo struct {
	ID        domain.ConnID   `json:"id"`
	UserID    domain.UserID   `json:"userId,omitempty"`
	Rooms     []domain.RoomID `json:"rooms,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
