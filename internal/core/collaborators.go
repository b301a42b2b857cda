package core

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators_mock.go -package=mocks

import (
	"context"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

// RoomStore resolves persisted room participants.
// A missing room is reported as domain.ErrNotFound.
type RoomStore interface {
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
}

// CallStore persists call lifecycle. EndCall receives the id returned by
// StartCall, which may be empty when StartCall failed.
type CallStore interface {
	StartCall(ctx context.Context, room domain.RoomID) (domain.CallID, error)
	EndCall(ctx context.Context, room domain.RoomID, id domain.CallID) error
}

// MessageStore writes the CALL system message of a room.
type MessageStore interface {
	CreateCallMessage(ctx context.Context, room domain.RoomID, id domain.CallID, action domain.CallAction) error
}

// PresenceEntry places one connection of a user on a node.
type PresenceEntry struct {
	ConnID domain.ConnID `json:"connId"`
	NodeID string        `json:"nodeId"`
	SeenAt time.Time     `json:"seenAt"`
}

// Presence mirrors registry membership so that other nodes can see it.
type Presence interface {
	Add(ctx context.Context, user domain.UserID, conn domain.ConnID) error
	Remove(ctx context.Context, user domain.UserID, conn domain.ConnID) error
	Refresh(ctx context.Context, user domain.UserID, conn domain.ConnID) error
	Connections(ctx context.Context, user domain.UserID) ([]PresenceEntry, error)
}

// EventPublisher hands a domain event to every node.
type EventPublisher interface {
	Publish(ctx context.Context, ev DomainEvent) error
}

// EventBus is the transport domain events travel on.
type EventBus interface {
	EventPublisher
	Subscribe(ctx context.Context) (<-chan DomainEvent, error)
	Close() error
}
