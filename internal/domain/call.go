package domain

import "time"

type CallID string

// Call is the persisted record of one call in a room.
type Call struct {
	ID        CallID     `json:"id"`
	RoomID    RoomID     `json:"roomId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Participant is one connection inside a live call.
type Participant struct {
	ConnID        ConnID       `json:"peerId"`
	User          UserSnapshot `json:"user"`
	SharingScreen bool         `json:"isShareScreen"`
}
