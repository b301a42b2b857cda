package domain

import "slices"

type RoomID string

// Room is the persisted chat room as seen by the event core.
type Room struct {
	ID             RoomID   `json:"id"`
	Name           string   `json:"name"`
	ParticipantIDs []UserID `json:"participantIds"`
	IsHelpDesk     bool     `json:"isHelpDesk"`
}

func (r *Room) HasParticipant(id UserID) bool {
	return slices.Contains(r.ParticipantIDs, id)
}
