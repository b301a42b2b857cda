package core

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
)

// Wire event names. Inbound and outbound share the same namespace.
const (
	EventJoinUserChannel = "join-user-channel"
	EventJoinChatRoom    = "join-chat-room"
	EventLeaveChatRoom   = "leave-chat-room"
	EventTyping          = "typing"
	EventPing            = "ping"
	EventPong            = "pong"
	EventError           = "error"

	EventCallJoin                = "call.join"
	EventCallSendSignal          = "call.send_signal"
	EventCallReturnSignal        = "call.return_signal"
	EventCallListParticipant     = "call.list_participant"
	EventCallUserJoined          = "call.user_joined"
	EventCallReceiveReturnSignal = "call.receive_return_signal"
	EventCallShareScreen         = "call.share_screen"
	EventCallStopShareScreen     = "call.stop_share_screen"
	EventCallLeave               = "call.leave"
)

type ListParticipantPayload struct {
	RoomID       domain.RoomID        `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
}

type UserJoinedPayload struct {
	Signal        json.RawMessage     `json:"signal"`
	CallerID      domain.ConnID       `json:"callerId"`
	User          domain.UserSnapshot `json:"user"`
	IsShareScreen bool                `json:"isShareScreen"`
}

type ReturnSignalPayload struct {
	Signal        json.RawMessage `json:"signal"`
	PeerID        domain.ConnID   `json:"peerId"`
	IsShareScreen bool            `json:"isShareScreen"`
}

type ShareScreenPayload struct {
	RoomID        domain.RoomID        `json:"roomId"`
	Participants  []domain.Participant `json:"participants"`
	IsShareScreen bool                 `json:"isShareScreen"`
}

// PeerPayload announces that a peer left a call or stopped sharing.
type PeerPayload struct {
	RoomID domain.RoomID `json:"roomId"`
	PeerID domain.ConnID `json:"peerId"`
}

type TypingPayload struct {
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	IsTyping bool          `json:"isTyping"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
