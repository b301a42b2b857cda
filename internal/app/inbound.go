package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// Inbound is one unit of work for the dispatch loop: a client event bound to
// the connection it arrived on, a transport lifecycle change, or a domain event.
type Inbound interface {
	Name() string
	dispatch(ctx context.Context, r *Router)
}

type Connected struct {
	Conn core.Connection
}

type Disconnected struct {
	ConnID domain.ConnID
}

// Heartbeat is raised by the transport on every pong.
type Heartbeat struct {
	ConnID domain.ConnID
}

type JoinUserChannel struct {
	ConnID domain.ConnID `json:"-"`
	UserID domain.UserID `json:"userId"`
	Token  string        `json:"token,omitempty"`
}

type JoinChatRoom struct {
	ConnID domain.ConnID `json:"-"`
	RoomID domain.RoomID `json:"roomId"`
}

type LeaveChatRoom struct {
	ConnID domain.ConnID `json:"-"`
	RoomID domain.RoomID `json:"roomId"`
}

type Typing struct {
	ConnID   domain.ConnID `json:"-"`
	RoomID   domain.RoomID `json:"roomId"`
	IsTyping bool          `json:"isTyping"`
}

type CallJoin struct {
	ConnID domain.ConnID       `json:"-"`
	RoomID domain.RoomID       `json:"roomId"`
	User   domain.UserSnapshot `json:"user"`
}

type CallSendSignal struct {
	ConnID        domain.ConnID        `json:"-"`
	PeerID        domain.ConnID        `json:"peerId"`
	Signal        json.RawMessage      `json:"signal"`
	User          *domain.UserSnapshot `json:"user,omitempty"`
	IsShareScreen bool                 `json:"isShareScreen"`
}

type CallReturnSignal struct {
	ConnID        domain.ConnID   `json:"-"`
	CallerID      domain.ConnID   `json:"callerId"`
	Signal        json.RawMessage `json:"signal"`
	IsShareScreen bool            `json:"isShareScreen"`
}

type CallShareScreen struct {
	ConnID domain.ConnID `json:"-"`
	RoomID domain.RoomID `json:"roomId"`
}

type CallStopShareScreen struct {
	ConnID domain.ConnID `json:"-"`
	RoomID domain.RoomID `json:"roomId"`
}

type CallLeave struct {
	ConnID domain.ConnID `json:"-"`
}

// Domain carries a domain event from the bus into the loop.
type Domain struct {
	Event core.DomainEvent
}

func (Connected) Name() string           { return "connected" }
func (Disconnected) Name() string        { return "disconnected" }
func (Heartbeat) Name() string           { return "heartbeat" }
func (JoinUserChannel) Name() string     { return core.EventJoinUserChannel }
func (JoinChatRoom) Name() string        { return core.EventJoinChatRoom }
func (LeaveChatRoom) Name() string       { return core.EventLeaveChatRoom }
func (Typing) Name() string              { return core.EventTyping }
func (CallJoin) Name() string            { return core.EventCallJoin }
func (CallSendSignal) Name() string      { return core.EventCallSendSignal }
func (CallReturnSignal) Name() string    { return core.EventCallReturnSignal }
func (CallShareScreen) Name() string     { return core.EventCallShareScreen }
func (CallStopShareScreen) Name() string { return core.EventCallStopShareScreen }
func (CallLeave) Name() string           { return core.EventCallLeave }
func (d Domain) Name() string            { return string(d.Event.Kind()) }

func (e JoinUserChannel) validate() error {
	if e.UserID == "" && e.Token == "" {
		return domain.ErrUserIDEmpty
	}
	if len(e.UserID) > domain.MaxUserIDLen {
		return domain.ErrUserIDTooLong
	}
	return nil
}

func (e JoinChatRoom) validate() error  { return requireRoom(e.RoomID) }
func (e LeaveChatRoom) validate() error { return requireRoom(e.RoomID) }
func (e Typing) validate() error        { return requireRoom(e.RoomID) }

func (e CallJoin) validate() error {
	if err := requireRoom(e.RoomID); err != nil {
		return err
	}
	_, err := domain.NewUserSnapshot(e.User.ID, e.User.Name, e.User.Avatar)
	return err
}

func (e CallSendSignal) validate() error {
	if e.PeerID == "" || len(e.Signal) == 0 {
		return domain.ErrBadPayload
	}
	return nil
}

func (e CallReturnSignal) validate() error {
	if e.CallerID == "" || len(e.Signal) == 0 {
		return domain.ErrBadPayload
	}
	return nil
}

func (e CallShareScreen) validate() error     { return requireRoom(e.RoomID) }
func (e CallStopShareScreen) validate() error { return requireRoom(e.RoomID) }
func (CallLeave) validate() error             { return nil }

func requireRoom(id domain.RoomID) error {
	if id == "" {
		return domain.ErrRoomIDEmpty
	}
	return nil
}

type clientEvent interface {
	Inbound
	validate() error
}

// decodeClient unmarshals data into T, binds it to conn and validates it.
func decodeClient[T clientEvent](bind func(*T, domain.ConnID)) func(domain.ConnID, json.RawMessage) (Inbound, error) {
	return func(conn domain.ConnID, data json.RawMessage) (Inbound, error) {
		var ev T
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &ev); err != nil {
				return nil, err
			}
		}
		bind(&ev, conn)
		if err := ev.validate(); err != nil {
			return nil, err
		}
		return ev, nil
	}
}

var clientDecoders = map[string]func(domain.ConnID, json.RawMessage) (Inbound, error){
	core.EventJoinUserChannel:     decodeClient(func(e *JoinUserChannel, c domain.ConnID) { e.ConnID = c }),
	core.EventJoinChatRoom:        decodeClient(func(e *JoinChatRoom, c domain.ConnID) { e.ConnID = c }),
	core.EventLeaveChatRoom:       decodeClient(func(e *LeaveChatRoom, c domain.ConnID) { e.ConnID = c }),
	core.EventTyping:              decodeClient(func(e *Typing, c domain.ConnID) { e.ConnID = c }),
	core.EventCallJoin:            decodeClient(func(e *CallJoin, c domain.ConnID) { e.ConnID = c }),
	core.EventCallSendSignal:      decodeClient(func(e *CallSendSignal, c domain.ConnID) { e.ConnID = c }),
	core.EventCallReturnSignal:    decodeClient(func(e *CallReturnSignal, c domain.ConnID) { e.ConnID = c }),
	core.EventCallShareScreen:     decodeClient(func(e *CallShareScreen, c domain.ConnID) { e.ConnID = c }),
	core.EventCallStopShareScreen: decodeClient(func(e *CallStopShareScreen, c domain.ConnID) { e.ConnID = c }),
	core.EventCallLeave:           decodeClient(func(e *CallLeave, c domain.ConnID) { e.ConnID = c }),
}

// DecodeClientEvent turns a wire envelope received on conn into an Inbound.
// Unknown names yield domain.ErrUnknownEvent, bad data domain.ErrBadPayload.
func DecodeClientEvent(conn domain.ConnID, env core.Envelope) (Inbound, error) {
	decode, ok := clientDecoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("%q: %w", env.Event, domain.ErrUnknownEvent)
	}
	in, err := decode(conn, env.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", env.Event, domain.ErrBadPayload, err)
	}
	return in, nil
}
