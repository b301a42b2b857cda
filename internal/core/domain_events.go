package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Huddle/internal/domain"
)

type EventKind string

const (
	KindMessageNew EventKind = "message.new"
	KindRoomUpdate EventKind = "room.update"
	KindRoomDelete EventKind = "room.delete"
	KindRoomLeave  EventKind = "room.leave"
	KindCallStart  EventKind = "call.start"
	KindCallEnd    EventKind = "call.end"
)

// Audience names who receives a domain event. Users, when set, is used as is;
// otherwise the participants of Room are looked up.
type Audience struct {
	Room  domain.RoomID
	Users []domain.UserID
}

// DomainEvent is the closed set of backend-raised events. Every kind must say
// who receives it and what goes on the wire.
type DomainEvent interface {
	Kind() EventKind
	Audience() Audience
	Payload() any
}

type MessageNew struct {
	RoomID   domain.RoomID   `json:"roomId"`
	Message  json.RawMessage `json:"message"`
	ClientID string          `json:"clientId,omitempty"`
}

func (e MessageNew) Kind() EventKind    { return KindMessageNew }
func (e MessageNew) Audience() Audience { return Audience{Room: e.RoomID} }
func (e MessageNew) Payload() any       { return e }

type RoomUpdate struct {
	RoomID  domain.RoomID   `json:"roomId"`
	Changes json.RawMessage `json:"changes"`
}

func (e RoomUpdate) Kind() EventKind    { return KindRoomUpdate }
func (e RoomUpdate) Audience() Audience { return Audience{Room: e.RoomID} }
func (e RoomUpdate) Payload() any       { return e }

// RoomDelete may carry the participant list, since the room is usually
// already gone from the store when the event arrives.
type RoomDelete struct {
	RoomID         domain.RoomID   `json:"roomId"`
	ParticipantIDs []domain.UserID `json:"participantIds,omitempty"`
}

func (e RoomDelete) Kind() EventKind    { return KindRoomDelete }
func (e RoomDelete) Audience() Audience { return Audience{Room: e.RoomID, Users: e.ParticipantIDs} }
func (e RoomDelete) Payload() any       { return RoomRef{RoomID: e.RoomID} }

type RoomLeave struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

func (e RoomLeave) Kind() EventKind { return KindRoomLeave }
func (e RoomLeave) Audience() Audience {
	return Audience{Room: e.RoomID, Users: []domain.UserID{e.UserID}}
}
func (e RoomLeave) Payload() any { return RoomRef{RoomID: e.RoomID} }

type CallStart struct {
	RoomID domain.RoomID `json:"roomId"`
	CallID domain.CallID `json:"callId,omitempty"`
}

func (e CallStart) Kind() EventKind    { return KindCallStart }
func (e CallStart) Audience() Audience { return Audience{Room: e.RoomID} }
func (e CallStart) Payload() any       { return e }

type CallEnd struct {
	RoomID domain.RoomID `json:"roomId"`
	CallID domain.CallID `json:"callId,omitempty"`
}

func (e CallEnd) Kind() EventKind    { return KindCallEnd }
func (e CallEnd) Audience() Audience { return Audience{Room: e.RoomID} }
func (e CallEnd) Payload() any       { return e }

type RoomRef struct {
	RoomID domain.RoomID `json:"roomId"`
}

var domainEventKinds = map[EventKind]func(json.RawMessage) (DomainEvent, error){
	KindMessageNew: decodeAs[MessageNew],
	KindRoomUpdate: decodeAs[RoomUpdate],
	KindRoomDelete: decodeAs[RoomDelete],
	KindRoomLeave:  decodeAs[RoomLeave],
	KindCallStart:  decodeAs[CallStart],
	KindCallEnd:    decodeAs[CallEnd],
}

func decodeAs[T DomainEvent](data json.RawMessage) (DomainEvent, error) {
	var ev T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// Envelope is the JSON frame shared by the websocket protocol and the event bus.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func EncodeDomainEvent(ev DomainEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	return json.Marshal(Envelope{Event: string(ev.Kind()), Data: data})
}

// DecodeDomainEvent parses an envelope into its concrete event value.
func DecodeDomainEvent(b []byte) (DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	return ParseDomainEvent(EventKind(env.Event), env.Data)
}

func ParseDomainEvent(kind EventKind, data json.RawMessage) (DomainEvent, error) {
	decode, ok := domainEventKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, kind)
	}
	ev, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrBadPayload, kind, err)
	}
	return ev, nil
}
