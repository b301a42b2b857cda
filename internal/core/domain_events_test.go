package core

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDecodeDomainEvent(t *testing.T) {
	req := require.New(t)

	ev, err := DecodeDomainEvent([]byte(`{"event":"message.new","data":{"roomId":"r1","message":{"id":"m1"},"clientId":"tmp-1"}}`))

	req.NoError(err)
	msg, ok := ev.(MessageNew)
	req.True(ok)
	req.Equal(domain.RoomID("r1"), msg.RoomID)
	req.Equal("tmp-1", msg.ClientID)
	req.JSONEq(`{"id":"m1"}`, string(msg.Message))
	req.Equal(Audience{Room: "r1"}, ev.Audience())
}

func TestDecodeDomainEvent_Errors(t *testing.T) {
	req := require.New(t)

	_, err := DecodeDomainEvent([]byte(`{"event":"room.explode","data":{}}`))
	req.ErrorIs(err, domain.ErrUnknownEvent)

	_, err = DecodeDomainEvent([]byte(`{"event":"room.update","data":{"roomId":42}}`))
	req.ErrorIs(err, domain.ErrBadPayload)

	_, err = DecodeDomainEvent([]byte(`not json`))
	req.ErrorIs(err, domain.ErrBadPayload)
}

func TestDomainEvent_Audiences(t *testing.T) {
	req := require.New(t)

	leave := RoomLeave{RoomID: "r1", UserID: "u1"}
	req.Equal([]domain.UserID{"u1"}, leave.Audience().Users)
	req.Equal(RoomRef{RoomID: "r1"}, leave.Payload())

	del := RoomDelete{RoomID: "r1", ParticipantIDs: []domain.UserID{"a", "b"}}
	req.Equal([]domain.UserID{"a", "b"}, del.Audience().Users)
	req.Equal(RoomRef{RoomID: "r1"}, del.Payload())
}

func TestEncodeDomainEvent_Envelope(t *testing.T) {
	req := require.New(t)

	b, err := EncodeDomainEvent(CallEnd{RoomID: "r1", CallID: "c1"})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(b, &env))
	req.Equal("call.end", env.Event)
	req.JSONEq(`{"roomId":"r1","callId":"c1"}`, string(env.Data))

	back, err := DecodeDomainEvent(b)
	req.NoError(err)
	req.Equal(CallEnd{RoomID: "r1", CallID: "c1"}, back)
}
