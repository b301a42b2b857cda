package app

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

func env(event, data string) core.Envelope {
	return core.Envelope{Event: event, Data: json.RawMessage(data)}
}

func TestDecodeClientEvent(t *testing.T) {
	req := require.New(t)

	in, err := DecodeClientEvent("c1", env("call.join", `{"roomId":"R1","user":{"id":"U1","name":"Ann"}}`))
	req.NoError(err)
	req.Equal(CallJoin{ConnID: "c1", RoomID: "R1", User: domain.UserSnapshot{ID: "U1", Name: "Ann"}}, in)

	in, err = DecodeClientEvent("c1", env("call.send_signal", `{"peerId":"c2","signal":{"type":"offer"},"isShareScreen":true}`))
	req.NoError(err)
	sig := in.(CallSendSignal)
	req.Equal(domain.ConnID("c1"), sig.ConnID)
	req.Equal(domain.ConnID("c2"), sig.PeerID)
	req.True(sig.IsShareScreen)
	req.Nil(sig.User)

	in, err = DecodeClientEvent("c1", core.Envelope{Event: "call.leave"})
	req.NoError(err)
	req.Equal(CallLeave{ConnID: "c1"}, in)
}

func TestDecodeClientEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  core.Envelope
		want error
	}{
		{"unknown event", env("nope", `{}`), domain.ErrUnknownEvent},
		{"broken json", env("join-chat-room", `{"roomId":`), domain.ErrBadPayload},
		{"missing room", env("join-chat-room", `{}`), domain.ErrBadPayload},
		{"missing user name", env("call.join", `{"roomId":"R","user":{"id":"U"}}`), domain.ErrBadPayload},
		{"missing signal", env("call.return_signal", `{"callerId":"c2"}`), domain.ErrBadPayload},
		{"no identity", env("join-user-channel", `{}`), domain.ErrBadPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClientEvent("c1", tt.env)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeClientEvent_WrapsCause(t *testing.T) {
	_, err := DecodeClientEvent("c1", env("call.join", `{"roomId":"R","user":{"id":"U"}}`))
	require.ErrorIs(t, err, domain.ErrUsernameEmpty)
}
