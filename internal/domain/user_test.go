package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUserSnapshot(t *testing.T) {
	testCases := []struct {
		name    string
		id      UserID
		user    string
		wantErr error
	}{
		{name: "valid", id: "u1", user: "alice"},
		{name: "empty id", id: " ", user: "alice", wantErr: ErrUserIDEmpty},
		{name: "long id", id: UserID(strings.Repeat("x", MaxUserIDLen+1)), user: "alice", wantErr: ErrUserIDTooLong},
		{name: "empty name", id: "u1", user: "", wantErr: ErrUsernameEmpty},
		{name: "long name", id: "u1", user: strings.Repeat("n", MaxUsernameLen+1), wantErr: ErrUsernameTooLong},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			u, err := NewUserSnapshot(tc.id, tc.user, "a.png")
			if tc.wantErr != nil {
				req.ErrorIs(err, tc.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tc.id, u.ID)
			req.Equal("a.png", u.Avatar)
		})
	}
}

func TestRoom_HasParticipant(t *testing.T) {
	req := require.New(t)
	room := Room{ID: "r1", ParticipantIDs: []UserID{"a", "b"}}

	req.True(room.HasParticipant("a"))
	req.False(room.HasParticipant("c"))
}
