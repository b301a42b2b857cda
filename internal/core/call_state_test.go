package core

import (
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCallStates_Lifecycle(t *testing.T) {
	req := require.New(t)
	states := NewCallStates()

	req.Equal(NotInCall, states.State("s1"))

	steps := []struct {
		trigger CallTrigger
		want    CallState
	}{
		{TriggerJoin, Joining},
		{TriggerJoined, InCall},
		{TriggerShare, SharingScreen},
		{TriggerStopShare, InCall},
		{TriggerLeave, Left},
	}
	for _, step := range steps {
		got, err := states.Fire("s1", step.trigger)
		req.NoError(err)
		req.Equal(step.want, got)
	}

	// Terminal states are forgotten
	req.Equal(NotInCall, states.State("s1"))
}

func TestCallStates_Rejects_Invalid_Transitions(t *testing.T) {
	req := require.New(t)
	states := NewCallStates()

	_, err := states.Fire("s1", TriggerShare)
	req.ErrorIs(err, domain.ErrInvalidState)

	_, err = states.Fire("s1", TriggerLeave)
	req.ErrorIs(err, domain.ErrInvalidState)
	req.Equal(NotInCall, states.State("s1"))
}

func TestCallState_String(t *testing.T) {
	req := require.New(t)
	req.Equal("IN_CALL", InCall.String())
	req.Equal("SHARING_SCREEN", SharingScreen.String())
	req.True(SharingScreen.InCallLike())
	req.False(Joining.InCallLike())
}
