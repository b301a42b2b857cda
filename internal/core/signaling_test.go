package core

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestCalls() (*Calls, *recorder) {
	rec := &recorder{}
	return NewCalls(NewCallTable(), NewCallStates(), rec), rec
}

func TestCalls_Join_Sends_Others_To_Joiner_Only(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()

	// Given S1 is alone in R1
	res, prev, err := calls.Join("S1", "R1", snapshot("U1", "alice"))
	req.NoError(err)
	req.Nil(prev)
	req.True(res.Created)
	req.Equal(InCall, calls.State("S1"))

	// When S2 joins
	rec.reset()
	_, _, err = calls.Join("S2", "R1", snapshot("U2", "bob"))
	req.NoError(err)

	// Then only S2 receives the list, and it excludes S2
	req.Empty(rec.to("S1"))
	out := rec.to("S2")
	req.Len(out, 1)
	req.Equal(EventCallListParticipant, out[0].Event)
	payload := out[0].Payload.(ListParticipantPayload)
	req.Equal(domain.RoomID("R1"), payload.RoomID)
	req.Len(payload.Participants, 1)
	req.Equal(domain.ConnID("S1"), payload.Participants[0].ConnID)
}

func TestCalls_SendSignal_Reaches_Target_Only(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()
	signal := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	// Given S1 (U1) and S2 (U2) joined R1
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R1", snapshot("U2", "bob"))
	rec.reset()

	// When S1 signals S2
	req.NoError(calls.SendSignal("S1", "S2", signal, false, nil))

	// Then S2 gets exactly one call.user_joined with the payload and caller id
	out := rec.to("S2")
	req.Len(out, 1)
	req.Equal(EventCallUserJoined, out[0].Event)
	payload := out[0].Payload.(UserJoinedPayload)
	req.JSONEq(string(signal), string(payload.Signal))
	req.Equal(domain.ConnID("S1"), payload.CallerID)
	req.Equal(domain.UserID("U1"), payload.User.ID)

	// And S1 receives nothing
	req.Empty(rec.to("S1"))
}

func TestCalls_SendSignal_Requires_InCall(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()

	err := calls.SendSignal("S1", "S2", json.RawMessage(`{}`), false, nil)

	req.ErrorIs(err, domain.ErrInvalidState)
	req.Empty(rec.out)
}

func TestCalls_ReturnSignal(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R1", snapshot("U2", "bob"))
	rec.reset()

	req.NoError(calls.ReturnSignal("S2", "S1", json.RawMessage(`"answer"`), true))

	out := rec.to("S1")
	req.Len(out, 1)
	req.Equal(EventCallReceiveReturnSignal, out[0].Event)
	payload := out[0].Payload.(ReturnSignalPayload)
	req.Equal(domain.ConnID("S2"), payload.PeerID)
	req.True(payload.IsShareScreen)
}

func TestCalls_Signal_To_Peer_Outside_Call_Is_Dropped(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()

	// Given S1 in R1, S2 in R2 and S9 in no call
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R2", snapshot("U2", "bob"))
	rec.reset()

	// When S1 signals connections outside its call
	req.ErrorIs(calls.SendSignal("S1", "S9", json.RawMessage(`{}`), false, nil), domain.ErrNotFound)
	req.ErrorIs(calls.ReturnSignal("S1", "S9", json.RawMessage(`{}`), false), domain.ErrNotFound)
	req.ErrorIs(calls.SendSignal("S1", "S2", json.RawMessage(`{}`), false, nil), domain.ErrNotFound)
	req.ErrorIs(calls.ReturnSignal("S1", "S2", json.RawMessage(`{}`), false), domain.ErrNotFound)

	// Then nothing is emitted
	req.Empty(rec.out)
}

func TestCalls_ShareScreen_Flow(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R1", snapshot("U2", "bob"))
	rec.reset()

	// When S1 starts sharing
	req.NoError(calls.ShareScreen("S1", "R1"))

	// Then S1 alone learns whom to signal
	req.Equal(SharingScreen, calls.State("S1"))
	out := rec.to("S1")
	req.Len(out, 1)
	payload := out[0].Payload.(ShareScreenPayload)
	req.True(payload.IsShareScreen)
	req.Len(payload.Participants, 1)
	req.Empty(rec.to("S2"))

	// When S1 stops sharing
	rec.reset()
	req.NoError(calls.StopShareScreen("S1", "R1"))

	// Then the rest of the call is told
	req.Equal(InCall, calls.State("S1"))
	out = rec.to("S2")
	req.Len(out, 1)
	req.Equal(EventCallStopShareScreen, out[0].Event)
	req.Equal(PeerPayload{RoomID: "R1", PeerID: "S1"}, out[0].Payload)
}

func TestCalls_ShareScreen_Outside_Call(t *testing.T) {
	req := require.New(t)
	calls, _ := newTestCalls()

	err := calls.ShareScreen("S1", "R1")

	req.ErrorIs(err, domain.ErrInvalidState)
}

func TestCalls_Leave_Notifies_Remaining(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R1", snapshot("U2", "bob"))
	rec.reset()

	res, ok := calls.Leave("S1")

	req.True(ok)
	req.False(res.Ended)
	req.Equal(NotInCall, calls.State("S1"))
	out := rec.to("S2")
	req.Len(out, 1)
	req.Equal(EventCallLeave, out[0].Event)
	req.Equal(PeerPayload{RoomID: "R1", PeerID: "S1"}, out[0].Payload)
}

func TestCalls_Leave_Not_In_Call_Is_NoOp(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()

	_, ok := calls.Leave("S9")
	req.False(ok)
	_, ok = calls.Disconnect("S9")
	req.False(ok)
	req.Empty(rec.out)
}

func TestCalls_Join_Other_Room_Leaves_Previous(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R1", snapshot("U2", "bob"))
	rec.reset()

	// When S1 joins R2
	res, prev, err := calls.Join("S1", "R2", snapshot("U1", "alice"))

	// Then it left R1 first and S2 was told
	req.NoError(err)
	req.True(res.Created)
	req.NotNil(prev)
	req.Equal(domain.RoomID("R1"), prev.RoomID)
	req.False(prev.Ended)
	req.Len(rec.to("S2"), 1)
	room, _ := calls.Table().RoomOf("S1")
	req.Equal(domain.RoomID("R2"), room)
}

func TestCalls_Disconnect_Last_Then_Fresh_Session(t *testing.T) {
	req := require.New(t)
	calls, _ := newTestCalls()

	// Given S1 joined R1 alone and the call got an id
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	calls.Table().SetCallID("R1", "call-1")

	// When S1 disconnects
	res, ok := calls.Disconnect("S1")
	req.True(ok)
	req.True(res.Ended)

	// Then a new connection starts a brand-new session
	join, _, err := calls.Join("S3", "R1", snapshot("U3", "carol"))
	req.NoError(err)
	req.True(join.Created)
	info, _ := calls.Table().Get("R1")
	req.Empty(info.CallID)
	req.Len(info.Participants, 1)
}

func TestCalls_EvictRoom(t *testing.T) {
	req := require.New(t)
	calls, rec := newTestCalls()

	// Nothing to evict
	_, ended := calls.EvictRoom("R1")
	req.False(ended)

	// Given S1 and S2 in R1 and S3 in R2
	_, _, _ = calls.Join("S1", "R1", snapshot("U1", "alice"))
	_, _, _ = calls.Join("S2", "R1", snapshot("U2", "bob"))
	_, _, _ = calls.Join("S3", "R2", snapshot("U3", "carol"))
	rec.reset()

	// When R1 is evicted
	res, ended := calls.EvictRoom("R1")

	// Then its session is gone, R2 is untouched
	req.True(ended)
	req.Equal(domain.RoomID("R1"), res.RoomID)
	_, ok := calls.Table().Get("R1")
	req.False(ok)
	_, ok = calls.Table().Get("R2")
	req.True(ok)
	req.Equal(NotInCall, calls.State("S1"))
	req.Equal(NotInCall, calls.State("S2"))
	req.Empty(rec.to("S3"))
}
