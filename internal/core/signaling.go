package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Calls is the call signaling state machine built on CallTable.
// It mutates in-memory state and emits call events; persistence side effects
// (start/end of the stored call) are left to the caller through the returned results.
type Calls struct {
	table  *CallTable
	states *CallStates
	emit   Emitter
}

func NewCalls(table *CallTable, states *CallStates, emit Emitter) *Calls {
	return &Calls{table: table, states: states, emit: emit}
}

func (c *Calls) Table() *CallTable { return c.table }

func (c *Calls) State(conn domain.ConnID) CallState { return c.states.State(conn) }

// Join puts conn into the call of room and sends it the other participants.
// When conn sits in a different call it leaves that one first; prev then
// carries the outcome so the caller can end the old call if it emptied.
func (c *Calls) Join(conn domain.ConnID, room domain.RoomID, user domain.UserSnapshot) (res JoinResult, prev *LeaveResult, err error) {
	if room == "" {
		return JoinResult{}, nil, domain.ErrRoomIDEmpty
	}
	if current, ok := c.table.RoomOf(conn); ok && current != room {
		left, _ := c.leave(conn, TriggerLeave)
		prev = &left
	}
	if _, err = c.states.Fire(conn, TriggerJoin); err != nil {
		return JoinResult{}, prev, err
	}
	res, err = c.table.Join(room, conn, user)
	if err != nil {
		_, _ = c.states.Fire(conn, TriggerLeave)
		return JoinResult{}, prev, fmt.Errorf("join call %s: %w", room, err)
	}
	c.emit.Emit(conn, EventCallListParticipant, ListParticipantPayload{RoomID: room, Participants: res.Others})
	_, _ = c.states.Fire(conn, TriggerJoined)
	return res, prev, nil
}

// SendSignal relays an offer from conn to peer as call.user_joined.
func (c *Calls) SendSignal(conn, peer domain.ConnID, signal json.RawMessage, isShareScreen bool, fallback *domain.UserSnapshot) error {
	if err := c.sameCall(conn, peer); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}
	p, _ := c.table.Participant(conn)
	user := p.User
	if user.ID == "" && fallback != nil {
		user = *fallback
	}
	c.emit.Emit(peer, EventCallUserJoined, UserJoinedPayload{
		Signal:        signal,
		CallerID:      conn,
		User:          user,
		IsShareScreen: isShareScreen,
	})
	return nil
}

// ReturnSignal relays the answer from conn back to caller.
func (c *Calls) ReturnSignal(conn, caller domain.ConnID, signal json.RawMessage, isShareScreen bool) error {
	if err := c.sameCall(conn, caller); err != nil {
		return fmt.Errorf("return signal: %w", err)
	}
	c.emit.Emit(caller, EventCallReceiveReturnSignal, ReturnSignalPayload{
		Signal:        signal,
		PeerID:        conn,
		IsShareScreen: isShareScreen,
	})
	return nil
}

// sameCall requires conn to be in a call and target to be a participant of that same call.
func (c *Calls) sameCall(conn, target domain.ConnID) error {
	if !c.states.State(conn).InCallLike() {
		return fmt.Errorf("%s not in call: %w", conn, domain.ErrInvalidState)
	}
	room, ok := c.table.RoomOf(conn)
	if !ok {
		return fmt.Errorf("%s not in call: %w", conn, domain.ErrInvalidState)
	}
	if other, ok := c.table.RoomOf(target); !ok || other != room {
		return fmt.Errorf("peer %s not in call %s: %w", target, room, domain.ErrNotFound)
	}
	return nil
}

// ShareScreen marks conn as sharing and tells it whom to signal for the screen track.
func (c *Calls) ShareScreen(conn domain.ConnID, room domain.RoomID) error {
	others, err := c.table.SetSharing(room, conn, true)
	if err != nil {
		return fmt.Errorf("share screen in %s: %w", room, err)
	}
	_, _ = c.states.Fire(conn, TriggerShare)
	c.emit.Emit(conn, EventCallShareScreen, ShareScreenPayload{RoomID: room, Participants: others, IsShareScreen: true})
	return nil
}

// StopShareScreen clears the share sub-state and notifies the rest of the call.
func (c *Calls) StopShareScreen(conn domain.ConnID, room domain.RoomID) error {
	others, err := c.table.SetSharing(room, conn, false)
	if err != nil {
		return fmt.Errorf("stop share screen in %s: %w", room, err)
	}
	_, _ = c.states.Fire(conn, TriggerStopShare)
	for _, p := range others {
		c.emit.Emit(p.ConnID, EventCallStopShareScreen, PeerPayload{RoomID: room, PeerID: conn})
	}
	return nil
}

// Leave removes conn from its call. The bool is false when conn was in no call.
func (c *Calls) Leave(conn domain.ConnID) (LeaveResult, bool) {
	return c.leave(conn, TriggerLeave)
}

// Disconnect is Leave triggered by transport loss.
func (c *Calls) Disconnect(conn domain.ConnID) (LeaveResult, bool) {
	return c.leave(conn, TriggerDisconnect)
}

// EvictRoom removes every participant of room's call as if each had left.
// The bool reports whether a session was destroyed.
func (c *Calls) EvictRoom(room domain.RoomID) (LeaveResult, bool) {
	info, ok := c.table.Get(room)
	if !ok {
		return LeaveResult{}, false
	}
	var last LeaveResult
	for _, p := range info.Participants {
		if res, ok := c.leave(p.ConnID, TriggerLeave); ok {
			last = res
		}
	}
	log.Info().Str("module", "core.calls").Str("room", string(room)).Int("evicted", len(info.Participants)).Msg("call evicted")
	return last, last.Ended
}

func (c *Calls) leave(conn domain.ConnID, trigger CallTrigger) (LeaveResult, bool) {
	res, ok := c.table.Leave(conn)
	if !ok {
		if trigger == TriggerDisconnect {
			_, _ = c.states.Fire(conn, trigger)
		}
		log.Debug().Str("module", "core.calls").Str("conn", string(conn)).Msg("leave ignored, not in a call")
		return LeaveResult{}, false
	}
	for _, p := range res.Remaining {
		c.emit.Emit(p.ConnID, EventCallLeave, PeerPayload{RoomID: res.RoomID, PeerID: conn})
	}
	_, _ = c.states.Fire(conn, trigger)
	return res, true
}
