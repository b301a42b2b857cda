package core

import (
	"fmt"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
)

type CallState int

const (
	NotInCall CallState = iota
	Joining
	InCall
	SharingScreen
	Left
	Disconnected
)

func (s CallState) String() string {
	switch s {
	case NotInCall:
		return "NOT_IN_CALL"
	case Joining:
		return "JOINING"
	case InCall:
		return "IN_CALL"
	case SharingScreen:
		return "SHARING_SCREEN"
	case Left:
		return "LEFT"
	case Disconnected:
		return "DISCONNECTED"
	}
	return fmt.Sprintf("CallState(%d)", int(s))
}

// InCallLike reports whether the connection is inside a call.
func (s CallState) InCallLike() bool {
	return s == InCall || s == SharingScreen
}

type CallTrigger int

const (
	TriggerJoin CallTrigger = iota
	TriggerJoined
	TriggerShare
	TriggerStopShare
	TriggerLeave
	TriggerDisconnect
)

var callTransitions = map[CallState]map[CallTrigger]CallState{
	NotInCall: {
		TriggerJoin:       Joining,
		TriggerDisconnect: Disconnected,
	},
	Joining: {
		TriggerJoined:     InCall,
		TriggerLeave:      Left,
		TriggerDisconnect: Disconnected,
	},
	InCall: {
		TriggerJoin:       Joining,
		TriggerShare:      SharingScreen,
		TriggerStopShare:  InCall,
		TriggerLeave:      Left,
		TriggerDisconnect: Disconnected,
	},
	SharingScreen: {
		TriggerJoin:       Joining,
		TriggerShare:      SharingScreen,
		TriggerStopShare:  InCall,
		TriggerLeave:      Left,
		TriggerDisconnect: Disconnected,
	},
}

// CallStates tracks the call state of every connection that touched a call.
// LEFT and DISCONNECTED are terminal: the entry is dropped and the
// connection reads as NOT_IN_CALL again.
type CallStates struct {
	mu     sync.Mutex
	states map[domain.ConnID]CallState
}

func NewCallStates() *CallStates {
	return &CallStates{states: make(map[domain.ConnID]CallState)}
}

func (c *CallStates) State(conn domain.ConnID) CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[conn]
}

// Fire applies trigger to conn. Disallowed transitions leave the state
// untouched and return domain.ErrInvalidState.
func (c *CallStates) Fire(conn domain.ConnID, trigger CallTrigger) (CallState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.states[conn]
	to, ok := callTransitions[from][trigger]
	if !ok {
		return from, fmt.Errorf("%w: trigger %d in state %s", domain.ErrInvalidState, trigger, from)
	}
	if to == Left || to == Disconnected {
		delete(c.states, conn)
		return to, nil
	}
	c.states[conn] = to
	return to, nil
}
