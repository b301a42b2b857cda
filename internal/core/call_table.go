package core

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// callSession is the live record of who is inside one call-room.
// Participants keep join order.
type callSession struct {
	roomID       domain.RoomID
	callID       domain.CallID
	startedAt    time.Time
	participants []domain.Participant
}

func (s *callSession) indexOf(conn domain.ConnID) int {
	return slices.IndexFunc(s.participants, func(p domain.Participant) bool { return p.ConnID == conn })
}

func (s *callSession) others(conn domain.ConnID) []domain.Participant {
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.ConnID != conn {
			out = append(out, p)
		}
	}
	return out
}

// CallInfo is a read-only view for APIs.
type CallInfo struct {
	RoomID       domain.RoomID        `json:"roomId"`
	CallID       domain.CallID        `json:"callId,omitempty"`
	StartedAt    time.Time            `json:"startedAt"`
	Participants []domain.Participant `json:"participants"`
}

// JoinResult describes what CallTable.Join changed.
type JoinResult struct {
	Created bool
	// Rejoin is set when the connection was already inside this call.
	Rejoin bool
	Others []domain.Participant
}

// LeaveResult describes what CallTable.Leave changed.
type LeaveResult struct {
	RoomID    domain.RoomID
	CallID    domain.CallID
	Remaining []domain.Participant
	// Ended is set when the session was destroyed because it became empty.
	Ended bool
}

// CallTable is the CallSessionTable: call-room -> session, plus the reverse
// connection -> call-room index. A connection sits in at most one session.
type CallTable struct {
	mu       sync.RWMutex
	sessions map[domain.RoomID]*callSession
	byConn   map[domain.ConnID]domain.RoomID
	now      func() time.Time
}

func NewCallTable() *CallTable {
	return &CallTable{
		sessions: make(map[domain.RoomID]*callSession),
		byConn:   make(map[domain.ConnID]domain.RoomID),
		now:      time.Now,
	}
}

// Join adds conn to the session of room, creating the session when absent.
// Joining the same room again refreshes the user snapshot and clears screen sharing.
// A connection that is inside another call gets domain.ErrInvalidState.
func (t *CallTable) Join(room domain.RoomID, conn domain.ConnID, user domain.UserSnapshot) (JoinResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.byConn[conn]; ok && current != room {
		return JoinResult{}, domain.ErrInvalidState
	}

	res := JoinResult{}
	s, ok := t.sessions[room]
	if !ok {
		s = &callSession{roomID: room, startedAt: t.now()}
		t.sessions[room] = s
		res.Created = true
		log.Info().Str("module", "core.calls").Str("room", string(room)).Msg("call session created")
	}

	if i := s.indexOf(conn); i >= 0 {
		s.participants[i].User = user
		s.participants[i].SharingScreen = false
		res.Rejoin = true
	} else {
		s.participants = append(s.participants, domain.Participant{ConnID: conn, User: user})
	}
	t.byConn[conn] = room
	res.Others = s.others(conn)
	log.Info().Str("module", "core.calls").Str("room", string(room)).Str("conn", string(conn)).Str("user", string(user.ID)).Int("participants", len(s.participants)).Msg("participant joined")
	return res, nil
}

// Leave removes conn from its session. The bool is false when conn was not in a call.
func (t *CallTable) Leave(conn domain.ConnID) (LeaveResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.byConn[conn]
	if !ok {
		return LeaveResult{}, false
	}
	delete(t.byConn, conn)

	s, ok := t.sessions[room]
	if !ok {
		return LeaveResult{RoomID: room}, true
	}
	if i := s.indexOf(conn); i >= 0 {
		s.participants = slices.Delete(s.participants, i, i+1)
	}
	res := LeaveResult{RoomID: room, CallID: s.callID, Remaining: slices.Clone(s.participants)}
	if len(s.participants) == 0 {
		delete(t.sessions, room)
		res.Ended = true
		log.Info().Str("module", "core.calls").Str("room", string(room)).Msg("call session destroyed")
	}
	log.Info().Str("module", "core.calls").Str("room", string(room)).Str("conn", string(conn)).Int("remaining", len(res.Remaining)).Msg("participant left")
	return res, true
}

// SetCallID binds the persisted call id to the live session.
func (t *CallTable) SetCallID(room domain.RoomID, id domain.CallID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[room]
	if !ok {
		return false
	}
	s.callID = id
	return true
}

// SetSharing flips the screen-share sub-state of conn inside room.
func (t *CallTable) SetSharing(room domain.RoomID, conn domain.ConnID, sharing bool) ([]domain.Participant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byConn[conn] != room {
		return nil, domain.ErrInvalidState
	}
	s, ok := t.sessions[room]
	if !ok {
		return nil, domain.ErrNotFound
	}
	i := s.indexOf(conn)
	if i < 0 {
		return nil, domain.ErrInvalidState
	}
	s.participants[i].SharingScreen = sharing
	return s.others(conn), nil
}

// RoomOf returns the call-room conn is currently inside.
func (t *CallTable) RoomOf(conn domain.ConnID) (domain.RoomID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room, ok := t.byConn[conn]
	return room, ok
}

// Participant returns the record of conn inside its call.
func (t *CallTable) Participant(conn domain.ConnID) (domain.Participant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room, ok := t.byConn[conn]
	if !ok {
		return domain.Participant{}, false
	}
	s, ok := t.sessions[room]
	if !ok {
		return domain.Participant{}, false
	}
	if i := s.indexOf(conn); i >= 0 {
		return s.participants[i], true
	}
	return domain.Participant{}, false
}

func (t *CallTable) Get(room domain.RoomID) (CallInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[room]
	if !ok {
		return CallInfo{}, false
	}
	return s.info(), true
}

func (t *CallTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// List returns every active session, ordered by room id.
func (t *CallTable) List() []CallInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CallInfo, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.info())
	}
	slices.SortFunc(out, func(a, b CallInfo) int { return cmp.Compare(a.RoomID, b.RoomID) })
	return out
}

func (s *callSession) info() CallInfo {
	return CallInfo{
		RoomID:       s.roomID,
		CallID:       s.callID,
		StartedAt:    s.startedAt,
		Participants: slices.Clone(s.participants),
	}
}
