package core

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type set[K comparable] map[K]struct{}

type connEntry struct {
	conn      Connection
	user      domain.UserID
	rooms     set[domain.RoomID]
	createdAt time.Time
}

// Registry is the ConnectionRegistry: user identity -> live connections,
// plus the per-connection chat-room channel subscriptions.
// A connection id belongs to at most one user at a time.
type Registry struct {
	mu       sync.RWMutex
	conns    map[domain.ConnID]*connEntry
	users    map[domain.UserID]set[domain.ConnID]
	channels map[domain.RoomID]set[domain.ConnID]
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[domain.ConnID]*connEntry),
		users:    make(map[domain.UserID]set[domain.ConnID]),
		channels: make(map[domain.RoomID]set[domain.ConnID]),
		now:      time.Now,
	}
}

// entryLocked returns the entry for id, creating an anonymous one if needed.
func (r *Registry) entryLocked(id domain.ConnID) *connEntry {
	e, ok := r.conns[id]
	if !ok {
		e = &connEntry{rooms: make(set[domain.RoomID]), createdAt: r.now()}
		r.conns[id] = e
	}
	return e
}

// Attach stores the transport handle of a freshly accepted connection.
// The owning user stays empty until Register.
func (r *Registry) Attach(c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(c.ID())
	e.conn = c
	log.Debug().Str("module", "core.registry").Str("conn", string(c.ID())).Msg("attached connection")
}

// Register adds conn to user's set. Repeating the same pair is a no-op;
// registering a connection under a new user moves it.
func (r *Registry) Register(conn domain.ConnID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(conn)
	if e.user == user {
		return
	}
	if e.user != "" {
		r.removeUserLocked(e.user, conn)
	}
	e.user = user
	conns, ok := r.users[user]
	if !ok {
		conns = make(set[domain.ConnID])
		r.users[user] = conns
	}
	conns[conn] = struct{}{}
	log.Info().Str("module", "core.registry").Str("conn", string(conn)).Str("user", string(user)).Msg("registered connection")
}

// Unregister removes conn from whatever user owns it. Unknown ids are ignored.
// It returns the previous owner.
func (r *Registry) Unregister(conn domain.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[conn]
	if !ok || e.user == "" {
		return "", false
	}
	user := e.user
	r.removeUserLocked(user, conn)
	e.user = ""
	log.Info().Str("module", "core.registry").Str("conn", string(conn)).Str("user", string(user)).Msg("unregistered connection")
	return user, true
}

// Detach forgets the connection entirely: owner, subscriptions and handle.
func (r *Registry) Detach(conn domain.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[conn]
	if !ok {
		return "", false
	}
	if e.user != "" {
		r.removeUserLocked(e.user, conn)
	}
	for room := range e.rooms {
		r.unsubscribeLocked(room, conn)
	}
	delete(r.conns, conn)
	log.Debug().Str("module", "core.registry").Str("conn", string(conn)).Msg("detached connection")
	return e.user, true
}

func (r *Registry) removeUserLocked(user domain.UserID, conn domain.ConnID) {
	conns, ok := r.users[user]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.users, user)
	}
}

// ConnectionsFor returns the sorted connection ids of user; empty when unknown.
func (r *Registry) ConnectionsFor(user domain.UserID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.users[user])
}

func (r *Registry) UserOf(conn domain.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[conn]
	if !ok || e.user == "" {
		return "", false
	}
	return e.user, true
}

// Get returns the live handle of conn, if it was attached.
func (r *Registry) Get(conn domain.ConnID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[conn]
	if !ok || e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

// Subscribe joins conn to the chat-room channel of room.
func (r *Registry) Subscribe(conn domain.ConnID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(conn)
	e.rooms[room] = struct{}{}
	subs, ok := r.channels[room]
	if !ok {
		subs = make(set[domain.ConnID])
		r.channels[room] = subs
	}
	subs[conn] = struct{}{}
	log.Debug().Str("module", "core.registry").Str("conn", string(conn)).Str("room", string(room)).Msg("subscribed to chat room")
}

func (r *Registry) Unsubscribe(conn domain.ConnID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[conn]; ok {
		delete(e.rooms, room)
	}
	r.unsubscribeLocked(room, conn)
}

func (r *Registry) unsubscribeLocked(room domain.RoomID, conn domain.ConnID) {
	subs, ok := r.channels[room]
	if !ok {
		return
	}
	delete(subs, conn)
	if len(subs) == 0 {
		delete(r.channels, room)
	}
}

// Subscribers returns the connections subscribed to room's chat channel.
func (r *Registry) Subscribers(room domain.RoomID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.channels[room])
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot lists every known connection, ordered by id.
func (r *Registry) Snapshot() []ConnInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnInfo, 0, len(r.conns))
	for id, e := range r.conns {
		out = append(out, ConnInfo{
			ID:        id,
			UserID:    e.user,
			Rooms:     sortedKeys(e.rooms),
			CreatedAt: e.createdAt,
		})
	}
	slices.SortFunc(out, func(a, b ConnInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func sortedKeys[K ~string](s set[K]) []K {
	out := make([]K, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
