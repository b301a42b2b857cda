package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps rooms, calls and call messages in process memory.
// Rooms are seeded by the room owner service through PutRoom.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]domain.Room
	calls    map[domain.CallID]*domain.Call
	active   map[domain.RoomID]domain.CallID
	messages map[domain.RoomID][]domain.Message
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[domain.RoomID]domain.Room),
		calls:    make(map[domain.CallID]*domain.Call),
		active:   make(map[domain.RoomID]domain.CallID),
		messages: make(map[domain.RoomID][]domain.Message),
		now:      time.Now,
	}
}

func (s *MemoryStore) PutRoom(_ context.Context, room domain.Room) error {
	if room.ID == "" {
		return domain.ErrRoomIDEmpty
	}
	room.ParticipantIDs = slices.Clone(room.ParticipantIDs)
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	room.ParticipantIDs = slices.Clone(room.ParticipantIDs)
	return &room, nil
}

func (s *MemoryStore) StartCall(_ context.Context, room domain.RoomID) (domain.CallID, error) {
	id := domain.CallID(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[id] = &domain.Call{ID: id, RoomID: room, StartedAt: s.now()}
	s.active[room] = id
	return id, nil
}

// EndCall stamps the end time. An empty id ends the active call of room.
func (s *MemoryStore) EndCall(_ context.Context, room domain.RoomID, id domain.CallID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = s.active[room]
	}
	call, ok := s.calls[id]
	if !ok {
		return fmt.Errorf("call %q of room %s: %w", id, room, domain.ErrNotFound)
	}
	ended := s.now()
	call.EndedAt = &ended
	if s.active[room] == id {
		delete(s.active, room)
	}
	return nil
}

func (s *MemoryStore) Call(id domain.CallID) (domain.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.calls[id]
	if !ok {
		return domain.Call{}, false
	}
	return *call, true
}

func (s *MemoryStore) CreateCallMessage(_ context.Context, room domain.RoomID, id domain.CallID, action domain.CallAction) error {
	msg := domain.Message{
		ID:        uuid.NewString(),
		RoomID:    room,
		Type:      domain.MessageTypeCall,
		Body:      string(action),
		CallID:    id,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.messages[room] = append(s.messages[room], msg)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Messages(room domain.RoomID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages[room])
}
