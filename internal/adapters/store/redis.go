package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	connectAttempts = 5
	connectTimeout  = 5 * time.Second
)

// NewRedisClient connects and pings, retrying with exponential backoff.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return client.Ping(pctx).Err()
	}
	strategy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts), ctx)
	err := backoff.RetryNotify(ping, strategy, func(err error, d time.Duration) {
		log.Warn().Err(err).Str("module", "adapters.store").Str("addr", cfg.Address).Dur("retry_in", d).Msg("redis ping failed")
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func roomKey(id domain.RoomID) string         { return fmt.Sprintf("room:%s", id) }
func participantsKey(id domain.RoomID) string { return fmt.Sprintf("room:%s:participants", id) }
func activeCallKey(id domain.RoomID) string   { return fmt.Sprintf("room:%s:call", id) }
func messagesKey(id domain.RoomID) string     { return fmt.Sprintf("room:%s:messages", id) }
func callKey(id domain.CallID) string         { return fmt.Sprintf("call:%s", id) }
func presenceKey(user domain.UserID) string   { return fmt.Sprintf("presence:%s", user) }

// RedisStore implements RoomStore, CallStore and MessageStore on Redis:
// a room hash with a participant set, a call hash and a message list per room.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) PutRoom(ctx context.Context, room domain.Room) error {
	if room.ID == "" {
		return domain.ErrRoomIDEmpty
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, roomKey(room.ID), "name", room.Name, "is_help_desk", strconv.FormatBool(room.IsHelpDesk))
		p.Del(ctx, participantsKey(room.ID))
		if len(room.ParticipantIDs) > 0 {
			members := make([]interface{}, 0, len(room.ParticipantIDs))
			for _, u := range room.ParticipantIDs {
				members = append(members, string(u))
			}
			p.SAdd(ctx, participantsKey(room.ID), members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put room %s: %w", room.ID, err)
	}
	return nil
}

func (s *RedisStore) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var (
		fields  *redis.StringStringMapCmd
		members *redis.StringSliceCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		fields = p.HGetAll(ctx, roomKey(id))
		members = p.SMembers(ctx, participantsKey(id))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	if len(fields.Val()) == 0 {
		return nil, fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	room := &domain.Room{
		ID:         id,
		Name:       fields.Val()["name"],
		IsHelpDesk: fields.Val()["is_help_desk"] == "true",
	}
	for _, m := range members.Val() {
		room.ParticipantIDs = append(room.ParticipantIDs, domain.UserID(m))
	}
	return room, nil
}

func (s *RedisStore) StartCall(ctx context.Context, room domain.RoomID) (domain.CallID, error) {
	id := domain.CallID(uuid.NewString())
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, callKey(id), "room_id", string(room), "started_at", s.now().UTC().Format(time.RFC3339Nano))
		p.Set(ctx, activeCallKey(room), string(id), 0)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("start call in %s: %w", room, err)
	}
	return id, nil
}

// EndCall stamps ended_at. An empty id ends the active call of room.
func (s *RedisStore) EndCall(ctx context.Context, room domain.RoomID, id domain.CallID) error {
	if id == "" {
		active, err := s.client.Get(ctx, activeCallKey(room)).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("active call of room %s: %w", room, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("end call in %s: %w", room, err)
		}
		id = domain.CallID(active)
	}
	exists, err := s.client.Exists(ctx, callKey(id)).Result()
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, callKey(id), "ended_at", s.now().UTC().Format(time.RFC3339Nano))
		p.Del(ctx, activeCallKey(room))
		return nil
	})
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Call(ctx context.Context, id domain.CallID) (*domain.Call, error) {
	fields, err := s.client.HGetAll(ctx, callKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get call %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
	}
	call := &domain.Call{ID: id, RoomID: domain.RoomID(fields["room_id"])}
	if call.StartedAt, err = time.Parse(time.RFC3339Nano, fields["started_at"]); err != nil {
		return nil, fmt.Errorf("call %s started_at: %w", id, err)
	}
	if v, ok := fields["ended_at"]; ok {
		ended, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("call %s ended_at: %w", id, err)
		}
		call.EndedAt = &ended
	}
	return call, nil
}

func (s *RedisStore) CreateCallMessage(ctx context.Context, room domain.RoomID, id domain.CallID, action domain.CallAction) error {
	msg := domain.Message{
		ID:        uuid.NewString(),
		RoomID:    room,
		Type:      domain.MessageTypeCall,
		Body:      string(action),
		CallID:    id,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.client.RPush(ctx, messagesKey(room), data).Err()
}

func (s *RedisStore) Messages(ctx context.Context, room domain.RoomID) ([]domain.Message, error) {
	raw, err := s.client.LRange(ctx, messagesKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", room, err)
	}
	out := make([]domain.Message, 0, len(raw))
	for _, r := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
