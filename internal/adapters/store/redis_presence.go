package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisPresence shares presence between nodes: one hash per user,
// connection id -> entry, expiring ttl after the last write.
type RedisPresence struct {
	client *redis.Client
	nodeID string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisPresence(client *redis.Client, nodeID string, ttl time.Duration) *RedisPresence {
	return &RedisPresence{client: client, nodeID: nodeID, ttl: ttl, now: time.Now}
}

func (p *RedisPresence) Add(ctx context.Context, user domain.UserID, conn domain.ConnID) error {
	data, err := json.Marshal(core.PresenceEntry{ConnID: conn, NodeID: p.nodeID, SeenAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}
	key := presenceKey(user)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, string(conn), data)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence add %s: %w", user, err)
	}
	return nil
}

func (p *RedisPresence) Remove(ctx context.Context, user domain.UserID, conn domain.ConnID) error {
	if err := p.client.HDel(ctx, presenceKey(user), string(conn)).Err(); err != nil {
		return fmt.Errorf("presence remove %s: %w", user, err)
	}
	return nil
}

func (p *RedisPresence) Refresh(ctx context.Context, user domain.UserID, conn domain.ConnID) error {
	return p.Add(ctx, user, conn)
}

// Connections drops entries older than ttl; a node that died without
// cleaning up leaves such entries behind.
func (p *RedisPresence) Connections(ctx context.Context, user domain.UserID) ([]core.PresenceEntry, error) {
	raw, err := p.client.HGetAll(ctx, presenceKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence of %s: %w", user, err)
	}
	cutoff := p.now().Add(-p.ttl)
	out := make([]core.PresenceEntry, 0, len(raw))
	var stale []string
	for conn, v := range raw {
		var e core.PresenceEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			log.Warn().Err(err).Str("module", "adapters.store").Str("user", string(user)).Msg("bad presence entry")
			stale = append(stale, conn)
			continue
		}
		if e.SeenAt.Before(cutoff) {
			stale = append(stale, conn)
			continue
		}
		out = append(out, e)
	}
	if len(stale) > 0 {
		if err := p.client.HDel(ctx, presenceKey(user), stale...).Err(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.store").Str("user", string(user)).Msg("stale presence cleanup failed")
		}
	}
	slices.SortFunc(out, func(a, b core.PresenceEntry) int { return cmp.Compare(a.ConnID, b.ConnID) })
	return out, nil
}
