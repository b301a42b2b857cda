package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs against a live Redis when HUDDLE_TEST_REDIS_ADDR is set.
func redisBus(t *testing.T) (*RedisBus, *redis.Client, string) {
	t.Helper()
	addr := os.Getenv("HUDDLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HUDDLE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, PoolSize: 4})
	t.Cleanup(func() { _ = client.Close() })
	channel := "huddle:test:" + uuid.NewString()
	b := NewRedisBus(client, channel)
	t.Cleanup(func() { _ = b.Close() })
	return b, client, channel
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	req := require.New(t)
	b, client, channel := redisBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := b.Subscribe(ctx)
	req.NoError(err)

	// Given a garbage frame on the channel followed by a real event
	req.NoError(client.Publish(ctx, channel, "not an envelope").Err())
	req.NoError(b.Publish(ctx, core.RoomDelete{RoomID: "R1", ParticipantIDs: []domain.UserID{"A"}}))

	// Then only the decoded event comes out
	select {
	case ev := <-events:
		del, ok := ev.(core.RoomDelete)
		req.True(ok)
		req.Equal(domain.RoomID("R1"), del.RoomID)
		req.Equal([]domain.UserID{"A"}, del.ParticipantIDs)
	case <-ctx.Done():
		t.Fatal("event not received")
	}
}

func TestRedisBus_SubscribeAfterClose(t *testing.T) {
	req := require.New(t)
	b, _, _ := redisBus(t)

	req.NoError(b.Close())

	_, err := b.Subscribe(context.Background())
	req.ErrorIs(err, domain.ErrConnectionClosed)
}
