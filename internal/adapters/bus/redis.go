package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisBus spreads events over one Redis pub/sub channel shared by all nodes.
// Every node receives its own publications too.
type RedisBus struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

var _ core.EventBus = (*RedisBus)(nil)

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, ev core.DomainEvent) error {
	data, err := core.EncodeDomainEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Kind(), err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan core.DomainEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, domain.ErrConnectionClosed
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	b.subs = append(b.subs, pubsub)
	b.mu.Unlock()

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	out := make(chan core.DomainEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := core.DecodeDomainEvent([]byte(msg.Payload))
				if err != nil {
					metrics.DomainEvents.WithLabelValues("unknown", "decode_failed").Inc()
					log.Warn().Err(err).Str("module", "adapters.bus").Str("bus", "redis").Msg("bad event on bus")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	// Subscriber goroutines close their own PubSub too; the second close is harmless.
	for _, s := range b.subs {
		_ = s.Close()
	}
	b.subs = nil
	return nil
}
