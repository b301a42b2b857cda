package bus

import (
	"context"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 1024

// MemoryBus delivers events to subscribers of this process only.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[chan core.DomainEvent]struct{}
	closed bool
}

var _ core.EventBus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan core.DomainEvent]struct{})}
}

// Publish never blocks: a subscriber that fell subscriberBuffer events
// behind loses the event.
func (b *MemoryBus) Publish(_ context.Context, ev core.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return domain.ErrConnectionClosed
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			metrics.DomainEvents.WithLabelValues(string(ev.Kind()), "bus_overflow").Inc()
			log.Error().Str("module", "adapters.bus").Str("kind", string(ev.Kind())).Msg("subscriber full, event dropped")
		}
	}
	return nil
}

// Subscribe returns a channel closed when ctx ends or the bus closes.
func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan core.DomainEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, domain.ErrConnectionClosed
	}
	ch := make(chan core.DomainEvent, subscriberBuffer)
	b.subs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()
	return ch, nil
}

func (b *MemoryBus) unsubscribe(ch chan core.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
