package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	kafkaMaxRetries     = 3
	kafkaInitialBackoff = 100 * time.Millisecond
	kafkaMaxBackoff     = 5 * time.Second
	kafkaReadyTimeout   = 10 * time.Second
)

// KafkaBus carries events on one topic. Each node consumes through its own
// consumer group, so every node sees every event.
type KafkaBus struct {
	topic         string
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup
	readyWait     time.Duration

	mu         sync.RWMutex
	closed     bool
	errorsOnce sync.Once
}

var _ core.EventBus = (*KafkaBus)(nil)

func kafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = kafkaMaxRetries
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy

	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Group.Session.Timeout = 10 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second

	cfg.Version = sarama.V2_8_0_0
	return cfg
}

func NewKafkaBus(cfg config.KafkaConfig, nodeID string) (*KafkaBus, error) {
	sc := kafkaConfig()

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	groupID := fmt.Sprintf("%s-%s", cfg.GroupID, nodeID)
	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, sc)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}
	log.Info().Str("module", "adapters.bus").Str("topic", cfg.Topic).Str("group", groupID).Msg("kafka bus ready")

	return &KafkaBus{
		topic:         cfg.Topic,
		producer:      producer,
		consumerGroup: consumerGroup,
	}, nil
}

// Publish sends ev keyed by its room, so per-room order holds within a partition.
func (b *KafkaBus) Publish(ctx context.Context, ev core.DomainEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return domain.ErrConnectionClosed
	}
	b.mu.RUnlock()

	data, err := core.EncodeDomainEvent(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(ev.Audience().Room),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(ev.Kind())},
		},
		Timestamp: time.Now(),
	}

	operation := func() error {
		_, _, err := b.producer.SendMessage(msg)
		return err
	}
	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(kafkaInitialBackoff),
				backoff.WithMaxInterval(kafkaMaxBackoff),
			),
			kafkaMaxRetries,
		),
		ctx,
	)
	return backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		metrics.BusPublishRetries.WithLabelValues("kafka").Inc()
		log.Warn().Err(err).Str("module", "adapters.bus").Str("kind", string(ev.Kind())).Dur("retry_in", d).Msg("retrying kafka publish")
	})
}

func (b *KafkaBus) Subscribe(ctx context.Context) (<-chan core.DomainEvent, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, domain.ErrConnectionClosed
	}
	b.mu.RUnlock()

	out := make(chan core.DomainEvent, subscriberBuffer)
	handler := &consumerGroupHandler{
		events: out,
		ready:  make(chan struct{}),
	}
	consumeCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer cancel()
		for {
			// Consume returns on every rebalance and must be called again.
			if err := b.consumerGroup.Consume(consumeCtx, []string{b.topic}, handler); err != nil {
				log.Error().Err(err).Str("module", "adapters.bus").Msg("consumer group stopped")
				return
			}
			if consumeCtx.Err() != nil {
				return
			}
		}
	}()

	b.errorsOnce.Do(func() {
		go func() {
			for err := range b.consumerGroup.Errors() {
				log.Error().Err(err).Str("module", "adapters.bus").Msg("consumer group error")
			}
		}()
	})

	select {
	case <-handler.ready:
		return out, nil
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case <-time.After(b.readyTimeout()):
		cancel()
		return nil, fmt.Errorf("timeout waiting for consumer to be ready")
	}
}

func (b *KafkaBus) readyTimeout() time.Duration {
	if b.readyWait > 0 {
		return b.readyWait
	}
	return kafkaReadyTimeout
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	if err := b.consumerGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer group: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	events chan<- core.DomainEvent
	ready  chan struct{}
	once   sync.Once
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			ev, err := core.DecodeDomainEvent(msg.Value)
			if err != nil {
				// Poison messages are committed so they are not redelivered.
				metrics.DomainEvents.WithLabelValues("unknown", "decode_failed").Inc()
				log.Warn().Err(err).Str("module", "adapters.bus").Str("bus", "kafka").Int64("offset", msg.Offset).Msg("bad event on bus")
				session.MarkMessage(msg, "")
				continue
			}
			select {
			case h.events <- ev:
			case <-session.Context().Done():
				return nil
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
