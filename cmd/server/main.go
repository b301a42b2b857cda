package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/adapters/auth"
	"github.com/dkeye/Huddle/internal/adapters/bus"
	router "github.com/dkeye/Huddle/internal/adapters/http"
	"github.com/dkeye/Huddle/internal/adapters/rtc"
	wssignal "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/adapters/store"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
)

type stores struct {
	rooms    core.RoomStore
	calls    core.CallStore
	messages core.MessageStore
	presence core.Presence
	writer   router.RoomWriter
	client   *redis.Client
}

func buildStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if strings.EqualFold(cfg.Store.Type, "redis") {
		client, err := store.NewRedisClient(ctx, cfg.Store.Redis)
		if err != nil {
			return nil, err
		}
		s := store.NewRedisStore(client)
		return &stores{
			rooms:    s,
			calls:    s,
			messages: s,
			presence: store.NewRedisPresence(client, cfg.NodeID, cfg.Store.PresenceTTL),
			writer:   s,
			client:   client,
		}, nil
	}
	s := store.NewMemoryStore()
	return &stores{
		rooms:    s,
		calls:    s,
		messages: s,
		presence: store.NewMemoryPresence(cfg.NodeID, cfg.Store.PresenceTTL),
		writer:   s,
	}, nil
}

func buildBus(ctx context.Context, cfg *config.Config) (core.EventBus, func(), error) {
	switch strings.ToLower(cfg.Bus.Type) {
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.Bus.Redis)
		if err != nil {
			return nil, nil, err
		}
		return bus.NewRedisBus(client, cfg.Bus.Channel), func() { _ = client.Close() }, nil
	case "kafka":
		b, err := bus.NewKafkaBus(cfg.Bus.Kafka, cfg.NodeID)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	default:
		return bus.NewMemoryBus(), func() {}, nil
	}
}

// forwardEvents feeds bus events into the dispatch loop until ctx ends.
func forwardEvents(ctx context.Context, events <-chan core.DomainEvent, r *app.Router) {
	for ev := range events {
		if err := r.Submit(ctx, app.Domain{Event: ev}); err != nil {
			log.Warn().Err(err).Str("module", "main").Str("kind", string(ev.Kind())).Msg("event not dispatched")
			return
		}
	}
}

func sweepLimiter(ctx context.Context, l *app.JoinRateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	st, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init stores")
	}
	if st.client != nil {
		defer st.client.Close()
	}

	eventBus, closeBus, err := buildBus(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init event bus")
	}
	defer closeBus()
	defer eventBus.Close()

	limiter := app.NewJoinRateLimiter(cfg.Call.JoinLimit, cfg.Call.JoinWindow)
	deps := app.Deps{
		NodeID:   cfg.NodeID,
		Rooms:    st.rooms,
		Calls:    st.calls,
		Messages: st.messages,
		Bus:      eventBus,
		Presence: st.presence,
		Limiter:  limiter,
		Policy:   app.PolicyFor(cfg.Policy.Backpressure),
		Classify: rtc.ClassifySignal,
		Timeout:  cfg.Collaborators.Timeout,
	}
	if cfg.Auth.Enabled {
		deps.Verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	}
	hub := app.NewRouter(deps)
	go hub.Run(ctx)
	go sweepLimiter(ctx, limiter, cfg.Call.JoinWindow)

	events, err := eventBus.Subscribe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to event bus")
	}
	go forwardEvents(ctx, events, hub)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Router:   hub,
		Signal:   wssignal.NewSignalWSController(hub, cfg.WebSocket),
		Events:   eventBus,
		Rooms:    st.writer,
		Presence: st.presence,
		WebRTC:   rtc.WebRTCConfig(cfg.ICEServers),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("node", cfg.NodeID).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
