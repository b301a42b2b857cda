package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize = 1024
	defaultTimeout   = 5 * time.Second
)

// TokenVerifier resolves a client token into the user it was issued for.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// SignalClassifier labels a raw signal payload (offer, answer, candidate...).
type SignalClassifier func(signal json.RawMessage) string

// Deps are the collaborators of a Router. Rooms, Calls and Messages are required.
type Deps struct {
	NodeID   string
	Rooms    core.RoomStore
	Calls    core.CallStore
	Messages core.MessageStore
	// Bus spreads call.start/call.end to every node. Nil routes them locally.
	Bus      core.EventPublisher
	Presence core.Presence
	Verifier TokenVerifier
	Limiter  *JoinRateLimiter
	Policy   Policy
	Classify SignalClassifier
	// Timeout bounds every collaborator call.
	Timeout   time.Duration
	QueueSize int
}

// Router is the EventRouter. It owns the registry and call table of the
// process and mutates them only from the dispatch loop started by Run.
type Router struct {
	deps     Deps
	registry *core.Registry
	fanout   *core.Fanout
	calls    *core.Calls

	queue chan Inbound
	done  chan struct{}
}

func NewRouter(d Deps) *Router {
	if d.Policy == nil {
		d.Policy = KickPolicy{}
	}
	if d.Classify == nil {
		d.Classify = func(json.RawMessage) string { return "unknown" }
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultTimeout
	}
	if d.QueueSize <= 0 {
		d.QueueSize = defaultQueueSize
	}
	reg := core.NewRegistry()
	r := &Router{
		deps:     d,
		registry: reg,
		fanout:   core.NewFanout(reg),
		queue:    make(chan Inbound, d.QueueSize),
		done:     make(chan struct{}),
	}
	r.calls = core.NewCalls(core.NewCallTable(), core.NewCallStates(), r)
	return r
}

func (r *Router) Registry() *core.Registry { return r.registry }

func (r *Router) CallTable() *core.CallTable { return r.calls.Table() }

// Run is the dispatch loop. Every Inbound is fully handled before the next one starts.
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)
	log.Info().Str("module", "app.router").Str("node", r.deps.NodeID).Msg("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.router").Msg("dispatch loop stopped")
			return
		case in := <-r.queue:
			r.Dispatch(ctx, in)
		}
	}
}

// Submit queues in for the dispatch loop. It blocks while the queue is full.
func (r *Router) Submit(ctx context.Context, in Inbound) error {
	select {
	case <-r.done:
		return domain.ErrConnectionClosed
	default:
	}
	select {
	case r.queue <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return domain.ErrConnectionClosed
	}
}

// Dispatch handles in synchronously on the calling goroutine.
func (r *Router) Dispatch(ctx context.Context, in Inbound) {
	metrics.InboundEvents.WithLabelValues(in.Name()).Inc()
	in.dispatch(ctx, r)
}

// Emit implements core.Emitter. Sends never block; a full queue goes to the policy.
func (r *Router) Emit(to domain.ConnID, event string, payload any) {
	conn, ok := r.registry.Get(to)
	if !ok {
		metrics.DroppedDeliveries.WithLabelValues("unknown_conn").Inc()
		log.Debug().Str("module", "app.router").Str("conn", string(to)).Str("event", event).Msg("target not connected, dropped")
		return
	}
	err := conn.Send(event, payload)
	switch {
	case err == nil:
		metrics.Deliveries.WithLabelValues(event).Inc()
	case errors.Is(err, domain.ErrBackpressure):
		metrics.DroppedDeliveries.WithLabelValues("backpressure").Inc()
		action := r.deps.Policy.OnBackPressure(conn)
		log.Warn().Str("module", "app.router").Str("conn", string(to)).Str("event", event).Int("action", int(action)).Msg("outbound queue full")
		if action == KickMember {
			conn.Close()
		}
	default:
		metrics.DroppedDeliveries.WithLabelValues("transport").Inc()
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(to)).Str("event", event).Msg("send failed")
	}
}

func (r *Router) emitError(to domain.ConnID, err error) {
	r.Emit(to, core.EventError, core.ErrorPayload{Error: err.Error()})
}

func (r *Router) collab(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.deps.Timeout)
}

func (r *Router) syncCallGauge() {
	metrics.ActiveCalls.Set(float64(r.calls.Table().Count()))
}

func (e Connected) dispatch(_ context.Context, r *Router) {
	r.registry.Attach(e.Conn)
	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
}

// Disconnected runs the cleanup cascade: call membership first so that
// remaining participants are notified, then registry and presence.
func (e Disconnected) dispatch(ctx context.Context, r *Router) {
	if res, ok := r.calls.Disconnect(e.ConnID); ok {
		r.afterLeave(ctx, res)
	}
	user, ok := r.registry.Detach(e.ConnID)
	if !ok {
		return
	}
	if user != "" {
		r.presenceRemove(ctx, user, e.ConnID)
	}
	metrics.ActiveConnections.Dec()
	log.Info().Str("module", "app.router").Str("conn", string(e.ConnID)).Str("user", string(user)).Msg("connection cleaned up")
}

func (e Heartbeat) dispatch(ctx context.Context, r *Router) {
	if r.deps.Presence == nil {
		return
	}
	user, ok := r.registry.UserOf(e.ConnID)
	if !ok || user == "" {
		return
	}
	cctx, cancel := r.collab(ctx)
	defer cancel()
	if err := r.deps.Presence.Refresh(cctx, user, e.ConnID); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("presence_refresh").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("user", string(user)).Msg("presence refresh failed")
	}
}

func (e JoinUserChannel) dispatch(ctx context.Context, r *Router) {
	user := e.UserID
	if r.deps.Verifier != nil {
		subject, err := r.deps.Verifier.Verify(e.Token)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("join-user-channel rejected")
			r.emitError(e.ConnID, domain.ErrUnauthorized)
			return
		}
		user = subject
	}
	if user == "" {
		r.emitError(e.ConnID, domain.ErrUserIDEmpty)
		return
	}
	prev, _ := r.registry.UserOf(e.ConnID)
	r.registry.Register(e.ConnID, user)
	if prev == user {
		return
	}
	if prev != "" {
		r.presenceRemove(ctx, prev, e.ConnID)
	}
	if r.deps.Presence != nil {
		cctx, cancel := r.collab(ctx)
		defer cancel()
		if err := r.deps.Presence.Add(cctx, user, e.ConnID); err != nil {
			metrics.CollaboratorFailures.WithLabelValues("presence_add").Inc()
			log.Error().Err(err).Str("module", "app.router").Str("user", string(user)).Msg("presence add failed")
		}
	}
}

func (r *Router) presenceRemove(ctx context.Context, user domain.UserID, conn domain.ConnID) {
	if r.deps.Presence == nil {
		return
	}
	cctx, cancel := r.collab(ctx)
	defer cancel()
	if err := r.deps.Presence.Remove(cctx, user, conn); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("presence_remove").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("user", string(user)).Msg("presence remove failed")
	}
}

func (e JoinChatRoom) dispatch(_ context.Context, r *Router) {
	r.registry.Subscribe(e.ConnID, e.RoomID)
}

func (e LeaveChatRoom) dispatch(_ context.Context, r *Router) {
	r.registry.Unsubscribe(e.ConnID, e.RoomID)
}

func (e Typing) dispatch(_ context.Context, r *Router) {
	user, ok := r.registry.UserOf(e.ConnID)
	if !ok || user == "" {
		log.Debug().Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("typing from anonymous connection ignored")
		return
	}
	payload := core.TypingPayload{RoomID: e.RoomID, UserID: user, IsTyping: e.IsTyping}
	for _, sub := range r.registry.Subscribers(e.RoomID) {
		if sub != e.ConnID {
			r.Emit(sub, core.EventTyping, payload)
		}
	}
}

func (e CallJoin) dispatch(ctx context.Context, r *Router) {
	user := e.User
	registered, ok := r.registry.UserOf(e.ConnID)
	switch {
	case ok && registered != "":
		user.ID = registered
	case r.deps.Verifier != nil:
		log.Warn().Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("call join from unverified connection")
		r.emitError(e.ConnID, domain.ErrUnauthorized)
		return
	}
	if r.deps.Limiter != nil && !r.deps.Limiter.Allow(limiterKey(e.ConnID, registered)) {
		log.Warn().Str("module", "app.router").Str("conn", string(e.ConnID)).Str("user", string(registered)).Str("room", string(e.RoomID)).Msg("call join rate limited")
		r.emitError(e.ConnID, errRateLimited)
		return
	}
	// The old call is closed out before the new one starts.
	if current, ok := r.calls.Table().RoomOf(e.ConnID); ok && current != e.RoomID {
		if left, ok := r.calls.Leave(e.ConnID); ok {
			r.afterLeave(ctx, left)
		}
	}
	res, prev, err := r.calls.Join(e.ConnID, e.RoomID, user)
	if prev != nil {
		r.afterLeave(ctx, *prev)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("conn", string(e.ConnID)).Str("room", string(e.RoomID)).Msg("call join ignored")
		return
	}
	if res.Created {
		r.callStarted(ctx, e.RoomID)
	}
	r.syncCallGauge()
}

// limiterKey is the registered user, or the connection itself when anonymous.
func limiterKey(conn domain.ConnID, user domain.UserID) domain.UserID {
	if user != "" {
		return user
	}
	return domain.UserID("conn:" + string(conn))
}

func (e CallSendSignal) dispatch(_ context.Context, r *Router) {
	if err := r.calls.SendSignal(e.ConnID, e.PeerID, e.Signal, e.IsShareScreen, e.User); err != nil {
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("send signal ignored")
		return
	}
	metrics.SignalRelays.WithLabelValues("offer", r.deps.Classify(e.Signal)).Inc()
}

func (e CallReturnSignal) dispatch(_ context.Context, r *Router) {
	if err := r.calls.ReturnSignal(e.ConnID, e.CallerID, e.Signal, e.IsShareScreen); err != nil {
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("return signal ignored")
		return
	}
	metrics.SignalRelays.WithLabelValues("answer", r.deps.Classify(e.Signal)).Inc()
}

func (e CallShareScreen) dispatch(_ context.Context, r *Router) {
	if err := r.calls.ShareScreen(e.ConnID, e.RoomID); err != nil {
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("share screen ignored")
	}
}

func (e CallStopShareScreen) dispatch(_ context.Context, r *Router) {
	if err := r.calls.StopShareScreen(e.ConnID, e.RoomID); err != nil {
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(e.ConnID)).Msg("stop share screen ignored")
	}
}

func (e CallLeave) dispatch(ctx context.Context, r *Router) {
	if res, ok := r.calls.Leave(e.ConnID); ok {
		r.afterLeave(ctx, res)
	}
}

// A deleted room also loses its call on this node.
func (e Domain) dispatch(ctx context.Context, r *Router) {
	r.route(ctx, e.Event)
	if del, ok := e.Event.(core.RoomDelete); ok {
		if res, ended := r.calls.EvictRoom(del.RoomID); ended {
			r.afterLeave(ctx, res)
		}
	}
}

func (r *Router) afterLeave(ctx context.Context, res core.LeaveResult) {
	if res.Ended {
		r.callEnded(ctx, res)
	}
	r.syncCallGauge()
}

// callStarted persists a new call. Failures are logged and never undo the
// in-memory session.
func (r *Router) callStarted(ctx context.Context, room domain.RoomID) {
	cctx, cancel := r.collab(ctx)
	defer cancel()

	id, err := r.deps.Calls.StartCall(cctx, room)
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("start_call").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("room", string(room)).Msg("start call failed")
	} else {
		r.calls.Table().SetCallID(room, id)
	}
	if err := r.deps.Messages.CreateCallMessage(cctx, room, id, domain.CallStarted); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("call_message").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("room", string(room)).Msg("call started message failed")
	}
	log.Info().Str("module", "app.router").Str("room", string(room)).Str("call", string(id)).Msg("call started")
	r.publish(ctx, core.CallStart{RoomID: room, CallID: id})
}

// callEnded runs exactly once per destroyed session.
func (r *Router) callEnded(ctx context.Context, res core.LeaveResult) {
	cctx, cancel := r.collab(ctx)
	defer cancel()

	if err := r.deps.Calls.EndCall(cctx, res.RoomID, res.CallID); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("end_call").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("room", string(res.RoomID)).Msg("end call failed")
	}
	if err := r.deps.Messages.CreateCallMessage(cctx, res.RoomID, res.CallID, domain.CallEnded); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("call_message").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("room", string(res.RoomID)).Msg("call ended message failed")
	}
	log.Info().Str("module", "app.router").Str("room", string(res.RoomID)).Str("call", string(res.CallID)).Msg("call ended")
	r.publish(ctx, core.CallEnd{RoomID: res.RoomID, CallID: res.CallID})
}

// publish hands ev to the bus. Without a bus, or when the bus fails, the
// event is routed on this node only.
func (r *Router) publish(ctx context.Context, ev core.DomainEvent) {
	if r.deps.Bus == nil {
		r.route(ctx, ev)
		return
	}
	cctx, cancel := r.collab(ctx)
	defer cancel()
	if err := r.deps.Bus.Publish(cctx, ev); err != nil {
		metrics.DomainEvents.WithLabelValues(string(ev.Kind()), "publish_failed").Inc()
		log.Error().Err(err).Str("module", "app.router").Str("kind", string(ev.Kind())).Msg("publish failed, routing locally")
		r.route(ctx, ev)
	}
}

// route resolves the audience of ev into live connections and emits to each.
func (r *Router) route(ctx context.Context, ev core.DomainEvent) {
	kind := string(ev.Kind())
	aud := ev.Audience()
	users := aud.Users
	if len(users) == 0 {
		if aud.Room == "" {
			metrics.DomainEvents.WithLabelValues(kind, "invalid").Inc()
			log.Warn().Str("module", "app.router").Str("kind", kind).Msg("event without audience dropped")
			return
		}
		cctx, cancel := r.collab(ctx)
		room, err := r.deps.Rooms.GetRoom(cctx, aud.Room)
		cancel()
		if err != nil {
			outcome := "lookup_failed"
			if errors.Is(err, domain.ErrNotFound) {
				outcome = "not_found"
			}
			metrics.DomainEvents.WithLabelValues(kind, outcome).Inc()
			log.Warn().Err(err).Str("module", "app.router").Str("kind", kind).Str("room", string(aud.Room)).Msg("room lookup failed, event dropped")
			return
		}
		users = room.ParticipantIDs
	}

	targets, offline := r.fanout.Resolve(users...)
	payload := ev.Payload()
	for _, conn := range targets {
		r.Emit(conn, kind, payload)
	}
	metrics.DomainEvents.WithLabelValues(kind, "routed").Inc()
	log.Debug().Str("module", "app.router").Str("kind", kind).Str("room", string(aud.Room)).
		Int("targets", len(targets)).Int("offline", len(offline)).Msg("event routed")
}

var errRateLimited = errors.New("call join rate limited")
