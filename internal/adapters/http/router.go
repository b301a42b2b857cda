package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

// RoomWriter seeds rooms into a store owned by this process.
type RoomWriter interface {
	PutRoom(ctx context.Context, room domain.Room) error
}

type Deps struct {
	Router   *app.Router
	Signal   *signal.SignalWSController
	Events   core.EventPublisher
	Rooms    RoomWriter
	Presence core.Presence
	WebRTC   webrtc.Configuration
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps an anonymous per-browser token in the session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.NodeID})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		d.Signal.HandleSignal(ctx, c)
	})

	h := &handlers{deps: d}
	api.POST("/events", h.publishEvent)
	if d.Rooms != nil {
		api.PUT("/rooms/:id", h.putRoom)
	}
	api.GET("/calls", h.listCalls)
	api.GET("/calls/:roomId", h.getCall)
	api.GET("/ice-servers", h.iceServers)
	api.GET("/connections", h.listConnections)
	if d.Presence != nil {
		api.GET("/users/:id/presence", h.presence)
	}

	log.Info().Str("module", "adapters.http").Str("node", cfg.NodeID).Msg("router setup")
	return r
}

type handlers struct {
	deps Deps
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, core.ErrorPayload{Error: err.Error()})
}

// publishEvent is the ingress for domain events raised by backend services.
func (h *handlers) publishEvent(c *gin.Context) {
	var env core.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ev, err := core.ParseDomainEvent(core.EventKind(env.Event), env.Data)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrUnknownEvent) {
			status = http.StatusUnprocessableEntity
		}
		abort(c, status, err)
		return
	}
	if err := h.deps.Events.Publish(c.Request.Context(), ev); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("kind", env.Event).Msg("publish failed")
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type roomRequest struct {
	Name           string          `json:"name"`
	ParticipantIDs []domain.UserID `json:"participantIds"`
	IsHelpDesk     bool            `json:"isHelpDesk"`
}

func (h *handlers) putRoom(c *gin.Context) {
	var body roomRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	room := domain.Room{
		ID:             domain.RoomID(c.Param("id")),
		Name:           body.Name,
		ParticipantIDs: body.ParticipantIDs,
		IsHelpDesk:     body.IsHelpDesk,
	}
	if err := h.deps.Rooms.PutRoom(c.Request.Context(), room); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handlers) listCalls(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Router.CallTable().List())
}

func (h *handlers) getCall(c *gin.Context) {
	info, ok := h.deps.Router.CallTable().Get(domain.RoomID(c.Param("roomId")))
	if !ok {
		abort(c, http.StatusNotFound, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.deps.WebRTC.ICEServers})
}

func (h *handlers) listConnections(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Router.Registry().Snapshot())
}

func (h *handlers) presence(c *gin.Context) {
	user := domain.UserID(c.Param("id"))
	entries, err := h.deps.Presence.Connections(c.Request.Context(), user)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": user, "connections": entries})
}
