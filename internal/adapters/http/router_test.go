package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/bus"
	"github.com/dkeye/Huddle/internal/adapters/rtc"
	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/adapters/store"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine   *gin.Engine
	router   *app.Router
	store    *store.MemoryStore
	presence *store.MemoryPresence
	bus      *bus.MemoryBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:      "test",
		Secret:    "test-secret",
		NodeID:    "node-1",
		WebSocket: config.WebSocketConfig{SendBuffer: 8, PingPeriod: time.Minute, PongWait: 2 * time.Minute, WriteWait: time.Second},
	}
	f := &fixture{
		store:    store.NewMemoryStore(),
		presence: store.NewMemoryPresence("node-1", time.Minute),
		bus:      bus.NewMemoryBus(),
	}
	f.router = app.NewRouter(app.Deps{
		NodeID:   cfg.NodeID,
		Rooms:    f.store,
		Calls:    f.store,
		Messages: f.store,
		Presence: f.presence,
	})
	f.engine = SetupRouter(context.Background(), cfg, Deps{
		Router:   f.router,
		Signal:   signal.NewSignalWSController(f.router, cfg.WebSocket),
		Events:   f.bus,
		Rooms:    f.store,
		Presence: f.presence,
		WebRTC:   rtc.DefaultWebRTCConfig(),
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestHealthzSetsClientSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodGet, "/healthz", "")

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"ok","node":"node-1"}`, w.Body.String())
	req.Contains(w.Header().Get("Set-Cookie"), "HuddleSessions=")
}

func TestPublishEvent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.bus.Subscribe(ctx)
	req.NoError(err)

	// Given a valid message.new envelope
	w := f.do(http.MethodPost, "/api/events",
		`{"event":"message.new","data":{"roomId":"R","message":{"id":"m1"},"clientId":"tmp-1"}}`)

	// Then it is accepted and lands on the bus
	req.Equal(http.StatusAccepted, w.Code)
	select {
	case ev := <-events:
		msg, ok := ev.(core.MessageNew)
		req.True(ok)
		req.Equal(domain.RoomID("R"), msg.RoomID)
		req.Equal("tmp-1", msg.ClientID)
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}
}

func TestPublishEvent_Rejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"unknown kind", `{"event":"room.explode","data":{}}`, http.StatusUnprocessableEntity},
		{"bad data", `{"event":"room.update","data":{"roomId":42}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, f.do(http.MethodPost, "/api/events", tt.body).Code)
		})
	}
}

func TestPutRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodPut, "/api/rooms/R1", `{"name":"support","participantIds":["A","B"],"isHelpDesk":true}`)

	req.Equal(http.StatusOK, w.Code)
	room, err := f.store.GetRoom(context.Background(), "R1")
	req.NoError(err)
	req.Equal([]domain.UserID{"A", "B"}, room.ParticipantIDs)
	req.True(room.IsHelpDesk)
}

func TestCallInspection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	req.JSONEq(`[]`, f.do(http.MethodGet, "/api/calls", "").Body.String())

	// Given an active call in R1
	f.router.Dispatch(context.Background(), app.CallJoin{ConnID: "S1", RoomID: "R1", User: domain.UserSnapshot{ID: "U1", Name: "Ann"}})

	w := f.do(http.MethodGet, "/api/calls/R1", "")
	req.Equal(http.StatusOK, w.Code)
	var info core.CallInfo
	req.NoError(json.Unmarshal(w.Body.Bytes(), &info))
	req.Equal(domain.RoomID("R1"), info.RoomID)
	req.NotEmpty(info.CallID)
	req.Len(info.Participants, 1)
	req.Equal(domain.ConnID("S1"), info.Participants[0].ConnID)

	var list []core.CallInfo
	req.NoError(json.Unmarshal(f.do(http.MethodGet, "/api/calls", "").Body.Bytes(), &list))
	req.Len(list, 1)

	req.Equal(http.StatusNotFound, f.do(http.MethodGet, "/api/calls/none", "").Code)
}

func TestICEServers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/ice-servers", "")

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "stun:stun.l.google.com:19302")
}

func TestPresenceAndConnections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.router.Dispatch(ctx, app.JoinUserChannel{ConnID: "c1", UserID: "U1"})

	w := f.do(http.MethodGet, "/api/users/U1/presence", "")
	req.Equal(http.StatusOK, w.Code)
	var body struct {
		UserID      domain.UserID        `json:"userId"`
		Connections []core.PresenceEntry `json:"connections"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Connections, 1)
	req.Equal("node-1", body.Connections[0].NodeID)

	var conns []core.ConnInfo
	req.NoError(json.Unmarshal(f.do(http.MethodGet, "/api/connections", "").Body.Bytes(), &conns))
	req.Len(conns, 1)
	req.Equal(domain.UserID("U1"), conns[0].UserID)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "huddle_")
}
