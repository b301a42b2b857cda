package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dispatcher accepts work for the router's dispatch loop.
type Dispatcher interface {
	Submit(ctx context.Context, in app.Inbound) error
}

type SignalWSController struct {
	Router   Dispatcher
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewSignalWSController(router Dispatcher, cfg config.WebSocketConfig) *SignalWSController {
	return &SignalWSController{
		Router: router,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WsSignalConn is the core.Connection of one websocket.
type WsSignalConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ core.Connection = (*WsSignalConn)(nil)

func newWsSignalConn(id domain.ConnID, ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		id:   id,
		conn: ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *WsSignalConn) ID() domain.ConnID { return c.id }

func (c *WsSignalConn) Done() <-chan struct{} { return c.done }

// Send encodes the envelope and queues it without blocking.
func (c *WsSignalConn) Send(event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	return c.TrySend(frame)
}

func (c *WsSignalConn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrConnectionClosed
	}
	select {
	case c.send <- frame:
	default:
		return domain.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	close(c.done)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func encodeFrame(event string, payload any) ([]byte, error) {
	env := core.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w: %w", event, domain.ErrBadPayload, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// HandleSignal upgrades the request and serves the connection until it drops.
// ctx is the server lifetime; the request context ends with the upgrade.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(domain.ConnID(uuid.NewString()), ws, ctl.cfg.SendBuffer)
	log.Info().Str("module", "adapters.signal").Str("conn", string(conn.id)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	if err := ctl.Router.Submit(ctx, app.Connected{Conn: conn}); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("router unavailable, closing")
		conn.Close()
		return
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}
