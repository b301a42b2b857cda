package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(ctl.cfg.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the router is told
// to run the disconnect cleanup.
func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("readPump closing")
		c.Close()
		if err := ctl.Router.Submit(ctx, app.Disconnected{ConnID: c.id}); err != nil {
			log.Debug().Err(err).Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("disconnect not dispatched")
		}
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		if err := ctl.Router.Submit(ctx, app.Heartbeat{ConnID: c.id}); err != nil {
			return err
		}
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		if err := ctl.handleFrame(ctx, c, data); err != nil {
			return
		}
	}
}

// handleFrame decodes one inbound frame. Only a dead router stops the pump;
// bad frames are answered or dropped.
func (ctl *SignalWSController) handleFrame(ctx context.Context, c *WsSignalConn, data []byte) error {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Str("conn", string(c.id)).Msg("bad json")
		return nil
	}

	if env.Event == core.EventPing {
		ctl.handlePing(c)
		return nil
	}

	in, err := app.DecodeClientEvent(c.id, env)
	switch {
	case errors.Is(err, domain.ErrUnknownEvent):
		log.Warn().Str("module", "adapters.signal").Str("conn", string(c.id)).Str("event", env.Event).Msg("unknown event")
		return nil
	case err != nil:
		log.Warn().Err(err).Str("module", "adapters.signal").Str("conn", string(c.id)).Str("event", env.Event).Msg("malformed event")
		ctl.sendError(c, err)
		return nil
	}
	return ctl.Router.Submit(ctx, in)
}
