package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	if err := conn.Send(core.EventPong, nil); err != nil {
		log.Debug().Err(err).Str("module", "adapters.signal").Str("conn", string(conn.id)).Msg("pong not sent")
	}
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, err error) {
	if sendErr := conn.Send(core.EventError, core.ErrorPayload{Error: err.Error()}); sendErr != nil {
		log.Debug().Err(sendErr).Str("module", "adapters.signal").Str("conn", string(conn.id)).Msg("error not sent")
	}
}
