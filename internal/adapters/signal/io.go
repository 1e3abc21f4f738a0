package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

func (s *WSEventSource) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := s.opts.Clock.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Error().Err(err).Msg("writePump ping error")
				return
			}
		}
	}
}

func (s *WSEventSource) readPump(ctx context.Context, conn *websocket.Conn, handle func(domain.LocusEvent)) error {
	defer s.logger.Info().Msg("readPump closing")

	pongWait := 2 * s.opts.PingPeriod
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Msg("readPump read error")
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		ev, ok := decodeEvent(data)
		if !ok {
			s.logger.Warn().Int("bytes", len(data)).Msg("ignoring non-locus frame")
			continue
		}
		handle(ev)
	}
}

// decodeEvent accepts both the {"data": {...}} envelope and a bare event.
func decodeEvent(data []byte) (domain.LocusEvent, bool) {
	var env struct {
		Data *domain.LocusEvent `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.LocusEvent{}, false
	}
	if env.Data != nil && (env.Data.Type != "" || env.Data.LocusURL != "") {
		return *env.Data, true
	}
	var ev domain.LocusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.LocusEvent{}, false
	}
	if ev.Type == "" && ev.LocusURL == "" {
		return domain.LocusEvent{}, false
	}
	return ev, true
}
