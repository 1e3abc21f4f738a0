package signal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/huddle/internal/clock"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrNoEventURL = errors.New("signal: no event url configured")

type Options struct {
	URL        string
	Token      string
	ReadLimit  int64
	PingPeriod time.Duration
	Dialer     *websocket.Dialer
	// Clock drives the ping ticker; nil means the real clock.
	Clock  clock.Clock
	Logger zerolog.Logger
}

// WSEventSource receives locus events over the device websocket.
type WSEventSource struct {
	opts   Options
	logger zerolog.Logger
}

func NewWSEventSource(opts Options) *WSEventSource {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	return &WSEventSource{
		opts:   opts,
		logger: opts.Logger.With().Str("module", "signal").Logger(),
	}
}

// Run dials the event url and delivers events to handle until ctx is done
// or the socket fails.
func (s *WSEventSource) Run(ctx context.Context, handle func(domain.LocusEvent)) error {
	if s.opts.URL == "" {
		return ErrNoEventURL
	}
	header := http.Header{}
	if s.opts.Token != "" {
		header.Set("Authorization", "Bearer "+s.opts.Token)
	}
	conn, _, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, header)
	if err != nil {
		return err
	}
	s.logger.Info().Str("url", s.opts.URL).Msg("event socket connected")
	if s.opts.ReadLimit > 0 {
		conn.SetReadLimit(s.opts.ReadLimit)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go s.writePump(ctx, conn)
	return s.readPump(ctx, conn, handle)
}

// Listener keeps an event source running, redialling after Backoff
// whenever it fails.
type Listener struct {
	Source  core.EventSource
	Backoff time.Duration
	// Clock paces the redial; nil means the real clock.
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Run blocks until ctx is done or the source has no url to dial.
func (l *Listener) Run(ctx context.Context, handle func(domain.LocusEvent)) {
	clk := l.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := l.Logger.With().Str("module", "signal").Logger()
	for {
		err := l.Source.Run(ctx, handle)
		if ctx.Err() != nil {
			logger.Info().Msg("listener stopped")
			return
		}
		if errors.Is(err, ErrNoEventURL) {
			logger.Warn().Msg("no event url, locus events disabled")
			return
		}
		logger.Warn().Err(err).Dur("backoff", l.Backoff).Msg("event socket dropped")
		select {
		case <-ctx.Done():
			return
		case <-clk.After(l.Backoff):
		}
	}
}
