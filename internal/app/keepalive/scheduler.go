// Package keepalive pings the locus while a session is joined.
package keepalive

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/clock"
	"github.com/dkeye/huddle/internal/core"
	"github.com/rs/zerolog"
)

// Interval is the delay between pings for a server-advertised keepalive
// period: (secs-1)*750ms, under the nominal period on purpose.
func Interval(secs int) time.Duration {
	return time.Duration(secs-1) * 750 * time.Millisecond
}

type Options struct {
	// MinSecs is the smallest advertised period the scheduler accepts.
	MinSecs        int
	RequestTimeout time.Duration
	Clock          clock.Clock
	Logger         zerolog.Logger
}

type Scheduler struct {
	mu      sync.Mutex
	tr      core.Transport
	clock   clock.Clock
	minSecs int
	timeout time.Duration
	logger  zerolog.Logger

	running  bool
	gen      int
	url      string
	interval time.Duration
	timer    clock.Timer
}

func New(tr core.Transport, opts Options) *Scheduler {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scheduler{
		tr:      tr,
		clock:   c,
		minSecs: opts.MinSecs,
		timeout: timeout,
		logger:  opts.Logger.With().Str("module", "keepalive").Logger(),
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins pinging url. It does nothing when already running, or when
// url is empty or secs is below the minimum.
func (s *Scheduler) Start(url string, secs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	if url == "" || secs < s.minSecs || secs < 2 {
		s.logger.Warn().Str("url", url).Int("secs", secs).Int("min_secs", s.minSecs).Msg("keepalive not started")
		return
	}
	s.running = true
	s.gen++
	s.url = url
	s.interval = Interval(secs)
	s.scheduleLocked(s.gen)
	s.logger.Info().Dur("interval", s.interval).Msg("keepalive started")
}

func (s *Scheduler) scheduleLocked(gen int) {
	s.timer = s.clock.AfterFunc(s.interval, func() { s.tick(gen) })
}

func (s *Scheduler) tick(gen int) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	url := s.url
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	_, err := s.tr.Do(ctx, core.Request{Method: http.MethodGet, URL: url})
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.gen {
		return
	}
	if err != nil {
		s.running = false
		s.timer = nil
		s.logger.Error().Err(err).Msg("keepalive failed, stopping")
		return
	}
	s.scheduleLocked(gen)
}

// Stop cancels the next ping. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.logger.Debug().Msg("keepalive stopped")
}
