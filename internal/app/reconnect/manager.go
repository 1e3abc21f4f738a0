// Package reconnect recovers a broken media path in the background without
// throwing away negotiation state.
package reconnect

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/clock"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/dkeye/huddle/internal/event"
	"github.com/rs/zerolog"
)

type Status int

const (
	StatusIdle Status = iota
	StatusReconnecting
)

func (s Status) String() string {
	if s == StatusReconnecting {
		return "reconnecting"
	}
	return "idle"
}

type Reason string

const (
	ReasonMediaFailure Reason = "media_failure"
	ReasonInactivity   Reason = "inactivity"
	ReasonMediaMove    Reason = "media_move"
)

// Request describes one recovery. Rejoin re-enters the locus before
// renegotiating; Update overrides the default ICE-restart renegotiation.
type Request struct {
	Reason Reason
	Rejoin bool
	Update *domain.MediaUpdate
}

type StartEvent struct {
	Reason Reason
}

type SuccessEvent struct {
	Reason   Reason
	Attempts int
}

type FailureEvent struct {
	Reason   Reason
	Attempts int
	Err      error
}

// Renegotiator is satisfied by media.Negotiator.
type Renegotiator interface {
	Renegotiate(ctx context.Context, upd domain.MediaUpdate) error
}

type Options struct {
	Retries  int
	Backoff  time.Duration
	Uploader core.LogUploader
	// Rejoin re-enters the meeting; required for Request.Rejoin.
	Rejoin func(ctx context.Context) error
	// Meta adds fields (correlation id, locus id) to log uploads.
	Meta func() map[string]string
	// Clock paces the backoff; nil means the real clock.
	Clock  clock.Clock
	Logger zerolog.Logger
}

type Manager struct {
	mu       sync.Mutex
	status   Status
	attempts int

	media    Renegotiator
	rejoin   func(ctx context.Context) error
	uploader core.LogUploader
	meta     func() map[string]string
	retries  int
	backoff  time.Duration
	clock    clock.Clock
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started event.Feed[StartEvent]
	success event.Feed[SuccessEvent]
	failure event.Feed[FailureEvent]
}

func New(media Renegotiator, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	return &Manager{
		media:    media,
		rejoin:   opts.Rejoin,
		uploader: opts.Uploader,
		meta:     opts.Meta,
		retries:  opts.Retries,
		backoff:  opts.Backoff,
		clock:    c,
		logger:   opts.Logger.With().Str("module", "reconnect").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *Manager) Started() *event.Feed[StartEvent]   { return &m.started }
func (m *Manager) Success() *event.Feed[SuccessEvent] { return &m.success }
func (m *Manager) Failure() *event.Feed[FailureEvent] { return &m.failure }

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempts is the attempt count of the running recovery, zero when idle.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Trigger starts a recovery in the background. It returns false when one is
// already running or the manager is closed.
func (m *Manager) Trigger(req Request) bool {
	m.mu.Lock()
	if m.status == StatusReconnecting || m.ctx.Err() != nil {
		m.mu.Unlock()
		m.logger.Debug().Str("reason", string(req.Reason)).Msg("reconnect already in progress")
		return false
	}
	m.status = StatusReconnecting
	m.attempts = 0
	m.mu.Unlock()

	m.logger.Info().Str("reason", string(req.Reason)).Bool("rejoin", req.Rejoin).Msg("reconnect started")
	m.started.Emit(StartEvent{Reason: req.Reason})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(m.ctx, req)
	}()
	return true
}

// Wait blocks until the running recovery, if any, has finished.
func (m *Manager) Wait() { m.wg.Wait() }

// Close cancels a running recovery and refuses new ones.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, req Request) {
	upd := domain.MediaUpdate{Replace: true, RestartICE: true}
	if req.Update != nil {
		upd = *req.Update
	}
	rejoin := req.Rejoin

	var err error
	attempts := 0
	for attempts <= m.retries {
		if attempts > 0 && m.backoff > 0 {
			select {
			case <-m.clock.After(m.backoff):
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		attempts++
		m.mu.Lock()
		m.attempts = attempts
		m.mu.Unlock()

		if rejoin {
			if m.rejoin == nil {
				err = errors.New("reconnect: rejoin requested without a rejoin function")
				break
			}
			if err = m.rejoin(ctx); err != nil {
				m.logger.Warn().Err(err).Int("attempt", attempts).Msg("rejoin failed")
				continue
			}
			rejoin = false
		}
		if err = m.media.Renegotiate(ctx, upd); err == nil {
			break
		}
		m.logger.Warn().Err(err).Int("attempt", attempts).Msg("media recovery failed")
		if errors.Is(err, errs.ErrUserNotJoined) {
			break
		}
	}

	m.mu.Lock()
	m.status = StatusIdle
	m.attempts = 0
	m.mu.Unlock()

	if err == nil {
		m.logger.Info().Str("reason", string(req.Reason)).Int("attempts", attempts).Msg("reconnect succeeded")
		m.success.Emit(SuccessEvent{Reason: req.Reason, Attempts: attempts})
		return
	}
	m.logger.Error().Err(err).Str("reason", string(req.Reason)).Int("attempts", attempts).Msg("reconnect failed")
	m.failure.Emit(FailureEvent{Reason: req.Reason, Attempts: attempts, Err: err})
	m.uploadLogs(req.Reason, err)
}

func (m *Manager) uploadLogs(reason Reason, cause error) {
	if m.uploader == nil {
		return
	}
	meta := map[string]string{}
	if m.meta != nil {
		for k, v := range m.meta() {
			meta[k] = v
		}
	}
	meta["trigger"] = "reconnect_failure"
	meta["reason"] = string(reason)
	meta["error"] = cause.Error()
	meta["retries"] = strconv.Itoa(m.retries)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.uploader.UploadLogs(ctx, meta); err != nil {
		m.logger.Warn().Err(err).Msg("log upload failed")
	}
}
