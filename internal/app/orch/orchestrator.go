// Package orch drives one meeting session: it gates every operation on the
// session state machine and coordinates the locus engine, media negotiation,
// reconnection, keepalive and share arbitration around each call.
package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/keepalive"
	"github.com/dkeye/huddle/internal/app/locus"
	"github.com/dkeye/huddle/internal/app/locusapi"
	"github.com/dkeye/huddle/internal/app/media"
	"github.com/dkeye/huddle/internal/app/reconnect"
	"github.com/dkeye/huddle/internal/app/share"
	"github.com/dkeye/huddle/internal/clock"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/dkeye/huddle/internal/event"
	"github.com/rs/zerolog"
)

type Config struct {
	KeepAliveMinSecs     int
	ReconnectRetries     int
	ReconnectBackoff     time.Duration
	RenegotiationRetries int
	RequestTimeout       time.Duration
	InfoRetryMin         time.Duration
	InfoRetryMax         time.Duration
}

type Deps struct {
	API *locusapi.Client
	// Transport carries keepalive pings.
	Transport core.Transport
	// NewMedia builds the media engine on the first AddMedia.
	NewMedia func() (core.MediaEngine, error)
	Uploader core.LogUploader
	Policy   app.Policy
	Clock    clock.Clock
	Logger   zerolog.Logger
	NewID    func() string
}

// BehavioralFailure reports an operation that failed without changing the
// session, for callers that track reliability.
type BehavioralFailure struct {
	Op            string
	CorrelationID string
	LocusID       string
	Err           error
}

type Session struct {
	// mu covers FSM gate checks together with the in-progress markers they
	// set. It is never held across a network call or an engine update.
	mu        sync.Mutex
	leaving   bool
	moving    bool
	declining bool

	id        string
	cfg       Config
	api       *locusapi.Client
	engine    *locus.Engine
	share     *share.Arbiter
	keepalive *keepalive.Scheduler
	reconnect *reconnect.Manager
	policy    app.Policy
	clock     clock.Clock
	newMedia  func() (core.MediaEngine, error)
	logger    zerolog.Logger

	mediaMu     sync.Mutex
	mediaEngine core.MediaEngine
	negotiator  *media.Negotiator

	infoMu    sync.Mutex
	infoTimer clock.Timer

	failures event.Feed[BehavioralFailure]
	unsub    []func()
}

// New creates a session in IDLE for destination (a meeting link, SIP URI or
// meeting number).
func New(destination string, deps Deps, cfg Config) *Session {
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	policy := deps.Policy
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	engine := locus.New(locus.Options{
		DeviceURL:   deps.API.DeviceURL(),
		Destination: destination,
		Logger:      deps.Logger,
		NewID:       deps.NewID,
	})
	snap := engine.Snapshot()
	s := &Session{
		id:       snap.ID,
		cfg:      cfg,
		api:      deps.API,
		engine:   engine,
		policy:   policy,
		clock:    c,
		newMedia: deps.NewMedia,
		logger:   deps.Logger.With().Str("module", "orch").Str("session_id", snap.ID).Logger(),
	}
	s.share = share.New(func() string { return s.engine.Snapshot().SelfID }, deps.Logger)
	s.keepalive = keepalive.New(deps.Transport, keepalive.Options{
		MinSecs:        cfg.KeepAliveMinSecs,
		RequestTimeout: cfg.RequestTimeout,
		Clock:          c,
		Logger:         deps.Logger,
	})
	s.reconnect = reconnect.New(sessionMedia{s}, reconnect.Options{
		Retries:  cfg.ReconnectRetries,
		Backoff:  cfg.ReconnectBackoff,
		Uploader: deps.Uploader,
		Rejoin:   s.rejoin,
		Meta:     s.logMeta,
		Clock:    c,
		Logger:   deps.Logger,
	})
	s.unsub = append(s.unsub,
		s.share.Attach(engine),
		engine.SelfLeft().Subscribe(s.onSelfLeft),
		engine.Inactive().Subscribe(s.onInactive),
	)
	s.logger.Info().Str("destination", destination).Str("correlation_id", snap.CorrelationID).Msg("session created")
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Snapshot() domain.SessionState { return s.engine.Snapshot() }

func (s *Session) Engine() *locus.Engine         { return s.engine }
func (s *Session) Share() *share.Arbiter         { return s.share }
func (s *Session) Reconnect() *reconnect.Manager { return s.reconnect }

// Failures delivers BehavioralFailure reports.
func (s *Session) Failures() *event.Feed[BehavioralFailure] { return &s.failures }

func (s *Session) logMeta() map[string]string {
	snap := s.engine.Snapshot()
	return map[string]string{
		"session_id":     snap.ID,
		"correlation_id": snap.CorrelationID,
		"locus_id":       snap.LocusID,
	}
}

func (s *Session) opLogger(snap domain.SessionState) *zerolog.Logger {
	l := s.logger.With().
		Str("correlation_id", snap.CorrelationID).
		Str("locus_id", snap.LocusID).
		Logger()
	return &l
}

// joinedGate checks that the session may act inside the meeting.
func (s *Session) joinedGate(snap domain.SessionState) error {
	switch {
	case snap.FSM == domain.StateInactive:
		return errs.ErrMeetingNotActive
	case snap.FSM != domain.StateJoined || snap.SelfState == domain.SelfLeft || s.leaving:
		return errs.ErrUserNotJoined
	}
	return nil
}

// mediaGate is joinedGate plus the lobby check for media operations.
func (s *Session) mediaGate() (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.engine.Snapshot()
	if err := s.joinedGate(snap); err != nil {
		return snap, err
	}
	if snap.InLobby {
		return snap, errs.ErrUserInLobby
	}
	return snap, nil
}

func (s *Session) applyReply(loc *domain.Locus) {
	if loc == nil {
		return
	}
	if err := s.engine.ApplyFull(loc); err != nil {
		s.logger.Warn().Err(err).Msg("apply locus from reply")
	}
}

// HandleLocusEvent ingests one pushed locus update. A delta that does not
// follow the local sequence triggers a full sync.
func (s *Session) HandleLocusEvent(ctx context.Context, ev domain.LocusEvent) error {
	if ev.Locus == nil {
		return &errs.ParameterError{Msg: "locus event without locus"}
	}
	snap := s.engine.Snapshot()
	if snap.LocusURL != "" && ev.LocusURL != "" && ev.LocusURL != snap.LocusURL {
		s.logger.Debug().Str("event_locus", ev.LocusURL).Msg("event for another locus ignored")
		return nil
	}

	var err error
	if ev.Type == domain.EventLocusFull {
		err = s.engine.ApplyFull(ev.Locus)
	} else {
		err = s.engine.ApplyDelta(ev.Locus)
	}
	if !errors.Is(err, locus.ErrResyncRequired) {
		return err
	}

	url := ev.LocusURL
	if url == "" {
		url = snap.LocusURL
	}
	if url == "" {
		return err
	}
	s.opLogger(snap).Info().Msg("resyncing locus")
	full, serr := s.api.Sync(ctx, url)
	if serr != nil {
		return fmt.Errorf("locus sync: %w", serr)
	}
	return s.engine.ApplyFull(full)
}

// Ring records an incoming call.
func (s *Session) Ring(l *domain.Locus) error {
	if l == nil {
		return &errs.ParameterError{Msg: "incoming call without locus"}
	}
	if snap := s.engine.Snapshot(); snap.FSM != domain.StateIdle {
		return &errs.IllegalTransitionError{From: snap.FSM, To: domain.StateRinging}
	}
	if err := s.engine.ApplyFull(l); err != nil {
		return err
	}
	return s.engine.Transition(domain.StateRinging)
}

// Decline rejects a ringing call.
func (s *Session) Decline(ctx context.Context, reason string) error {
	snap, err := s.beginDecline()
	if err != nil {
		return err
	}
	defer func() {
		s.mu.Lock()
		s.declining = false
		s.mu.Unlock()
	}()

	loc, err := s.api.Decline(ctx, snap.LocusURL, reason)
	if err != nil {
		return fmt.Errorf("decline: %w", err)
	}
	s.applyReply(loc)
	return s.engine.Transition(domain.StateLeft)
}

func (s *Session) beginDecline() (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.engine.Snapshot()
	if snap.FSM != domain.StateRinging {
		return snap, &errs.IllegalTransitionError{From: snap.FSM, To: domain.StateLeft}
	}
	if s.declining {
		return snap, &errs.ParameterError{Msg: "a decline is already in progress"}
	}
	s.declining = true
	return snap, nil
}

func (s *Session) onSelfLeft(ev locus.SelfLeftEvent) {
	s.mu.Lock()
	leaving := s.leaving
	s.mu.Unlock()
	if leaving {
		return
	}

	action := s.policy.OnSelfLeft(ev.Reason)
	logger := s.opLogger(ev.State)
	logger.Warn().Str("reason", ev.Reason).Str("action", action.String()).Msg("server removed self")

	s.keepalive.Stop()
	if err := s.engine.Transition(domain.StateLeft); err != nil {
		logger.Error().Err(err).Msg("self left")
		return
	}
	switch action {
	case app.Rejoin:
		s.reconnect.Trigger(reconnect.Request{Reason: reconnect.ReasonInactivity, Rejoin: true})
	default:
		if err := s.teardown(); err != nil {
			logger.Warn().Err(err).Msg("teardown after self left")
		}
	}
}

func (s *Session) onInactive(snap domain.SessionState) {
	logger := s.opLogger(snap)
	if snap.FSM == domain.StateInactive {
		return
	}
	if err := s.engine.Transition(domain.StateInactive); err != nil {
		logger.Error().Err(err).Msg("meeting inactive")
		return
	}
	logger.Info().Msg("meeting became inactive")

	s.mu.Lock()
	leaving := s.leaving
	s.mu.Unlock()
	if leaving {
		return
	}
	if err := s.teardown(); err != nil {
		logger.Warn().Err(err).Msg("teardown after inactive")
	}
}

func (s *Session) onMediaState(st core.MediaState) {
	if s.policy.OnMediaState(st) != app.Reconnect {
		return
	}
	s.mu.Lock()
	snap := s.engine.Snapshot()
	ok := s.joinedGate(snap) == nil
	s.mu.Unlock()
	if !ok {
		return
	}
	s.opLogger(snap).Warn().Str("media_state", st.String()).Msg("media path lost")
	s.reconnect.Trigger(reconnect.Request{Reason: reconnect.ReasonMediaFailure})
}

// rejoin is used by the reconnection manager after the server dropped us.
func (s *Session) rejoin(ctx context.Context) error {
	return s.Join(ctx, JoinOptions{})
}

// sessionMedia lets the reconnection manager reach whatever negotiator the
// session currently holds.
type sessionMedia struct{ s *Session }

func (m sessionMedia) Renegotiate(ctx context.Context, upd domain.MediaUpdate) error {
	neg := m.s.currentNegotiator()
	if neg == nil {
		return nil
	}
	return neg.Renegotiate(ctx, upd)
}

// Close leaves the meeting when joined and releases everything the session
// holds. The session is unusable afterwards.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if snap := s.engine.Snapshot(); snap.FSM == domain.StateJoined {
		if err = s.Leave(ctx, LeaveOptions{}); errs.IsStateError(err) {
			err = nil
		}
	}
	s.reconnect.Close()
	s.cancelInfoRetry()
	for _, u := range s.unsub {
		u()
	}
	if terr := s.teardown(); err == nil {
		err = terr
	}
	s.logger.Info().Msg("session closed")
	return err
}
