// Package media sequences ROAP offer/answer exchanges with the locus.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("media: negotiator stopped")

// Session is the part of the locus engine the negotiator needs: a read of
// the current state and the ROAP sequence counter.
type Session interface {
	Snapshot() domain.SessionState
	NextRoapSeq() uint64
}

// Sender delivers a ROAP offer to the locus and returns its answer.
type Sender interface {
	SendRoap(ctx context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error)
}

type SenderFunc func(ctx context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error)

func (f SenderFunc) SendRoap(ctx context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error) {
	return f(ctx, msg)
}

type Options struct {
	// Retries bounds re-offers after a failure on a connected media path.
	Retries int
	Logger  zerolog.Logger
}

// pendingRequest is the single queued renegotiation. A newer request
// replaces its update; every waiter gets the outcome of the one that runs.
type pendingRequest struct {
	ctx     context.Context
	update  domain.MediaUpdate
	waiters []chan error
}

// Negotiator allows one renegotiation in flight; a request made meanwhile is
// queued, coalesced with any other queued one, and replayed once the
// in-flight one finishes, whatever its outcome.
type Negotiator struct {
	mu          sync.Mutex
	engine      core.MediaEngine
	session     Session
	sender      Sender
	retries     int
	busy        bool
	pending     *pendingRequest
	established bool
	stopped     bool
	logger      zerolog.Logger
}

func NewNegotiator(engine core.MediaEngine, session Session, sender Sender, opts Options) *Negotiator {
	return &Negotiator{
		engine:  engine,
		session: session,
		sender:  sender,
		retries: opts.Retries,
		logger:  opts.Logger.With().Str("module", "media").Logger(),
	}
}

// InFlight reports whether a renegotiation is running.
func (n *Negotiator) InFlight() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.busy
}

// Established reports whether at least one negotiation completed.
func (n *Negotiator) Established() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.established
}

// Queued is the number of callers waiting on the pending request.
func (n *Negotiator) Queued() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return 0
	}
	return len(n.pending.waiters)
}

// Renegotiate runs upd now, or queues it when another renegotiation is in
// flight. It returns once the request that carries upd has completed.
func (n *Negotiator) Renegotiate(ctx context.Context, upd domain.MediaUpdate) error {
	if upd.Empty() {
		return &errs.ParameterError{Msg: "media update has no track change and nothing to replace"}
	}

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return ErrStopped
	}
	if n.busy {
		done := make(chan error, 1)
		if n.pending == nil {
			n.pending = &pendingRequest{}
		} else {
			n.logger.Debug().Msg("queued renegotiation superseded")
		}
		n.pending.ctx = ctx
		n.pending.update = upd
		n.pending.waiters = append(n.pending.waiters, done)
		n.mu.Unlock()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.busy = true
	n.mu.Unlock()

	err := n.run(ctx, upd)
	n.next()
	return err
}

// next hands the queued request, if any, to a new goroutine or clears the
// busy flag.
func (n *Negotiator) next() {
	n.mu.Lock()
	p := n.pending
	n.pending = nil
	if p == nil || n.stopped {
		n.busy = false
		n.mu.Unlock()
		if p != nil {
			notify(p.waiters, ErrStopped)
		}
		return
	}
	n.mu.Unlock()

	go func() {
		err := n.run(context.WithoutCancel(p.ctx), p.update)
		notify(p.waiters, err)
		n.next()
	}()
}

func notify(waiters []chan error, err error) {
	for _, w := range waiters {
		w <- err
	}
}

func (n *Negotiator) run(ctx context.Context, upd domain.MediaUpdate) error {
	for attempt := 0; ; attempt++ {
		err := n.negotiate(ctx, upd)
		if err == nil {
			n.mu.Lock()
			n.established = true
			n.mu.Unlock()
			return nil
		}
		if n.engine.ConnectionState() != core.MediaConnected {
			return err
		}
		// The path is up, so the failure may come from our own membership.
		if s := n.session.Snapshot(); s.SelfState == domain.SelfLeft {
			n.logger.Warn().Err(err).Str("locus_id", s.LocusID).Msg("renegotiation failed after self left")
			return fmt.Errorf("renegotiate: %w", errs.ErrUserNotJoined)
		}
		if attempt >= n.retries {
			return err
		}
		n.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("renegotiation failed, retrying")
	}
}

func (n *Negotiator) negotiate(ctx context.Context, upd domain.MediaUpdate) error {
	sdp, err := n.engine.CreateOffer(ctx, upd)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	seq := n.session.NextRoapSeq()
	n.logger.Debug().Uint64("seq", seq).Msg("sending offer")

	answer, err := n.sender.SendRoap(ctx, domain.RoapMessage{
		MessageType: domain.RoapOffer,
		Seq:         seq,
		SDPs:        []string{sdp},
	})
	if err != nil {
		return fmt.Errorf("send offer: %w", errs.Classify(err))
	}
	if answer == nil || answer.MessageType == domain.RoapError {
		reason := "empty answer"
		if answer != nil {
			reason = answer.ErrorType
		}
		return fmt.Errorf("roap answer error: %s", reason)
	}
	if len(answer.SDPs) == 0 {
		return errors.New("roap answer carries no sdp")
	}
	if err := n.engine.ApplyAnswer(ctx, answer.SDPs[0]); err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}
	return nil
}

// Stop refuses further work. A queued request is answered with ErrStopped;
// the in-flight one runs to completion.
func (n *Negotiator) Stop() error {
	n.mu.Lock()
	n.stopped = true
	p := n.pending
	n.pending = nil
	n.mu.Unlock()
	if p != nil {
		notify(p.waiters, ErrStopped)
	}
	n.logger.Debug().Msg("negotiator stopped")
	return nil
}
