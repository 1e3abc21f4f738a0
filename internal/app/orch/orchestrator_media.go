package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/app/media"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

func (s *Session) currentNegotiator() *media.Negotiator {
	s.mediaMu.Lock()
	defer s.mediaMu.Unlock()
	return s.negotiator
}

// ensureMedia builds the media engine and its negotiator on first use.
func (s *Session) ensureMedia() (*media.Negotiator, error) {
	s.mediaMu.Lock()
	defer s.mediaMu.Unlock()
	if s.negotiator != nil {
		return s.negotiator, nil
	}
	if s.newMedia == nil {
		return nil, &errs.ParameterError{Msg: "no media engine configured"}
	}
	eng, err := s.newMedia()
	if err != nil {
		return nil, fmt.Errorf("media engine: %w", err)
	}
	eng.OnStateChange(s.onMediaState)
	sender := media.SenderFunc(func(ctx context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error) {
		return s.api.SendRoap(ctx, s.engine.Snapshot(), msg)
	})
	s.mediaEngine = eng
	s.negotiator = media.NewNegotiator(eng, s.engine, sender, media.Options{
		Retries: s.cfg.RenegotiationRetries,
		Logger:  s.logger,
	})
	return s.negotiator, nil
}

// AddMedia negotiates local media into the meeting. While a renegotiation
// is in flight the request waits in the single pending slot; a later
// request replaces it.
func (s *Session) AddMedia(ctx context.Context, upd domain.MediaUpdate) error {
	snap, err := s.mediaGate()
	if err != nil {
		return err
	}
	neg, err := s.ensureMedia()
	if err != nil {
		return err
	}
	if err := neg.Renegotiate(ctx, upd); err != nil {
		s.opLogger(snap).Warn().Err(err).Msg("add media failed")
		return err
	}
	return nil
}

// UpdateMedia changes track directions on established media.
func (s *Session) UpdateMedia(ctx context.Context, upd domain.MediaUpdate) error {
	if _, err := s.mediaGate(); err != nil {
		return err
	}
	neg := s.currentNegotiator()
	if neg == nil || !neg.Established() {
		return errs.ErrNoMediaEstablished
	}
	return neg.Renegotiate(ctx, upd)
}

// CanUpdateMedia reports whether media exists and nothing is being
// renegotiated.
func (s *Session) CanUpdateMedia() bool {
	neg := s.currentNegotiator()
	return neg != nil && !neg.InFlight()
}

// SetMuted mutes or unmutes self audio on the server side.
func (s *Session) SetMuted(ctx context.Context, muted bool) error {
	snap, err := s.mediaGate()
	if err != nil {
		return err
	}
	loc, err := s.api.Mute(ctx, snap.LocusURL, snap.SelfID, muted)
	if err != nil {
		return fmt.Errorf("mute: %w", err)
	}
	s.applyReply(loc)
	return nil
}
