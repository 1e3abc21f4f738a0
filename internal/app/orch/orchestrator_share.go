package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/app/locus"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

// StartShare requests the floor of the content or whiteboard share.
func (s *Session) StartShare(ctx context.Context, kind domain.ShareKind, resourceURL string) error {
	snap, err := s.mediaGate()
	if err != nil {
		return err
	}
	var name string
	switch kind {
	case domain.ShareKindContent:
		if neg := s.currentNegotiator(); neg == nil || !neg.Established() {
			return errs.ErrNoMediaEstablished
		}
		name = domain.ShareContent
	case domain.ShareKindWhiteboard:
		if !s.engine.Capabilities().Has(locus.CanShareWhiteboard) {
			return &errs.PermissionError{Action: "share_whiteboard"}
		}
		if resourceURL == "" {
			return &errs.ParameterError{Msg: "whiteboard share needs a resource url"}
		}
		name = domain.ShareWhiteboard
	default:
		return &errs.ParameterError{Msg: "unknown share kind"}
	}
	return s.floor(ctx, snap, name, domain.FloorGranted, resourceURL)
}

// StopShare releases the floor self currently holds.
func (s *Session) StopShare(ctx context.Context) error {
	snap, err := s.mediaGate()
	if err != nil {
		return err
	}
	cur := s.share.State()
	if !cur.Active() || cur.BeneficiaryID != snap.SelfID {
		return &errs.ParameterError{Msg: "self is not sharing"}
	}
	name := domain.ShareContent
	if cur.Kind == domain.ShareKindWhiteboard {
		name = domain.ShareWhiteboard
	}
	return s.floor(ctx, snap, name, domain.FloorReleased, cur.ResourceURL)
}

func (s *Session) floor(ctx context.Context, snap domain.SessionState, name, disposition, resourceURL string) error {
	ms := s.engine.Locus().Share(name)
	if ms == nil {
		return &errs.ParameterError{Msg: "locus has no " + name + " share"}
	}
	loc, err := s.api.Floor(ctx, ms.URL, snap.SelfID, disposition, resourceURL)
	if err != nil {
		s.opLogger(snap).Warn().Err(err).Str("share", name).Str("disposition", disposition).Msg("floor request failed")
		return fmt.Errorf("floor %s: %w", disposition, err)
	}
	s.applyReply(loc)
	return nil
}

// Lock locks or unlocks the meeting.
func (s *Session) Lock(ctx context.Context, locked bool) error {
	snap, err := s.mediaGate()
	if err != nil {
		return err
	}
	cp, action := locus.CanLock, "lock"
	if !locked {
		cp, action = locus.CanUnlock, "unlock"
	}
	if !s.engine.Capabilities().Has(cp) {
		return &errs.PermissionError{Action: action}
	}
	loc, err := s.api.Lock(ctx, snap.LocusURL, locked)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	s.applyReply(loc)
	return nil
}

// Admit lets participants waiting in the lobby in.
func (s *Session) Admit(ctx context.Context, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return &errs.ParameterError{Msg: "no participants to admit"}
	}
	snap, err := s.mediaGate()
	if err != nil {
		return err
	}
	if !s.engine.Capabilities().Has(locus.CanAdmit) {
		return &errs.PermissionError{Action: "admit"}
	}
	loc, err := s.api.Admit(ctx, snap.LocusURL, participantIDs)
	if err != nil {
		return fmt.Errorf("admit: %w", err)
	}
	s.applyReply(loc)
	return nil
}
