package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/app/locusapi"
	"github.com/dkeye/huddle/internal/app/reconnect"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

const (
	OpMoveTo   = "move_to"
	OpMoveFrom = "move_from"
)

// MoveTo hands audio and video over to a paired device. Local media stays
// up for share and is reconciled once the move is accepted.
func (s *Session) MoveTo(ctx context.Context, resourceID string) error {
	upd := domain.MediaUpdate{Audio: domain.Dir(domain.DirInactive), Video: domain.Dir(domain.DirInactive)}
	return s.move(ctx, OpMoveTo, resourceID, true, upd)
}

// MoveFrom takes audio and video back from a paired device.
func (s *Session) MoveFrom(ctx context.Context, resourceID string) error {
	upd := domain.MediaUpdate{Audio: domain.Dir(domain.DirSendRecv), Video: domain.Dir(domain.DirSendRecv)}
	return s.move(ctx, OpMoveFrom, resourceID, false, upd)
}

func (s *Session) beginMove(resourceID string) (domain.SessionState, error) {
	if resourceID == "" {
		return domain.SessionState{}, &errs.ParameterError{Msg: "resource id is empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.engine.Snapshot()
	if err := s.joinedGate(snap); err != nil {
		return snap, err
	}
	if s.moving {
		return snap, &errs.ParameterError{Msg: "a media move is already in progress"}
	}
	s.moving = true
	return snap, nil
}

func (s *Session) move(ctx context.Context, op, resourceID string, toResource bool, upd domain.MediaUpdate) error {
	snap, err := s.beginMove(resourceID)
	if err != nil {
		return err
	}
	defer func() {
		s.mu.Lock()
		s.moving = false
		s.mu.Unlock()
	}()

	logger := s.opLogger(snap)
	req := locusapi.JoinRequest{
		CorrelationID: snap.CorrelationID,
		LocusURL:      snap.LocusURL,
		ResourceID:    resourceID,
		MoveMedia:     toResource,
	}
	resp, err := s.api.Join(ctx, req)
	if err == nil && !toResource {
		_, err = s.api.Leave(ctx, snap.LocusURL, snap.SelfID, snap.CorrelationID, resourceID)
	}
	if err != nil {
		logger.Error().Err(err).Str("op", op).Str("resource_id", resourceID).Msg("media move failed")
		s.failures.Emit(BehavioralFailure{
			Op:            op,
			CorrelationID: snap.CorrelationID,
			LocusID:       snap.LocusID,
			Err:           err,
		})
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.engine.AcceptMove(resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info().Str("op", op).Str("resource_id", resourceID).Msg("media moved")

	if s.currentNegotiator() != nil {
		s.reconnect.Trigger(reconnect.Request{Reason: reconnect.ReasonMediaMove, Update: &upd})
	}
	return nil
}
