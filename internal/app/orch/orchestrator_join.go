package orch

import (
	"context"
	"errors"

	"github.com/dkeye/huddle/internal/app/locusapi"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

// JoinOptions are the fields a caller sets explicitly on a join. After an
// IntentToJoinError the caller joins again with PIN and/or Moderator set.
type JoinOptions struct {
	PIN       string
	Moderator *bool
}

// Join enters the meeting. A pending captcha or password blocks the join
// before anything is sent.
func (s *Session) Join(ctx context.Context, opts JoinOptions) error {
	s.mu.Lock()
	snap := s.engine.Snapshot()
	if snap.Captcha != nil {
		s.mu.Unlock()
		return &errs.CaptchaError{Captcha: *snap.Captcha}
	}
	if snap.Password == domain.PasswordRequired {
		s.mu.Unlock()
		return &errs.PasswordError{Info: snap.MeetingInfo}
	}
	from, snap, err := s.engine.BeginJoin()
	if err == nil {
		s.leaving = false
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	req := locusapi.JoinRequest{
		CorrelationID: snap.CorrelationID,
		Destination:   snap.Destination,
		LocusURL:      snap.LocusURL,
		PIN:           opts.PIN,
		Moderator:     opts.Moderator,
	}
	logger := s.opLogger(snap)
	logger.Info().Str("from", from.String()).Bool("pin", opts.PIN != "").Msg("joining")

	resp, err := s.api.Join(ctx, req)
	if err != nil {
		s.engine.AbortJoin(from)
		var itj *errs.IntentToJoinError
		if errors.As(err, &itj) {
			logger.Info().Int("code", itj.Code).Msg("join needs pin or moderator intent")
			return itj
		}
		logger.Error().Err(err).Msg("join failed")
		return &errs.JoinFailure{Cause: err}
	}
	if err := s.engine.CompleteJoin(resp); err != nil {
		s.engine.AbortJoin(from)
		if errors.Is(err, errs.ErrMeetingInactive) {
			logger.Warn().Msg("meeting ended before the join completed")
			return err
		}
		logger.Error().Err(err).Msg("join reply rejected")
		return &errs.JoinFailure{Cause: err}
	}

	joined := s.engine.Snapshot()
	s.keepalive.Start(joined.KeepAliveURL, joined.KeepAliveSecs)
	s.opLogger(joined).Info().
		Str("self_id", joined.SelfID).
		Bool("in_lobby", joined.InLobby).
		Bool("moderator", joined.Moderator).
		Msg("joined")
	return nil
}
