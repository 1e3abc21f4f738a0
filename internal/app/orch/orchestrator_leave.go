package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/domain"
)

type LeaveOptions struct {
	// ResourceID also releases a paired device the media was moved to.
	ResourceID string
}

// Leave takes self out of the meeting and tears local media down.
func (s *Session) Leave(ctx context.Context, opts LeaveOptions) error {
	snap, err := s.beginLeave()
	if err != nil {
		return err
	}
	loc, err := s.api.Leave(ctx, snap.LocusURL, snap.SelfID, snap.CorrelationID, opts.ResourceID)
	return s.finishLeave("leave", snap, loc, err)
}

// EndMeetingForAll ends the meeting for every participant.
func (s *Session) EndMeetingForAll(ctx context.Context) error {
	snap, err := s.beginLeave()
	if err != nil {
		return err
	}
	loc, err := s.api.End(ctx, snap.LocusURL)
	return s.finishLeave("end_meeting", snap, loc, err)
}

func (s *Session) beginLeave() (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.engine.Snapshot()
	if err := s.joinedGate(snap); err != nil {
		return snap, err
	}
	s.leaving = true
	return snap, nil
}

func (s *Session) finishLeave(op string, snap domain.SessionState, loc *domain.Locus, err error) error {
	logger := s.opLogger(snap)
	if err != nil {
		s.mu.Lock()
		s.leaving = false
		s.mu.Unlock()
		logger.Error().Err(err).Str("op", op).Msg("leave request failed")
		return fmt.Errorf("%s: %w", op, err)
	}

	s.applyReply(loc)
	if cur := s.engine.Snapshot(); cur.FSM == domain.StateJoined {
		if terr := s.engine.Transition(domain.StateLeft); terr != nil {
			logger.Error().Err(terr).Msg("leave transition")
		}
	}
	terr := s.teardown()

	s.mu.Lock()
	s.leaving = false
	s.mu.Unlock()

	if terr != nil {
		logger.Warn().Err(terr).Str("op", op).Msg("left with teardown errors")
		return terr
	}
	logger.Info().Str("op", op).Msg("left meeting")
	return nil
}

type teardownStep struct {
	name string
	fn   func() error
}

// teardown releases local media and timers. Every step runs; the first
// failure is returned.
func (s *Session) teardown() error {
	s.mediaMu.Lock()
	eng, neg := s.mediaEngine, s.negotiator
	s.mediaMu.Unlock()

	steps := []teardownStep{
		{"stop_stats", func() error {
			if eng == nil {
				return nil
			}
			return eng.StopStats()
		}},
		{"release_local_tracks", func() error {
			if eng == nil {
				return nil
			}
			return eng.ReleaseLocalTracks()
		}},
		{"release_remote_tracks", func() error {
			if eng == nil {
				return nil
			}
			return eng.ReleaseRemoteTracks()
		}},
		{"close_media_transport", func() error {
			if eng == nil {
				return nil
			}
			return eng.Close()
		}},
		{"clear_media_refs", func() error {
			s.mediaMu.Lock()
			s.mediaEngine = nil
			s.negotiator = nil
			s.mediaMu.Unlock()
			return nil
		}},
		{"stop_negotiator", func() error {
			if neg == nil {
				return nil
			}
			return neg.Stop()
		}},
		{"stop_keepalive", func() error {
			s.keepalive.Stop()
			return nil
		}},
	}

	var first error
	for _, st := range steps {
		if err := st.fn(); err != nil {
			s.logger.Warn().Err(err).Str("step", st.name).Msg("teardown step failed")
			if first == nil {
				first = fmt.Errorf("teardown %s: %w", st.name, err)
			}
		}
	}
	return first
}
