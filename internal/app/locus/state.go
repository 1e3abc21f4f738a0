package locus

import (
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

// Writers for the fields the orchestrator decides on. They go through the
// engine so every SessionState mutation is serialized in one place.

// Transition moves the FSM along a legal edge.
func (e *Engine) Transition(to domain.FSMState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transitionLocked(to)
}

func (e *Engine) transitionLocked(to domain.FSMState) error {
	from := e.state.FSM
	if !domain.CanTransition(from, to) {
		return &errs.IllegalTransitionError{From: from, To: to}
	}
	e.state.FSM = to
	e.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("fsm transition")
	return nil
}

// BeginJoin enters JOINING. Every attempt after a successful join gets a
// fresh correlation id; the first attempt keeps the one minted at creation.
// It returns the state the session came from so a failed attempt can roll
// back.
func (e *Engine) BeginJoin() (from domain.FSMState, snap domain.SessionState, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	from = e.state.FSM
	if err = e.transitionLocked(domain.StateJoining); err != nil {
		return from, domain.SessionState{}, err
	}
	if e.state.JoinedOnce {
		e.state.CorrelationID = e.newID()
		e.logger.Debug().Str("correlation_id", e.state.CorrelationID).Msg("correlation id regenerated")
	}
	return from, e.state.Clone(), nil
}

// AbortJoin rolls a failed attempt back to where it started.
func (e *Engine) AbortJoin(from domain.FSMState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.FSM != domain.StateJoining {
		return
	}
	if err := e.transitionLocked(from); err != nil {
		e.logger.Error().Err(err).Msg("join rollback")
	}
}

// CompleteJoin ingests the join reply and marks the session JOINED.
func (e *Engine) CompleteJoin(resp *domain.JoinResponse) error {
	if resp == nil || resp.Locus == nil {
		return &errs.ParameterError{Msg: "join response has no locus"}
	}
	if err := e.ApplyFull(resp.Locus); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(resp.MediaConnections) > 0 {
		e.state.MediaID = resp.MediaConnections[0].MediaID
	}
	inactive := resp.Locus.FullState != nil && resp.Locus.FullState.State == domain.FullStateInactive
	switch {
	case inactive || e.state.FSM == domain.StateInactive:
		return errs.ErrMeetingInactive
	case e.state.FSM != domain.StateJoining:
		return &errs.IllegalTransitionError{From: e.state.FSM, To: domain.StateJoined}
	}
	if err := e.transitionLocked(domain.StateJoined); err != nil {
		return err
	}
	e.state.JoinedOnce = true
	return nil
}

// AcceptMove ingests the reply of a join on another resource. The FSM stays
// JOINED.
func (e *Engine) AcceptMove(resp *domain.JoinResponse) error {
	if resp == nil || resp.Locus == nil {
		return &errs.ParameterError{Msg: "move response has no locus"}
	}
	if err := e.ApplyFull(resp.Locus); err != nil {
		return err
	}
	if len(resp.MediaConnections) > 0 {
		e.mu.Lock()
		e.state.MediaID = resp.MediaConnections[0].MediaID
		e.mu.Unlock()
	}
	return nil
}

// NextRoapSeq increments and returns the ROAP sequence. It never goes down.
func (e *Engine) NextRoapSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.RoapSeq++
	return e.state.RoapSeq
}

// RecordPasswordChallenge marks the password as required and keeps whatever
// partial meeting info came with the challenge. A verified password stays
// verified.
func (e *Engine) RecordPasswordChallenge(info *domain.MeetingInfo, reason domain.InfoFailure) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Password != domain.PasswordVerified {
		e.state.Password = domain.PasswordRequired
	}
	if info != nil {
		mi := *info
		e.state.MeetingInfo = &mi
	}
	e.state.InfoFailure = reason
}

// RecordCaptchaChallenge stores a new captcha. A challenge without a refresh
// URL keeps the previous one.
func (e *Engine) RecordCaptchaChallenge(c domain.Captcha, requiresPassword bool, reason domain.InfoFailure) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.RefreshURL == "" && e.state.Captcha != nil {
		c.RefreshURL = e.state.Captcha.RefreshURL
	}
	e.state.Captcha = &c
	switch {
	case requiresPassword && e.state.Password != domain.PasswordVerified:
		e.state.Password = domain.PasswordRequired
	case e.state.Password == domain.PasswordNotRequired:
		e.state.Password = domain.PasswordUnknown
	}
	e.state.InfoFailure = reason
}

// RecordMeetingInfo stores a successful meeting-info reply. verified is true
// when a password was accepted.
func (e *Engine) RecordMeetingInfo(info *domain.MeetingInfo, verified bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case verified || e.state.Password == domain.PasswordVerified:
		e.state.Password = domain.PasswordVerified
	default:
		e.state.Password = domain.PasswordNotRequired
	}
	e.state.Captcha = nil
	e.state.InfoFailure = domain.InfoFailureNone
	if info != nil {
		mi := *info
		e.state.MeetingInfo = &mi
		if e.state.LocusURL == "" && info.LocusURL != "" {
			e.state.LocusURL = info.LocusURL
			e.state.LocusID = domain.LocusIDFromURL(info.LocusURL)
		}
	}
}

func (e *Engine) RecordInfoFailure(reason domain.InfoFailure) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.InfoFailure = reason
}
