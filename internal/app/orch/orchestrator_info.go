package orch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/dkeye/huddle/internal/app/locusapi"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

// InfoOptions carry the answer to a password or captcha challenge.
type InfoOptions struct {
	Password    string
	CaptchaCode string
}

// FetchMeetingInfo looks the destination up on the meeting-info service and
// records the outcome: a password challenge, a captcha challenge, or the
// info itself.
func (s *Session) FetchMeetingInfo(ctx context.Context, opts InfoOptions) error {
	return s.fetchMeetingInfo(ctx, opts, true)
}

func (s *Session) fetchMeetingInfo(ctx context.Context, opts InfoOptions, retry bool) error {
	snap := s.engine.Snapshot()
	if opts.Password != "" && (snap.Password == domain.PasswordNotRequired || snap.Password == domain.PasswordVerified) {
		return &errs.ParameterError{Msg: "password supplied but not required"}
	}
	if opts.CaptchaCode != "" && snap.Captcha == nil {
		return &errs.ParameterError{Msg: "captcha code supplied but no captcha is pending"}
	}
	s.cancelInfoRetry()

	req := locusapi.InfoRequest{Destination: snap.Destination, Password: opts.Password}
	if opts.CaptchaCode != "" {
		req.CaptchaID = snap.Captcha.ID
		req.CaptchaCode = opts.CaptchaCode
	}
	logger := s.opLogger(snap)

	info, err := s.api.MeetingInfo(ctx, req)
	if err == nil {
		s.engine.RecordMeetingInfo(info, opts.Password != "")
		logger.Info().Str("password", s.engine.Snapshot().Password.String()).Msg("meeting info fetched")
		return nil
	}

	var pe *errs.PasswordError
	var ce *errs.CaptchaError
	switch {
	case errors.As(err, &pe):
		reason := domain.InfoFailureNone
		if opts.Password != "" {
			reason = domain.InfoFailureWrongPassword
		}
		s.engine.RecordPasswordChallenge(pe.Info, reason)
		logger.Info().Int("code", pe.Code).Msg("meeting requires a password")
		return pe
	case errors.As(err, &ce):
		reason := domain.InfoFailureNone
		if opts.CaptchaCode != "" {
			reason = domain.InfoFailureWrongCaptcha
		}
		s.engine.RecordCaptchaChallenge(ce.Captcha, ce.RequiresPassword(), reason)
		logger.Info().Int("code", ce.Code).Msg("meeting requires a captcha")
		return ce
	}

	s.engine.RecordInfoFailure(domain.InfoFailureOther)
	logger.Warn().Err(err).Msg("meeting info failed")
	if retry && opts.Password == "" && opts.CaptchaCode == "" {
		s.scheduleInfoRetry()
	}
	return err
}

// scheduleInfoRetry arms one retry after a uniform random delay in
// [InfoRetryMin, InfoRetryMax].
func (s *Session) scheduleInfoRetry() {
	lo, hi := s.cfg.InfoRetryMin, s.cfg.InfoRetryMax
	if hi <= 0 {
		return
	}
	if lo > hi {
		lo = hi
	}
	delay := lo
	if span := hi - lo; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span + 1)))
	}

	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	if s.infoTimer != nil {
		s.infoTimer.Stop()
	}
	s.infoTimer = s.clock.AfterFunc(delay, func() {
		s.infoMu.Lock()
		s.infoTimer = nil
		s.infoMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
		defer cancel()
		if err := s.fetchMeetingInfo(ctx, InfoOptions{}, false); err != nil {
			s.logger.Warn().Err(err).Msg("meeting info retry failed")
		}
	})
	s.logger.Debug().Dur("delay", delay).Msg("meeting info retry scheduled")
}

func (s *Session) cancelInfoRetry() {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	if s.infoTimer != nil {
		s.infoTimer.Stop()
		s.infoTimer = nil
	}
}

func (s *Session) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 15 * time.Second
}
