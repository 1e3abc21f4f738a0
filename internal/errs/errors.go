// Package errs is the closed error taxonomy of a meeting session and the
// classifier that maps backend replies onto it.
package errs

import (
	"errors"
	"fmt"

	"github.com/dkeye/huddle/internal/domain"
)

// State-precondition violations. They are raised before any network call.
var (
	ErrMeetingNotActive   = errors.New("meeting is not active")
	ErrUserNotJoined      = errors.New("user is not joined")
	ErrUserInLobby        = errors.New("user is in the lobby")
	ErrNoMediaEstablished = errors.New("no media established yet")
	ErrMeetingNotFound    = errors.New("meeting not found")
	ErrMeetingInactive    = errors.New("meeting is inactive")
)

// ParameterError reports invalid or missing caller arguments.
type ParameterError struct {
	Msg string
}

func (e *ParameterError) Error() string { return "invalid parameter: " + e.Msg }

// PermissionError reports an action the local participant may not perform.
type PermissionError struct {
	Action string
	Code   int
}

func (e *PermissionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("permission denied: %s (code %d)", e.Action, e.Code)
	}
	return "permission denied: " + e.Action
}

// PasswordError blocks a join until the password is verified. Info is the
// partial meeting info the service returns with the challenge.
type PasswordError struct {
	Code int
	Info *domain.MeetingInfo
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("password required (code %d)", e.Code)
}

// CaptchaError blocks until the captcha challenge is solved.
type CaptchaError struct {
	Code    int
	Captcha domain.Captcha
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha required (code %d)", e.Code)
}

// RequiresPassword reports captcha codes issued on a password-protected
// meeting.
func (e *CaptchaError) RequiresPassword() bool {
	_, ok := captchaWithPassword[e.Code]
	return ok
}

// IntentToJoinError is a protocol step, not a failure: the caller must join
// again with the pin and moderator fields set explicitly.
type IntentToJoinError struct {
	Code   int
	Reason string
}

func (e *IntentToJoinError) Error() string {
	return fmt.Sprintf("join intent required: %s (code %d)", e.Reason, e.Code)
}

// JoinFailure wraps any join error that is not a required protocol step.
type JoinFailure struct {
	Cause error
}

func (e *JoinFailure) Error() string { return "join failed: " + e.Cause.Error() }
func (e *JoinFailure) Unwrap() error { return e.Cause }

// IllegalTransitionError is returned when an operation would move the
// session along an edge the state table does not have.
type IllegalTransitionError struct {
	From, To domain.FSMState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
