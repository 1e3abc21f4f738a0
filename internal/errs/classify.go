package errs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Backend error codes carried in reply bodies.
const (
	CodePasswordRequired    = 403004
	CodePasswordWrong       = 403005
	CodeCaptchaRequired     = 423001
	CodeCaptchaWrong        = 423002
	CodeCaptchaWithPwd      = 423005
	CodeCaptchaWithPwdWrong = 423006

	CodeJoinGuestPIN    = 2423012
	CodeJoinHostPIN     = 2423013
	CodeJoinPermission  = 2403001
	CodeLocusNotFound   = 2404001
	CodeLocusInactive   = 2409002
	CodeMeetingNotFound = 404001
)

var captchaWithPassword = map[int]struct{}{
	CodeCaptchaWithPwd:      {},
	CodeCaptchaWithPwdWrong: {},
}

var captchaCodes = map[int]struct{}{
	CodeCaptchaRequired:     {},
	CodeCaptchaWrong:        {},
	CodeCaptchaWithPwd:      {},
	CodeCaptchaWithPwdWrong: {},
}

// errorBody covers both the locus and the meeting-info error shapes.
type errorBody struct {
	Code      int    `json:"code"`
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`

	CaptchaID  string `json:"captchaID"`
	ImageURL   string `json:"verificationImageURL"`
	AudioURL   string `json:"verificationAudioURL"`
	RefreshURL string `json:"refreshURL"`

	Data struct {
		MeetingInfo *domain.MeetingInfo `json:"meetingInfo"`
	} `json:"data"`
}

func (b errorBody) code() int {
	if b.ErrorCode != 0 {
		return b.ErrorCode
	}
	return b.Code
}

// Classify maps a transport failure onto the taxonomy. Errors that are not
// backend replies, or replies it does not recognise, come back unchanged so
// the caller can wrap them.
func Classify(err error) error {
	var se *core.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var body errorBody
	_ = json.Unmarshal(se.Body, &body)
	code := body.code()

	if _, ok := captchaCodes[code]; ok || (se.StatusCode == http.StatusLocked && body.CaptchaID != "") {
		return &CaptchaError{
			Code: code,
			Captcha: domain.Captcha{
				ID:         body.CaptchaID,
				ImageURL:   body.ImageURL,
				AudioURL:   body.AudioURL,
				RefreshURL: body.RefreshURL,
			},
		}
	}

	switch code {
	case CodePasswordRequired, CodePasswordWrong:
		return &PasswordError{Code: code, Info: body.Data.MeetingInfo}
	case CodeJoinGuestPIN, CodeJoinHostPIN:
		return &IntentToJoinError{Code: code, Reason: body.Message}
	case CodeJoinPermission:
		return &PermissionError{Action: "join", Code: code}
	case CodeLocusNotFound, CodeMeetingNotFound:
		return ErrMeetingNotFound
	case CodeLocusInactive:
		return ErrMeetingInactive
	}

	switch se.StatusCode {
	case http.StatusForbidden:
		if body.Data.MeetingInfo != nil {
			return &PasswordError{Code: code, Info: body.Data.MeetingInfo}
		}
		return &PermissionError{Action: "request", Code: code}
	case http.StatusNotFound:
		return ErrMeetingNotFound
	case http.StatusGone:
		return ErrMeetingInactive
	}
	return err
}

// IsStateError reports a precondition violation detected locally.
func IsStateError(err error) bool {
	return errors.Is(err, ErrMeetingNotActive) ||
		errors.Is(err, ErrUserNotJoined) ||
		errors.Is(err, ErrUserInLobby) ||
		errors.Is(err, ErrNoMediaEstablished)
}
