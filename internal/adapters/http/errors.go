package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/gin-gonic/gin"
)

// writeError maps the session error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		param   *errs.ParameterError
		perm    *errs.PermissionError
		pwd     *errs.PasswordError
		captcha *errs.CaptchaError
		intent  *errs.IntentToJoinError
		illegal *errs.IllegalTransitionError
		join    *errs.JoinFailure
	)
	body := gin.H{"error": err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &param):
		status = http.StatusBadRequest
	case errors.As(err, &perm):
		status = http.StatusForbidden
	case errors.As(err, &pwd):
		status = http.StatusUnauthorized
		body["challenge"] = "password"
		body["code"] = pwd.Code
	case errors.As(err, &captcha):
		status = http.StatusUnauthorized
		body["challenge"] = "captcha"
		body["code"] = captcha.Code
		body["captcha"] = captcha.Captcha
		body["requiresPassword"] = captcha.RequiresPassword()
	case errors.As(err, &intent):
		status = http.StatusPreconditionRequired
		body["code"] = intent.Code
		body["reason"] = intent.Reason
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, errs.ErrMeetingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrMeetingInactive):
		status = http.StatusGone
	case errors.As(err, &illegal),
		errors.Is(err, errs.ErrMeetingNotActive),
		errors.Is(err, errs.ErrUserNotJoined),
		errors.Is(err, errs.ErrUserInLobby),
		errors.Is(err, errs.ErrNoMediaEstablished):
		status = http.StatusConflict
	case errors.As(err, &join):
		status = http.StatusBadGateway
	}
	c.AbortWithStatusJSON(status, body)
}
