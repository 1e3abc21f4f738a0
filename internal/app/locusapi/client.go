// Package locusapi is the set of REST calls a meeting session makes against
// the locus and meeting-info services. Errors are classified once here.
package locusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/rs/zerolog"
)

type Options struct {
	// LocusURL is the service base used to dial a destination that has no
	// locus yet.
	LocusURL       string
	MeetingInfoURL string
	DeviceURL      string
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

type Client struct {
	tr        core.Transport
	locusBase string
	infoURL   string
	deviceURL string
	timeout   time.Duration
	logger    zerolog.Logger
}

func New(tr core.Transport, opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		tr:        tr,
		locusBase: strings.TrimRight(opts.LocusURL, "/"),
		infoURL:   opts.MeetingInfoURL,
		deviceURL: opts.DeviceURL,
		timeout:   timeout,
		logger:    opts.Logger.With().Str("module", "locusapi").Logger(),
	}
}

func (c *Client) DeviceURL() string { return c.deviceURL }

// JoinRequest is built once per join attempt and never modified after.
type JoinRequest struct {
	CorrelationID string
	Destination   string
	LocusURL      string
	// ResourceID moves media to (MoveMedia) or from a paired device.
	ResourceID string
	MoveMedia  bool
	PIN        string
	Moderator  *bool
}

type deviceBody struct {
	URL        string `json:"url"`
	DeviceType string `json:"deviceType"`
}

type joinBody struct {
	Device              deviceBody `json:"device"`
	CorrelationID       string     `json:"correlationId"`
	Invitee             *invitee   `json:"invitee,omitempty"`
	UsingResource       string     `json:"usingResource,omitempty"`
	MoveMediaToResource bool       `json:"moveMediaToResource,omitempty"`
	PIN                 string     `json:"pin,omitempty"`
	Moderator           *bool      `json:"moderator,omitempty"`
}

type invitee struct {
	Address string `json:"address"`
}

type locusEnvelope struct {
	Locus *domain.Locus `json:"locus"`
}

func (c *Client) device() deviceBody {
	return deviceBody{URL: c.deviceURL, DeviceType: "WEB"}
}

func (c *Client) do(ctx context.Context, req core.Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.tr.Do(ctx, req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", req.Method).Str("url", req.URL).Msg("request failed")
		return errs.Classify(err)
	}
	if out == nil || resp == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL, err)
	}
	return nil
}

// Join enters the locus of req.LocusURL, or dials req.Destination when the
// locus is not known yet.
func (c *Client) Join(ctx context.Context, req JoinRequest) (*domain.JoinResponse, error) {
	body := joinBody{
		Device:        c.device(),
		CorrelationID: req.CorrelationID,
		PIN:           req.PIN,
		Moderator:     req.Moderator,
	}
	if req.ResourceID != "" {
		body.UsingResource = req.ResourceID
		body.MoveMediaToResource = req.MoveMedia
	}
	url := strings.TrimRight(req.LocusURL, "/") + "/participant"
	if req.LocusURL == "" {
		if req.Destination == "" {
			return nil, &errs.ParameterError{Msg: "join needs a locus url or a destination"}
		}
		url = c.locusBase + "/loci/call"
		body.Invitee = &invitee{Address: req.Destination}
	}
	var out domain.JoinResponse
	if err := c.do(ctx, core.Request{Method: http.MethodPost, URL: url, Body: body}, &out); err != nil {
		return nil, err
	}
	if out.Locus == nil {
		return nil, fmt.Errorf("join: reply carries no locus")
	}
	return &out, nil
}

type leaveBody struct {
	Device        deviceBody `json:"device"`
	CorrelationID string     `json:"correlationId"`
	UsingResource string     `json:"usingResource,omitempty"`
}

// Leave takes self out of the locus and returns the updated locus, if any.
func (c *Client) Leave(ctx context.Context, locusURL, selfID, correlationID, resourceID string) (*domain.Locus, error) {
	url := fmt.Sprintf("%s/participant/%s/leave", strings.TrimRight(locusURL, "/"), selfID)
	var out locusEnvelope
	err := c.do(ctx, core.Request{Method: http.MethodPut, URL: url, Body: leaveBody{
		Device:        c.device(),
		CorrelationID: correlationID,
		UsingResource: resourceID,
	}}, &out)
	return out.Locus, err
}

// End ends the meeting for every participant.
func (c *Client) End(ctx context.Context, locusURL string) (*domain.Locus, error) {
	var out locusEnvelope
	err := c.do(ctx, core.Request{Method: http.MethodPost, URL: strings.TrimRight(locusURL, "/") + "/end"}, &out)
	return out.Locus, err
}

type declineBody struct {
	DeviceURL string `json:"deviceUrl"`
	Reason    string `json:"reason,omitempty"`
}

func (c *Client) Decline(ctx context.Context, locusURL, reason string) (*domain.Locus, error) {
	var out locusEnvelope
	err := c.do(ctx, core.Request{
		Method: http.MethodPut,
		URL:    strings.TrimRight(locusURL, "/") + "/participant/decline",
		Body:   declineBody{DeviceURL: c.deviceURL, Reason: reason},
	}, &out)
	return out.Locus, err
}

// Sync fetches the full locus after a sequence gap.
func (c *Client) Sync(ctx context.Context, locusURL string) (*domain.Locus, error) {
	var out domain.Locus
	if err := c.do(ctx, core.Request{Method: http.MethodGet, URL: locusURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type mediaBody struct {
	Device        deviceBody         `json:"device"`
	CorrelationID string             `json:"correlationId"`
	MediaID       string             `json:"mediaId,omitempty"`
	Roap          domain.RoapMessage `json:"roap"`
}

type mediaReply struct {
	Roap             *domain.RoapMessage      `json:"roap,omitempty"`
	MediaConnections []domain.MediaConnection `json:"mediaConnections,omitempty"`
}

// SendRoap delivers one ROAP message for self and returns the answer.
func (c *Client) SendRoap(ctx context.Context, s domain.SessionState, msg domain.RoapMessage) (*domain.RoapMessage, error) {
	if s.LocusURL == "" || s.SelfID == "" {
		return nil, errs.ErrUserNotJoined
	}
	url := fmt.Sprintf("%s/participant/%s/media", strings.TrimRight(s.LocusURL, "/"), s.SelfID)
	var out mediaReply
	err := c.do(ctx, core.Request{Method: http.MethodPut, URL: url, Body: mediaBody{
		Device:        c.device(),
		CorrelationID: s.CorrelationID,
		MediaID:       s.MediaID,
		Roap:          msg,
	}}, &out)
	if err != nil {
		return nil, err
	}
	if out.Roap != nil {
		return out.Roap, nil
	}
	for _, mc := range out.MediaConnections {
		if mc.RemoteSDP != "" {
			return &domain.RoapMessage{MessageType: domain.RoapAnswer, Seq: msg.Seq, SDPs: []string{mc.RemoteSDP}}, nil
		}
	}
	return nil, nil
}

// InfoRequest asks the meeting-info service about a destination, optionally
// with a password or captcha answer.
type InfoRequest struct {
	Destination string
	Password    string
	CaptchaID   string
	CaptchaCode string
}

type infoBody struct {
	Destination       string `json:"destination"`
	Password          string `json:"password,omitempty"`
	CaptchaID         string `json:"captchaID,omitempty"`
	CaptchaVerifyCode string `json:"captchaVerifyCode,omitempty"`
}

func (c *Client) MeetingInfo(ctx context.Context, req InfoRequest) (*domain.MeetingInfo, error) {
	if c.infoURL == "" {
		return nil, &errs.ParameterError{Msg: "meeting info url is not configured"}
	}
	var out domain.MeetingInfo
	err := c.do(ctx, core.Request{Method: http.MethodPost, URL: c.infoURL, Body: infoBody{
		Destination:       req.Destination,
		Password:          req.Password,
		CaptchaID:         req.CaptchaID,
		CaptchaVerifyCode: req.CaptchaCode,
	}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type floorBody struct {
	Floor       floorRequest `json:"floor"`
	ResourceURL string       `json:"resourceUrl,omitempty"`
}

type floorRequest struct {
	Disposition string    `json:"disposition"`
	Requester   floorUser `json:"requester"`
	Beneficiary floorUser `json:"beneficiary"`
}

type floorUser struct {
	ID        string `json:"id"`
	DeviceURL string `json:"deviceUrl"`
}

// Floor grants or releases a media share floor for selfID.
func (c *Client) Floor(ctx context.Context, shareURL, selfID, disposition, resourceURL string) (*domain.Locus, error) {
	if shareURL == "" {
		return nil, &errs.ParameterError{Msg: "share url is empty"}
	}
	u := floorUser{ID: selfID, DeviceURL: c.deviceURL}
	var out locusEnvelope
	err := c.do(ctx, core.Request{Method: http.MethodPut, URL: shareURL, Body: floorBody{
		Floor:       floorRequest{Disposition: disposition, Requester: u, Beneficiary: u},
		ResourceURL: resourceURL,
	}}, &out)
	return out.Locus, err
}

type lockBody struct {
	Lock struct {
		Locked bool `json:"locked"`
	} `json:"lock"`
}

func (c *Client) Lock(ctx context.Context, locusURL string, locked bool) (*domain.Locus, error) {
	var body lockBody
	body.Lock.Locked = locked
	var out locusEnvelope
	err := c.do(ctx, core.Request{Method: http.MethodPatch, URL: strings.TrimRight(locusURL, "/") + "/controls", Body: body}, &out)
	return out.Locus, err
}

type admitBody struct {
	Admit struct {
		ParticipantIDs []string `json:"participantIds"`
	} `json:"admit"`
}

func (c *Client) Admit(ctx context.Context, locusURL string, ids []string) (*domain.Locus, error) {
	var body admitBody
	body.Admit.ParticipantIDs = ids
	var out locusEnvelope
	err := c.do(ctx, core.Request{Method: http.MethodPatch, URL: strings.TrimRight(locusURL, "/") + "/controls", Body: body}, &out)
	return out.Locus, err
}

type muteBody struct {
	Audio struct {
		Muted bool `json:"muted"`
	} `json:"audio"`
}

func (c *Client) Mute(ctx context.Context, locusURL, selfID string, muted bool) (*domain.Locus, error) {
	var body muteBody
	body.Audio.Muted = muted
	url := fmt.Sprintf("%s/participant/%s/controls", strings.TrimRight(locusURL, "/"), selfID)
	var out locusEnvelope
	err := c.do(ctx, core.Request{Method: http.MethodPatch, URL: url, Body: body}, &out)
	return out.Locus, err
}
