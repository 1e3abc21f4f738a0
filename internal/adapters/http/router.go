package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Meeting is the control surface of one session. *orch.Session satisfies it.
type Meeting interface {
	app.Meeting
	FetchMeetingInfo(ctx context.Context, opts orch.InfoOptions) error
	Join(ctx context.Context, opts orch.JoinOptions) error
	Leave(ctx context.Context, opts orch.LeaveOptions) error
	EndMeetingForAll(ctx context.Context) error
	Decline(ctx context.Context, reason string) error
	AddMedia(ctx context.Context, upd domain.MediaUpdate) error
	UpdateMedia(ctx context.Context, upd domain.MediaUpdate) error
	SetMuted(ctx context.Context, muted bool) error
	MoveTo(ctx context.Context, resourceID string) error
	MoveFrom(ctx context.Context, resourceID string) error
	StartShare(ctx context.Context, kind domain.ShareKind, resourceURL string) error
	StopShare(ctx context.Context) error
	Lock(ctx context.Context, locked bool) error
	Admit(ctx context.Context, participantIDs []string) error
}

// MeetingFactory builds a new session dialing destination.
type MeetingFactory func(destination string) (Meeting, error)

const lastMeetingKey = "last_meeting"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type handlers struct {
	reg     *app.Registry
	factory MeetingFactory
}

func SetupRouter(cfg *config.Config, reg *app.Registry, factory MeetingFactory) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(NewClientRateLimiter(cfg.RateLimit, cfg.RateWindow, nil).Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": reg.Len()})
	})

	h := &handlers{reg: reg, factory: factory}
	api := r.Group("/api/meetings")
	api.GET("", h.list)
	api.POST("", h.create)
	api.GET("/last", h.last)
	api.GET("/:id", h.with(func(*gin.Context, Meeting) error { return nil }))
	api.DELETE("/:id", h.remove)

	api.POST("/:id/info", h.with(h.info))
	api.POST("/:id/join", h.with(h.join))
	api.POST("/:id/leave", h.with(h.leave))
	api.POST("/:id/end", h.with(func(c *gin.Context, m Meeting) error {
		return m.EndMeetingForAll(c.Request.Context())
	}))
	api.POST("/:id/decline", h.with(h.decline))
	api.POST("/:id/media", h.with(h.media(Meeting.AddMedia)))
	api.PATCH("/:id/media", h.with(h.media(Meeting.UpdateMedia)))
	api.POST("/:id/mute", h.with(h.mute))
	api.POST("/:id/move", h.with(h.move))
	api.POST("/:id/share", h.with(h.startShare))
	api.DELETE("/:id/share", h.with(func(c *gin.Context, m Meeting) error {
		return m.StopShare(c.Request.Context())
	}))
	api.POST("/:id/lock", h.with(h.lock))
	api.POST("/:id/admit", h.with(h.admit))

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

func (h *handlers) lookup(c *gin.Context) (Meeting, error) {
	m, err := h.reg.Get(c.GetString("client_token"), c.Param("id"))
	if err != nil {
		return nil, err
	}
	mt, ok := m.(Meeting)
	if !ok {
		return nil, errors.New("session does not expose the control api")
	}
	return mt, nil
}

// with runs fn against the addressed meeting and replies with its snapshot.
func (h *handlers) with(fn func(*gin.Context, Meeting) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := h.lookup(c)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := fn(c, m); err != nil {
			log.Debug().Str("module", "adapters.http").Str("session_id", m.ID()).Str("path", c.FullPath()).Err(err).Msg("operation failed")
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(m.Snapshot()))
	}
}

// bind decodes an optional JSON body.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return &errs.ParameterError{Msg: err.Error()}
	}
	return nil
}

func (h *handlers) list(c *gin.Context) {
	ms := h.reg.List(c.GetString("client_token"))
	out := make([]gin.H, 0, len(ms))
	for _, m := range ms {
		out = append(out, sessionView(m.Snapshot()))
	}
	c.JSON(http.StatusOK, gin.H{"meetings": out})
}

func (h *handlers) create(c *gin.Context) {
	var req struct {
		Destination string `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Destination == "" {
		writeError(c, &errs.ParameterError{Msg: "destination is required"})
		return
	}
	m, err := h.factory(req.Destination)
	if err != nil {
		writeError(c, err)
		return
	}
	h.reg.Add(c.GetString("client_token"), m)

	sess := sessions.Default(c)
	sess.Set(lastMeetingKey, m.ID())
	if err := sess.Save(); err != nil {
		log.Warn().Str("module", "adapters.http").Err(err).Msg("cookie session save failed")
	}
	c.JSON(http.StatusCreated, sessionView(m.Snapshot()))
}

// last returns the meeting this browser created most recently.
func (h *handlers) last(c *gin.Context) {
	id, _ := sessions.Default(c).Get(lastMeetingKey).(string)
	m, err := h.reg.Get(c.GetString("client_token"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(m.Snapshot()))
}

func (h *handlers) remove(c *gin.Context) {
	if err := h.reg.Remove(c.Request.Context(), c.GetString("client_token"), c.Param("id")); err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			writeError(c, err)
			return
		}
		log.Warn().Str("module", "adapters.http").Str("session_id", c.Param("id")).Err(err).Msg("close reported errors")
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) info(c *gin.Context, m Meeting) error {
	var req struct {
		Password    string `json:"password"`
		CaptchaCode string `json:"captchaCode"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return m.FetchMeetingInfo(c.Request.Context(), orch.InfoOptions{Password: req.Password, CaptchaCode: req.CaptchaCode})
}

func (h *handlers) join(c *gin.Context, m Meeting) error {
	var req struct {
		PIN       string `json:"pin"`
		Moderator *bool  `json:"moderator"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return m.Join(c.Request.Context(), orch.JoinOptions{PIN: req.PIN, Moderator: req.Moderator})
}

func (h *handlers) leave(c *gin.Context, m Meeting) error {
	var req struct {
		ResourceID string `json:"resourceId"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return m.Leave(c.Request.Context(), orch.LeaveOptions{ResourceID: req.ResourceID})
}

func (h *handlers) decline(c *gin.Context, m Meeting) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return m.Decline(c.Request.Context(), req.Reason)
}

func (h *handlers) media(op func(Meeting, context.Context, domain.MediaUpdate) error) func(*gin.Context, Meeting) error {
	return func(c *gin.Context, m Meeting) error {
		var upd domain.MediaUpdate
		if err := bind(c, &upd); err != nil {
			return err
		}
		return op(m, c.Request.Context(), upd)
	}
}

func (h *handlers) mute(c *gin.Context, m Meeting) error {
	var req struct {
		Muted *bool `json:"muted"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Muted == nil {
		return &errs.ParameterError{Msg: "muted is required"}
	}
	return m.SetMuted(c.Request.Context(), *req.Muted)
}

func (h *handlers) move(c *gin.Context, m Meeting) error {
	var req struct {
		ResourceID string `json:"resourceId"`
		Direction  string `json:"direction"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	switch req.Direction {
	case "to", "":
		return m.MoveTo(c.Request.Context(), req.ResourceID)
	case "from":
		return m.MoveFrom(c.Request.Context(), req.ResourceID)
	default:
		return &errs.ParameterError{Msg: "direction must be to or from"}
	}
}

func (h *handlers) startShare(c *gin.Context, m Meeting) error {
	var req struct {
		Kind        string `json:"kind"`
		ResourceURL string `json:"resourceUrl"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	var kind domain.ShareKind
	switch req.Kind {
	case "content":
		kind = domain.ShareKindContent
	case "whiteboard":
		kind = domain.ShareKindWhiteboard
	default:
		return &errs.ParameterError{Msg: "kind must be content or whiteboard"}
	}
	return m.StartShare(c.Request.Context(), kind, req.ResourceURL)
}

func (h *handlers) lock(c *gin.Context, m Meeting) error {
	var req struct {
		Locked *bool `json:"locked"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Locked == nil {
		return &errs.ParameterError{Msg: "locked is required"}
	}
	return m.Lock(c.Request.Context(), *req.Locked)
}

func (h *handlers) admit(c *gin.Context, m Meeting) error {
	var req struct {
		ParticipantIDs []string `json:"participantIds"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	return m.Admit(c.Request.Context(), req.ParticipantIDs)
}

func sessionView(st domain.SessionState) gin.H {
	view := gin.H{
		"id":            st.ID,
		"correlationId": st.CorrelationID,
		"destination":   st.Destination,
		"locusUrl":      st.LocusURL,
		"state":         st.FSM.String(),
		"selfState":     st.SelfState,
		"inLobby":       st.InLobby,
		"moderator":     st.Moderator,
		"password":      st.Password.String(),
		"locked":        st.Controls.Lock.Enabled,
		"displayHints":  st.DisplayHints,
	}
	if st.SelfReason != "" {
		view["selfReason"] = st.SelfReason
	}
	if st.Captcha != nil {
		view["captcha"] = st.Captcha
	}
	if st.MeetingInfo != nil {
		view["meetingInfo"] = st.MeetingInfo
	}
	return view
}
