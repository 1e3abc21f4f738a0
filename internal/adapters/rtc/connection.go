package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/clock"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type Config struct {
	ICEServers    []string
	StatsInterval time.Duration
	// Clock drives the stats ticker; nil means the real clock.
	Clock clock.Clock
}

func WebRTCConfig(servers []string) webrtc.Configuration {
	if len(servers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: servers}},
	}
}

// slot is one of the three media lines a session negotiates.
type slot struct {
	name  string
	kind  webrtc.RTPCodecType
	track *webrtc.TrackLocalStaticSample
	tr    *webrtc.RTPTransceiver
	dir   domain.Direction
}

// Connection implements core.MediaEngine on a pion PeerConnection.
type Connection struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	audio   *slot
	video   *slot
	share   *slot
	onState func(core.MediaState)

	statsStop chan struct{}
	statsOnce sync.Once
	logger    zerolog.Logger
}

// Factory returns a constructor suitable for orch.Deps.NewMedia.
func Factory(cfg Config, logger zerolog.Logger) func() (core.MediaEngine, error) {
	return func() (core.MediaEngine, error) {
		return NewConnection(cfg, logger)
	}
}

func NewConnection(cfg Config, logger zerolog.Logger) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(WebRTCConfig(cfg.ICEServers))
	if err != nil {
		return nil, err
	}
	c := &Connection{
		pc:        pc,
		statsStop: make(chan struct{}),
		logger:    logger.With().Str("module", "webrtc").Logger(),
	}
	mk := func(name string, kind webrtc.RTPCodecType, mime string) (*slot, error) {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, name, "huddle")
		if err != nil {
			return nil, err
		}
		return &slot{name: name, kind: kind, track: track, dir: domain.DirInactive}, nil
	}
	if c.audio, err = mk("audio", webrtc.RTPCodecTypeAudio, webrtc.MimeTypeOpus); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if c.video, err = mk("video", webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if c.share, err = mk("share", webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8); err != nil {
		_ = pc.Close()
		return nil, err
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(mapState(s))
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
	})

	if cfg.StatsInterval > 0 {
		clk := cfg.Clock
		if clk == nil {
			clk = clock.Real()
		}
		go c.statsLoop(clk.NewTicker(cfg.StatsInterval))
	}
	return c, nil
}

func mapState(s webrtc.PeerConnectionState) core.MediaState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return core.MediaConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.MediaConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.MediaDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.MediaFailed
	case webrtc.PeerConnectionStateClosed:
		return core.MediaClosed
	default:
		return core.MediaNew
	}
}

func pionDirection(d domain.Direction) webrtc.RTPTransceiverDirection {
	switch d {
	case domain.DirSendRecv:
		return webrtc.RTPTransceiverDirectionSendrecv
	case domain.DirSendOnly:
		return webrtc.RTPTransceiverDirectionSendonly
	case domain.DirRecvOnly:
		return webrtc.RTPTransceiverDirectionRecvonly
	default:
		return webrtc.RTPTransceiverDirectionInactive
	}
}

func sends(d domain.Direction) bool {
	return d == domain.DirSendRecv || d == domain.DirSendOnly
}

// apply moves one slot to dir. A slot that was never negotiated is only
// added when it sends or receives something.
func (c *Connection) apply(s *slot, dir *domain.Direction) error {
	if dir == nil || *dir == s.dir {
		return nil
	}
	d := *dir
	init := webrtc.RTPTransceiverInit{Direction: pionDirection(d)}
	switch {
	case s.tr == nil && sends(d):
		tr, err := c.pc.AddTransceiverFromTrack(s.track, init)
		if err != nil {
			return fmt.Errorf("%s transceiver: %w", s.name, err)
		}
		s.tr = tr
	case s.tr == nil && d == domain.DirRecvOnly:
		tr, err := c.pc.AddTransceiverFromKind(s.kind, init)
		if err != nil {
			return fmt.Errorf("%s transceiver: %w", s.name, err)
		}
		s.tr = tr
	case s.tr != nil && sends(d):
		if snd := s.tr.Sender(); snd != nil {
			if err := snd.ReplaceTrack(s.track); err != nil {
				return fmt.Errorf("%s attach: %w", s.name, err)
			}
		} else {
			tr, err := c.pc.AddTransceiverFromTrack(s.track, init)
			if err != nil {
				return fmt.Errorf("%s transceiver: %w", s.name, err)
			}
			s.tr = tr
		}
	case s.tr != nil:
		if snd := s.tr.Sender(); snd != nil {
			if err := snd.ReplaceTrack(nil); err != nil {
				return fmt.Errorf("%s detach: %w", s.name, err)
			}
		}
	}
	s.dir = d
	return nil
}

func (c *Connection) CreateOffer(ctx context.Context, upd domain.MediaUpdate) (string, error) {
	c.mu.Lock()
	for _, p := range []struct {
		s   *slot
		dir *domain.Direction
	}{{c.audio, upd.Audio}, {c.video, upd.Video}, {c.share, upd.Share}} {
		if err := c.apply(p.s, p.dir); err != nil {
			c.mu.Unlock()
			return "", err
		}
	}
	c.mu.Unlock()

	offer, err := c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: upd.RestartICE})
	if err != nil {
		return "", err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return c.pc.LocalDescription().SDP, nil
}

func (c *Connection) ApplyAnswer(_ context.Context, sdp string) error {
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (c *Connection) ConnectionState() core.MediaState {
	return mapState(c.pc.ConnectionState())
}

func (c *Connection) OnStateChange(fn func(core.MediaState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Connection) statsLoop(t *clock.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-c.statsStop:
			return
		case <-t.C:
			var packets, lost uint64
			report := c.pc.GetStats()
			for _, s := range report {
				if in, ok := s.(webrtc.InboundRTPStreamStats); ok {
					packets += uint64(in.PacketsReceived)
					if in.PacketsLost > 0 {
						lost += uint64(in.PacketsLost)
					}
				}
			}
			c.logger.Debug().Int("reports", len(report)).Uint64("packets_in", packets).Uint64("packets_lost", lost).Msg("stats")
		}
	}
}

func (c *Connection) StopStats() error {
	c.statsOnce.Do(func() { close(c.statsStop) })
	return nil
}

func (c *Connection) ReleaseLocalTracks() error {
	var errs []error
	for _, snd := range c.pc.GetSenders() {
		if snd.Track() == nil {
			continue
		}
		if err := c.pc.RemoveTrack(snd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Connection) ReleaseRemoteTracks() error {
	var errs []error
	for _, rcv := range c.pc.GetReceivers() {
		if err := rcv.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Connection) Close() error {
	_ = c.StopStats()
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
		return err
	}
	c.logger.Info().Msg("closed")
	return nil
}
