package core

import (
	"context"

	"github.com/dkeye/huddle/internal/domain"
)

type MediaState int

const (
	MediaNew MediaState = iota
	MediaConnecting
	MediaConnected
	MediaDisconnected
	MediaFailed
	MediaClosed
)

func (s MediaState) String() string {
	switch s {
	case MediaNew:
		return "new"
	case MediaConnecting:
		return "connecting"
	case MediaConnected:
		return "connected"
	case MediaDisconnected:
		return "disconnected"
	case MediaFailed:
		return "failed"
	case MediaClosed:
		return "closed"
	default:
		return "unknown"
	}
}

//go:generate mockgen -destination=mocks/mock_media.go -package=mocks . MediaEngine

// MediaEngine is the local media stack. It owns SDP, ICE and tracks; the
// session only sequences offers and answers through it.
type MediaEngine interface {
	// CreateOffer applies the requested track changes and returns a local SDP offer.
	CreateOffer(ctx context.Context, upd domain.MediaUpdate) (string, error)
	// ApplyAnswer sets the remote SDP answer.
	ApplyAnswer(ctx context.Context, sdp string) error
	ConnectionState() MediaState
	// OnStateChange sets a callback for media path state changes.
	OnStateChange(func(MediaState))

	StopStats() error
	ReleaseLocalTracks() error
	ReleaseRemoteTracks() error
	// Close releases the underlying media transport.
	Close() error
}
