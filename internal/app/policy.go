package app

import (
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// RecoveryAction is what a session does when the server or the media path
// drops it.
type RecoveryAction int

const (
	NoAction RecoveryAction = iota
	Reconnect
	Rejoin
	LeaveLocally
)

func (a RecoveryAction) String() string {
	switch a {
	case Reconnect:
		return "reconnect"
	case Rejoin:
		return "rejoin"
	case LeaveLocally:
		return "leave_locally"
	default:
		return "none"
	}
}

type Policy interface {
	// OnSelfLeft is asked when the server marks a joined self as LEFT.
	OnSelfLeft(reason string) RecoveryAction
	OnMediaState(state core.MediaState) RecoveryAction
}

type SimplePolicy struct {
	AutoRejoin bool
}

func (p SimplePolicy) OnSelfLeft(reason string) RecoveryAction {
	if reason == domain.ReasonInactive && p.AutoRejoin {
		return Rejoin
	}
	return LeaveLocally
}

func (SimplePolicy) OnMediaState(state core.MediaState) RecoveryAction {
	switch state {
	case core.MediaFailed, core.MediaDisconnected:
		return Reconnect
	default:
		return NoAction
	}
}
