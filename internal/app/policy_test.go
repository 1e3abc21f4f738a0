package app

import (
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

func TestSimplePolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy SimplePolicy
		reason string
		want   RecoveryAction
	}{
		{"inactive with auto rejoin", SimplePolicy{AutoRejoin: true}, domain.ReasonInactive, Rejoin},
		{"inactive without auto rejoin", SimplePolicy{}, domain.ReasonInactive, LeaveLocally},
		{"moved", SimplePolicy{AutoRejoin: true}, domain.ReasonMoved, LeaveLocally},
		{"ended", SimplePolicy{AutoRejoin: true}, domain.ReasonEnded, LeaveLocally},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.OnSelfLeft(tt.reason); got != tt.want {
				t.Fatalf("OnSelfLeft(%q) = %s, want %s", tt.reason, got, tt.want)
			}
		})
	}

	media := map[core.MediaState]RecoveryAction{
		core.MediaConnected:    NoAction,
		core.MediaConnecting:   NoAction,
		core.MediaDisconnected: Reconnect,
		core.MediaFailed:       Reconnect,
		core.MediaClosed:       NoAction,
	}
	for st, want := range media {
		if got := (SimplePolicy{}).OnMediaState(st); got != want {
			t.Errorf("OnMediaState(%s) = %s, want %s", st, got, want)
		}
	}
}
