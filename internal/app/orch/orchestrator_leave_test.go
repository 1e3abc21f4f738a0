package orch

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"go.uber.org/mock/gomock"
)

func TestLeaveOnInactiveMakesNoRequest(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)

	ended := joinedLocus(11)
	ended.FullState.State = domain.FullStateInactive
	if err := h.s.HandleLocusEvent(context.Background(), domain.LocusEvent{Type: domain.EventLocusFull, LocusURL: locusURL, Locus: ended}); err != nil {
		t.Fatal(err)
	}
	if got := h.s.Snapshot().FSM; got != domain.StateInactive {
		t.Fatalf("FSM = %s, want INACTIVE", got)
	}

	// No transport expectation is registered: any request fails the test.
	if err := h.s.Leave(context.Background(), LeaveOptions{}); !errors.Is(err, errs.ErrMeetingNotActive) {
		t.Fatalf("Leave err = %v", err)
	}
	if err := h.s.EndMeetingForAll(context.Background()); !errors.Is(err, errs.ErrMeetingNotActive) {
		t.Fatalf("EndMeetingForAll err = %v", err)
	}
}

func TestLeaveWhenNotJoined(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	if err := h.s.Leave(context.Background(), LeaveOptions{}); !errors.Is(err, errs.ErrUserNotJoined) {
		t.Fatalf("Leave before join: %v", err)
	}

	h.join(t)
	h.expect(t, "PUT", locusURL+"/participant/self-1/leave", 200, map[string]any{"locus": leftLocus(11)})
	if err := h.s.Leave(context.Background(), LeaveOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := h.s.Leave(context.Background(), LeaveOptions{}); !errors.Is(err, errs.ErrUserNotJoined) {
		t.Fatalf("second Leave: %v", err)
	}
}

func TestLeaveTeardownIsBestEffortAndOrdered(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	h.establishMedia(t)

	boom := errors.New("track busy")
	gomock.InOrder(
		h.media.EXPECT().StopStats().Return(nil),
		h.media.EXPECT().ReleaseLocalTracks().Return(boom),
		h.media.EXPECT().ReleaseRemoteTracks().Return(nil),
		h.media.EXPECT().Close().Return(nil),
	)
	h.expect(t, "PUT", locusURL+"/participant/self-1/leave", 200, map[string]any{"locus": leftLocus(11)})

	err := h.s.Leave(context.Background(), LeaveOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("Leave err = %v, want the first teardown failure", err)
	}
	if got := h.s.Snapshot().FSM; got != domain.StateLeft {
		t.Fatalf("FSM = %s", got)
	}
	if h.s.CanUpdateMedia() {
		t.Fatal("media refs survived teardown")
	}
	if h.clock.Pending() != 0 {
		t.Fatal("keepalive survived teardown")
	}
}

func TestLeaveFailureKeepsSessionJoined(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	h.expect(t, "PUT", locusURL+"/participant/self-1/leave", 500, nil)

	if err := h.s.Leave(context.Background(), LeaveOptions{}); err == nil {
		t.Fatal("expected an error")
	}
	if got := h.s.Snapshot().FSM; got != domain.StateJoined {
		t.Fatalf("FSM = %s", got)
	}
	// The gate must be open again.
	h.expect(t, "POST", locusURL+"/end", 200, map[string]any{"locus": leftLocus(11)})
	if err := h.s.EndMeetingForAll(context.Background()); err != nil {
		t.Fatalf("EndMeetingForAll: %v", err)
	}
}

func TestRejoinBuildsFreshNegotiator(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	h.establishMedia(t)

	h.media.EXPECT().StopStats().Return(nil)
	h.media.EXPECT().ReleaseLocalTracks().Return(nil)
	h.media.EXPECT().ReleaseRemoteTracks().Return(nil)
	h.media.EXPECT().Close().Return(nil)
	h.expect(t, "PUT", locusURL+"/participant/self-1/leave", 200, map[string]any{"locus": leftLocus(11)})
	if err := h.s.Leave(context.Background(), LeaveOptions{}); err != nil {
		t.Fatal(err)
	}

	h.expect(t, "POST", locusURL+"/participant", 200, joinReply(joinedLocus(12)))
	if err := h.s.Join(context.Background(), JoinOptions{}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	// Leave stopped the first negotiator; media must come up on a new one.
	h.establishMedia(t)
	if !h.s.CanUpdateMedia() {
		t.Fatal("media not established after rejoin")
	}
}
