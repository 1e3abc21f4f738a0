package orch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"go.uber.org/mock/gomock"
)

func TestAddMediaGates(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	upd := domain.MediaUpdate{Audio: domain.Dir(domain.DirSendRecv)}
	if err := h.s.AddMedia(context.Background(), upd); !errors.Is(err, errs.ErrUserNotJoined) {
		t.Fatalf("before join: %v", err)
	}

	lobby := joinedLocus(10)
	lobby.Self.InLobby = true
	h.expect(t, "POST", dialURL, 200, joinReply(lobby))
	if err := h.s.Join(context.Background(), JoinOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := h.s.AddMedia(context.Background(), upd); !errors.Is(err, errs.ErrUserInLobby) {
		t.Fatalf("in lobby: %v", err)
	}
}

func TestUpdateMediaNeedsEstablishedMedia(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	err := h.s.UpdateMedia(context.Background(), domain.MediaUpdate{Video: domain.Dir(domain.DirInactive)})
	if !errors.Is(err, errs.ErrNoMediaEstablished) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddMediaCoalescesWhileInFlight(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)

	release := make(chan struct{})
	var mu sync.Mutex
	var offers []domain.MediaUpdate
	h.media.EXPECT().OnStateChange(gomock.Any())
	h.media.EXPECT().CreateOffer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, upd domain.MediaUpdate) (string, error) {
			mu.Lock()
			offers = append(offers, upd)
			n := len(offers)
			mu.Unlock()
			if n == 1 {
				<-release
			}
			return "v=0 offer", nil
		}).Times(2)
	h.media.EXPECT().ApplyAnswer(gomock.Any(), "v=0 answer").Return(nil).Times(2)
	h.expect(t, "PUT", locusURL+"/participant/self-1/media", 200, roapAnswer(1)).Times(2)

	first := domain.MediaUpdate{Audio: domain.Dir(domain.DirSendRecv)}
	second := domain.MediaUpdate{Video: domain.Dir(domain.DirSendRecv)}
	third := domain.MediaUpdate{Video: domain.Dir(domain.DirRecvOnly)}

	results := make(chan error, 3)
	go func() { results <- h.s.AddMedia(context.Background(), first) }()
	waitFor(t, func() bool { return h.s.currentNegotiator() != nil && h.s.currentNegotiator().InFlight() })
	if h.s.CanUpdateMedia() {
		t.Fatal("CanUpdateMedia while a renegotiation is in flight")
	}

	go func() { results <- h.s.AddMedia(context.Background(), second) }()
	waitFor(t, func() bool { return h.s.currentNegotiator().Queued() == 1 })
	go func() { results <- h.s.AddMedia(context.Background(), third) }()
	waitFor(t, func() bool { return h.s.currentNegotiator().Queued() == 2 })

	close(release)
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			t.Fatalf("AddMedia: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(offers) != 2 {
		t.Fatalf("offers = %d, want 2", len(offers))
	}
	if offers[1].Video == nil || *offers[1].Video != domain.DirRecvOnly || offers[1].Audio != nil {
		t.Fatalf("replayed update = %+v, want the latest one", offers[1])
	}
	if got := h.s.Snapshot().RoapSeq; got != 2 {
		t.Fatalf("RoapSeq = %d, want 2", got)
	}
	waitFor(t, h.s.CanUpdateMedia)
}

func TestMediaFailureTriggersReconnect(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)

	var onState func(core.MediaState)
	h.media.EXPECT().OnStateChange(gomock.Any()).Do(func(fn func(core.MediaState)) { onState = fn })
	h.media.EXPECT().CreateOffer(gomock.Any(), gomock.Any()).Return("v=0 offer", nil)
	h.media.EXPECT().ApplyAnswer(gomock.Any(), "v=0 answer").Return(nil).Times(2)
	h.expect(t, "PUT", locusURL+"/participant/self-1/media", 200, roapAnswer(1)).Times(2)
	if err := h.s.AddMedia(context.Background(), domain.MediaUpdate{Audio: domain.Dir(domain.DirSendRecv)}); err != nil {
		t.Fatal(err)
	}

	h.media.EXPECT().CreateOffer(gomock.Any(), domain.MediaUpdate{Replace: true, RestartICE: true}).Return("v=0 offer", nil)
	onState(core.MediaFailed)
	h.s.Reconnect().Wait()

	if got := h.s.Snapshot().RoapSeq; got != 2 {
		t.Fatalf("RoapSeq = %d after ICE restart", got)
	}
}

func TestMoveToFailureReportsBehavioralFailure(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	var failures []BehavioralFailure
	h.s.Failures().Subscribe(func(f BehavioralFailure) { failures = append(failures, f) })

	h.expect(t, "POST", locusURL+"/participant", 500, nil)
	if err := h.s.MoveTo(context.Background(), "room-device"); err == nil {
		t.Fatal("expected an error")
	}
	snap := h.s.Snapshot()
	if len(failures) != 1 {
		t.Fatalf("failures = %d", len(failures))
	}
	f := failures[0]
	if f.Op != OpMoveTo || f.CorrelationID != snap.CorrelationID || f.LocusID != "L1" || f.Err == nil {
		t.Fatalf("failure = %+v", f)
	}
	if snap.FSM != domain.StateJoined || snap.MediaID != "media-1" {
		t.Fatalf("state changed after failed move: %+v", snap)
	}
}

func TestMoveToReconcilesMedia(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	h.establishMedia(t)

	moved := joinReply(joinedLocus(11))
	moved.MediaConnections[0].MediaID = "media-2"
	h.expect(t, "POST", locusURL+"/participant", 200, moved)
	h.media.EXPECT().CreateOffer(gomock.Any(), domain.MediaUpdate{
		Audio: domain.Dir(domain.DirInactive),
		Video: domain.Dir(domain.DirInactive),
	}).Return("v=0 offer", nil)
	h.media.EXPECT().ApplyAnswer(gomock.Any(), "v=0 answer").Return(nil)
	h.expect(t, "PUT", locusURL+"/participant/self-1/media", 200, roapAnswer(2))

	if err := h.s.MoveTo(context.Background(), "room-device"); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	h.s.Reconnect().Wait()
	if got := h.s.Snapshot().MediaID; got != "media-2" {
		t.Fatalf("MediaID = %s", got)
	}
	if b := h.body(t, locusURL+"/participant"); b["usingResource"] != "room-device" || b["moveMediaToResource"] != true {
		t.Fatalf("move body = %v", b)
	}
}

func TestMoveNeedsResource(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	var pe *errs.ParameterError
	if err := h.s.MoveFrom(context.Background(), ""); !errors.As(err, &pe) {
		t.Fatalf("err = %v", err)
	}
}
