package orch

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/huddle/internal/app/locus"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
)

func TestWhiteboardShareNeedsHint(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)

	var pe *errs.PermissionError
	err := h.s.StartShare(context.Background(), domain.ShareKindWhiteboard, "https://boards.example.com/b1")
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PermissionError", err)
	}
}

func TestWhiteboardShareAndStop(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t, locus.CanShareWhiteboard.Token())

	granted := joinedLocus(11, locus.CanShareWhiteboard.Token())
	granted.MediaShares[1].ResourceURL = "https://boards.example.com/b1"
	granted.MediaShares[1].Floor = &domain.Floor{
		Disposition: domain.FloorGranted,
		Beneficiary: &domain.Person{ID: "self-1"},
	}
	h.expect(t, "PUT", shareURL, 200, map[string]any{"locus": granted})
	if err := h.s.StartShare(context.Background(), domain.ShareKindWhiteboard, "https://boards.example.com/b1"); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	st := h.s.Share().State()
	if st.Kind != domain.ShareKindWhiteboard || st.BeneficiaryID != "self-1" {
		t.Fatalf("share state = %+v", st)
	}
	if b := h.body(t, shareURL); b["resourceUrl"] != "https://boards.example.com/b1" {
		t.Fatalf("floor body = %v", b)
	}

	released := joinedLocus(12, locus.CanShareWhiteboard.Token())
	h.expect(t, "PUT", shareURL, 200, map[string]any{"locus": released})
	if err := h.s.StopShare(context.Background()); err != nil {
		t.Fatalf("StopShare: %v", err)
	}
	if h.s.Share().State().Active() {
		t.Fatal("share still active")
	}
}

func TestContentShareNeedsMedia(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t)
	if err := h.s.StartShare(context.Background(), domain.ShareKindContent, ""); !errors.Is(err, errs.ErrNoMediaEstablished) {
		t.Fatalf("err = %v", err)
	}
}

func TestControlsAreCapabilityGated(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.join(t, locus.CanLock.Token())

	var pe *errs.PermissionError
	if err := h.s.Admit(context.Background(), []string{"p1"}); !errors.As(err, &pe) {
		t.Fatalf("Admit err = %v", err)
	}
	if err := h.s.Lock(context.Background(), false); !errors.As(err, &pe) || pe.Action != "unlock" {
		t.Fatalf("unlock err = %v", err)
	}

	h.expect(t, "PATCH", locusURL+"/controls", 200, nil)
	if err := h.s.Lock(context.Background(), true); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if b := h.body(t, locusURL+"/controls"); b["lock"].(map[string]any)["locked"] != true {
		t.Fatalf("lock body = %v", b)
	}
}
