package share

import (
	"testing"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/event"
	"github.com/rs/zerolog"
)

func floors(content, board *domain.Floor) *domain.Locus {
	return &domain.Locus{
		URL: "https://locus/loci/1",
		MediaShares: []domain.MediaShare{
			{Name: domain.ShareContent, URL: "https://locus/loci/1/content", Floor: content},
			{Name: domain.ShareWhiteboard, URL: "https://locus/loci/1/whiteboard", ResourceURL: "https://board/1", Floor: board},
		},
	}
}

func granted(id string) *domain.Floor {
	return &domain.Floor{Disposition: domain.FloorGranted, Beneficiary: &domain.Person{ID: id}}
}

func released(id string) *domain.Floor {
	return &domain.Floor{Disposition: domain.FloorReleased, Beneficiary: &domain.Person{ID: id}}
}

type recorders struct {
	events     event.Recorder[Event]
	membership event.Recorder[MembershipEvent]
}

func newArbiter(self string) (*Arbiter, *recorders) {
	a := New(func() string { return self }, zerolog.Nop())
	r := &recorders{}
	a.Events().Subscribe(r.events.Record)
	a.Membership().Subscribe(r.membership.Record)
	return a, r
}

func types(evs []Event) []EventType {
	out := make([]EventType, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestContentThenWhiteboard(t *testing.T) {
	a, r := newArbiter("me")

	a.Update(floors(granted("A"), nil))
	a.Update(floors(released("A"), granted("B")))

	want := []EventType{ContentStarted, ContentStopped, WhiteboardStarted}
	if got := types(r.events.Values()); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	st := a.State()
	if st.Kind != domain.ShareKindWhiteboard || st.BeneficiaryID != "B" {
		t.Fatalf("state = %+v", st)
	}
	if prev := a.Previous(); prev.Kind != domain.ShareKindContent || prev.BeneficiaryID != "A" {
		t.Fatalf("previous = %+v", prev)
	}
	m := r.membership.Values()
	if len(m) != 2 {
		t.Fatalf("membership events = %+v", m)
	}
	if m[0] != (MembershipEvent{ActiveSharingID: "A"}) {
		t.Fatalf("first membership = %+v", m[0])
	}
	if m[1] != (MembershipEvent{ActiveSharingID: "B", EndedSharingID: "A"}) {
		t.Fatalf("second membership = %+v", m[1])
	}
}

func TestContentPreemptsWhiteboard(t *testing.T) {
	a, r := newArbiter("me")
	a.Update(floors(nil, granted("B")))
	a.Update(floors(granted("A"), granted("B")))

	want := []EventType{WhiteboardStarted, WhiteboardStopped, ContentStarted}
	if got := types(r.events.Values()); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if st := a.State(); st.Kind != domain.ShareKindContent || st.BeneficiaryID != "A" {
		t.Fatalf("state = %+v", st)
	}
}

func TestLocalShareStopped(t *testing.T) {
	a, r := newArbiter("me")
	a.Update(floors(granted("me"), nil))
	a.Update(floors(released("me"), nil))

	evs := r.events.Values()
	if len(evs) != 2 || evs[1].Type != LocalShareStopped {
		t.Fatalf("events = %v", types(evs))
	}
	if st := a.State(); st.Active() {
		t.Fatalf("state = %+v, want none", st)
	}
	m := r.membership.Values()
	if m[len(m)-1] != (MembershipEvent{EndedSharingID: "me"}) {
		t.Fatalf("membership = %+v", m)
	}
}

func TestNoEventsWithoutTransition(t *testing.T) {
	a, r := newArbiter("me")
	a.Update(floors(granted("A"), nil))
	a.Update(floors(granted("A"), nil))
	a.Update(floors(granted("A"), released("")))
	if n := len(r.events.Values()); n != 1 {
		t.Fatalf("events = %d, want 1", n)
	}
	if n := len(r.membership.Values()); n != 1 {
		t.Fatalf("membership = %d, want 1", n)
	}
}

func TestBeneficiaryChangeWithinContent(t *testing.T) {
	a, r := newArbiter("me")
	a.Update(floors(granted("A"), nil))
	a.Update(floors(granted("C"), nil))
	want := []EventType{ContentStarted, ContentStopped, ContentStarted}
	if got := types(r.events.Values()); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}
