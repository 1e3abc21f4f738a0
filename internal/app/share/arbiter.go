// Package share derives who presents what from the locus floor state.
package share

import (
	"sync"

	"github.com/dkeye/huddle/internal/app/locus"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/event"
	"github.com/rs/zerolog"
)

type EventType int

const (
	ContentStarted EventType = iota
	ContentStopped
	LocalShareStopped
	WhiteboardStarted
	WhiteboardStopped
)

func (t EventType) String() string {
	switch t {
	case ContentStarted:
		return "content_started"
	case ContentStopped:
		return "content_stopped"
	case LocalShareStopped:
		return "local_share_stopped"
	case WhiteboardStarted:
		return "whiteboard_started"
	case WhiteboardStopped:
		return "whiteboard_stopped"
	default:
		return "unknown"
	}
}

// Event is a share start or stop.
type Event struct {
	Type          EventType
	BeneficiaryID string
	ResourceURL   string
}

// MembershipEvent is emitted once per share transition. Either id may be
// empty.
type MembershipEvent struct {
	ActiveSharingID string
	EndedSharingID  string
}

// Arbiter keeps the current and previous ShareState. It is updated only from
// locus changes.
type Arbiter struct {
	mu       sync.Mutex
	selfID   func() string
	current  domain.ShareState
	previous domain.ShareState
	logger   zerolog.Logger

	events     event.Feed[Event]
	membership event.Feed[MembershipEvent]
}

// New builds an arbiter. selfID reports the local participant id at the
// time a transition is evaluated.
func New(selfID func() string, logger zerolog.Logger) *Arbiter {
	return &Arbiter{
		selfID: selfID,
		logger: logger.With().Str("module", "share").Logger(),
	}
}

// Attach subscribes the arbiter to an engine's change feed.
func (a *Arbiter) Attach(e *locus.Engine) (detach func()) {
	return e.Changes().Subscribe(func(c locus.Change) {
		a.Update(c.Current)
	})
}

func (a *Arbiter) Events() *event.Feed[Event]               { return &a.events }
func (a *Arbiter) Membership() *event.Feed[MembershipEvent] { return &a.membership }

func (a *Arbiter) State() domain.ShareState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *Arbiter) Previous() domain.ShareState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.previous
}

// resolve reduces the two floors to one ShareState. Content wins when both
// claim to be granted: a content grant releases an active whiteboard.
func resolve(l *domain.Locus) domain.ShareState {
	content := l.Share(domain.ShareContent)
	board := l.Share(domain.ShareWhiteboard)
	switch {
	case content.Granted():
		return domain.ShareState{Kind: domain.ShareKindContent, BeneficiaryID: content.BeneficiaryID(), ResourceURL: content.ResourceURL}
	case board.Granted():
		return domain.ShareState{Kind: domain.ShareKindWhiteboard, BeneficiaryID: board.BeneficiaryID(), ResourceURL: board.ResourceURL}
	default:
		return domain.ShareState{}
	}
}

// Update evaluates one locus step against the retained state.
func (a *Arbiter) Update(cur *domain.Locus) {
	if cur == nil {
		return
	}
	next := resolve(cur)

	a.mu.Lock()
	old := a.current
	if old == next {
		a.mu.Unlock()
		return
	}
	a.previous = old
	a.current = next
	a.mu.Unlock()

	self := a.selfID()
	var emitted []Event
	var ended string

	if old.Active() {
		ended = old.BeneficiaryID
		switch old.Kind {
		case domain.ShareKindContent:
			typ := ContentStopped
			if old.BeneficiaryID != "" && old.BeneficiaryID == self {
				typ = LocalShareStopped
			}
			emitted = append(emitted, Event{Type: typ, BeneficiaryID: old.BeneficiaryID, ResourceURL: old.ResourceURL})
		case domain.ShareKindWhiteboard:
			emitted = append(emitted, Event{Type: WhiteboardStopped, BeneficiaryID: old.BeneficiaryID, ResourceURL: old.ResourceURL})
		}
	}
	switch next.Kind {
	case domain.ShareKindContent:
		emitted = append(emitted, Event{Type: ContentStarted, BeneficiaryID: next.BeneficiaryID, ResourceURL: next.ResourceURL})
	case domain.ShareKindWhiteboard:
		emitted = append(emitted, Event{Type: WhiteboardStarted, BeneficiaryID: next.BeneficiaryID, ResourceURL: next.ResourceURL})
	}

	a.logger.Info().
		Str("from", old.Kind.String()).
		Str("to", next.Kind.String()).
		Str("beneficiary", next.BeneficiaryID).
		Msg("share transition")

	for _, ev := range emitted {
		a.events.Emit(ev)
	}
	a.membership.Emit(MembershipEvent{ActiveSharingID: next.BeneficiaryID, EndedSharingID: ended})
}
