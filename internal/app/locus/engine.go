// Package locus keeps the local session snapshot in step with the server's
// locus. The engine is the only writer of domain.SessionState.
package locus

import (
	"errors"
	"sync"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/dkeye/huddle/internal/event"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrResyncRequired means a delta did not follow the current sequence and a
// full snapshot must be fetched.
var ErrResyncRequired = errors.New("locus: sequence gap, full resync required")

// Change is emitted after every applied snapshot or delta.
type Change struct {
	Previous *domain.Locus
	Current  *domain.Locus
	State    domain.SessionState
	Full     bool
}

// ControlEvent is emitted when a control value or its modifier changes.
type ControlEvent struct {
	Name    string
	Control domain.Control
}

// SelfLeftEvent is emitted when the server marks a joined self as LEFT.
type SelfLeftEvent struct {
	Reason string
	State  domain.SessionState
}

type Options struct {
	DeviceURL   string
	Destination string
	Logger      zerolog.Logger
	// NewID generates session and correlation ids. Defaults to uuid.NewString.
	NewID func() string
}

type Engine struct {
	mu        sync.Mutex
	state     domain.SessionState
	locus     *domain.Locus
	deviceURL string
	newID     func() string
	logger    zerolog.Logger

	changes  event.Feed[Change]
	controls event.Feed[ControlEvent]
	selfLeft event.Feed[SelfLeftEvent]
	inactive event.Feed[domain.SessionState]
}

func New(opts Options) *Engine {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	e := &Engine{
		deviceURL: opts.DeviceURL,
		newID:     newID,
	}
	e.state = domain.SessionState{
		ID:            newID(),
		CorrelationID: newID(),
		Destination:   opts.Destination,
		FSM:           domain.StateIdle,
		SelfState:     domain.SelfIdle,
	}
	e.logger = opts.Logger.With().Str("module", "locus").Str("session_id", e.state.ID).Logger()
	return e
}

func (e *Engine) Changes() *event.Feed[Change]               { return &e.changes }
func (e *Engine) Controls() *event.Feed[ControlEvent]        { return &e.controls }
func (e *Engine) SelfLeft() *event.Feed[SelfLeftEvent]       { return &e.selfLeft }
func (e *Engine) Inactive() *event.Feed[domain.SessionState] { return &e.inactive }

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Locus returns a copy of the current merged locus, nil before the first
// snapshot.
func (e *Engine) Locus() *domain.Locus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locus.Clone()
}

func (e *Engine) Capabilities() Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return newCapabilities(e.state.DisplayHints)
}

// pendingEmit collects notifications raised under the lock; they are sent
// after it is released so subscribers can call back into the engine.
type pendingEmit struct {
	change   *Change
	controls []ControlEvent
	selfLeft *SelfLeftEvent
	inactive *domain.SessionState
}

func (e *Engine) flush(p pendingEmit) {
	for _, c := range p.controls {
		e.controls.Emit(c)
	}
	if p.change != nil {
		e.changes.Emit(*p.change)
	}
	if p.inactive != nil {
		e.inactive.Emit(*p.inactive)
	}
	if p.selfLeft != nil {
		e.selfLeft.Emit(*p.selfLeft)
	}
}

// ApplyFull replaces the local locus with an authoritative snapshot. A
// snapshot for the same locus that is not newer than the current one is
// ignored.
func (e *Engine) ApplyFull(l *domain.Locus) error {
	if l == nil {
		return &errs.ParameterError{Msg: "locus snapshot is nil"}
	}
	e.mu.Lock()
	if e.locus != nil && e.locus.URL == l.URL && !l.Sequence.Empty() &&
		l.Sequence.Last() < e.locus.Sequence.Last() {
		e.mu.Unlock()
		e.logger.Debug().Uint64("seq", l.Sequence.Last()).Msg("stale full snapshot ignored")
		return nil
	}
	prev := e.locus
	e.locus = l.Clone()
	p := e.deriveLocked(prev, true)
	e.mu.Unlock()

	e.flush(p)
	return nil
}

// ApplyDelta merges an incremental update. It returns ErrResyncRequired when
// the delta's base sequence does not match the local one.
func (e *Engine) ApplyDelta(d *domain.Locus) error {
	if d == nil {
		return &errs.ParameterError{Msg: "locus delta is nil"}
	}
	if d.BaseSequence == nil {
		return e.ApplyFull(d)
	}
	e.mu.Lock()
	if e.locus == nil {
		e.mu.Unlock()
		return ErrResyncRequired
	}
	cur := e.locus.Sequence.Last()
	if d.Sequence.Last() <= cur {
		e.mu.Unlock()
		e.logger.Debug().Uint64("seq", d.Sequence.Last()).Uint64("current", cur).Msg("stale delta ignored")
		return nil
	}
	if base := d.BaseSequence.Last(); base != cur {
		e.mu.Unlock()
		e.logger.Warn().Uint64("base", base).Uint64("current", cur).Msg("sequence gap")
		return ErrResyncRequired
	}
	prev := e.locus
	e.locus = merge(prev, d)
	p := e.deriveLocked(prev, false)
	e.mu.Unlock()

	e.flush(p)
	return nil
}

// merge returns base with every non-empty section of d applied.
func merge(base, d *domain.Locus) *domain.Locus {
	out := base.Clone()
	if d.URL != "" {
		out.URL = d.URL
	}
	if d.FullState != nil {
		out.FullState = d.FullState
	}
	if d.Host != nil {
		out.Host = d.Host
	}
	if d.Self != nil {
		out.Self = d.Self
	}
	if d.Info != nil {
		out.Info = d.Info
	}
	if d.Controls != nil {
		if out.Controls == nil {
			out.Controls = &domain.LocusControls{}
		}
		if d.Controls.Lock != nil {
			out.Controls.Lock = d.Controls.Lock
		}
		if d.Controls.Record != nil {
			out.Controls.Record = d.Controls.Record
		}
		if d.Controls.Transcribe != nil {
			out.Controls.Transcribe = d.Controls.Transcribe
		}
	}
	for _, ms := range d.MediaShares {
		if cur := out.Share(ms.Name); cur != nil {
			*cur = ms
		} else {
			out.MediaShares = append(out.MediaShares, ms)
		}
	}
	for _, p := range d.Participants {
		found := false
		for i := range out.Participants {
			if out.Participants[i].ID == p.ID {
				out.Participants[i] = p
				found = true
				break
			}
		}
		if !found {
			out.Participants = append(out.Participants, p)
		}
	}
	out.Sequence = d.Sequence
	out.BaseSequence = nil
	return out.Clone()
}

func (e *Engine) deriveLocked(prev *domain.Locus, full bool) pendingEmit {
	cur := e.locus
	s := &e.state
	var p pendingEmit

	prevSelf := s.SelfState
	prevFull := ""
	if prev != nil && prev.FullState != nil {
		prevFull = prev.FullState.State
	}

	if cur.URL != "" {
		s.LocusURL = cur.URL
		s.LocusID = domain.LocusIDFromURL(cur.URL)
	}
	if cur.Self != nil {
		s.SelfID = cur.Self.ID
		if cur.Self.State != "" {
			s.SelfState = cur.Self.State
		}
		s.SelfReason = cur.Self.Reason
		s.InLobby = cur.Self.InLobby
		if dev, ok := cur.Self.Device(e.deviceURL); ok && dev.KeepAliveURL != "" {
			s.KeepAliveURL = dev.KeepAliveURL
			s.KeepAliveSecs = dev.KeepAliveSecs
		}
	}
	if cur.Host != nil {
		s.HostID = cur.Host.ID
	}
	if cur.Info != nil {
		s.Moderator = cur.Info.Moderator
		s.DisplayHints = append([]string(nil), cur.Info.DisplayHints...)
	}
	if cur.Controls != nil {
		p.controls = e.updateControlsLocked(cur.Controls)
	}
	s.Sequence = domain.Sequence{
		Entries:    append([]uint64(nil), cur.Sequence.Entries...),
		RangeStart: cur.Sequence.RangeStart,
		RangeEnd:   cur.Sequence.RangeEnd,
	}

	snap := s.Clone()
	p.change = &Change{Previous: prev.Clone(), Current: cur.Clone(), State: snap, Full: full}

	if cur.FullState != nil && cur.FullState.State == domain.FullStateInactive && prevFull != domain.FullStateInactive {
		p.inactive = &snap
	}
	if prevSelf != domain.SelfLeft && s.SelfState == domain.SelfLeft && s.FSM == domain.StateJoined {
		p.selfLeft = &SelfLeftEvent{Reason: s.SelfReason, State: snap}
	}

	e.logger.Debug().
		Bool("full", full).
		Uint64("seq", cur.Sequence.Last()).
		Str("self_state", string(s.SelfState)).
		Msg("locus applied")
	return p
}

func (e *Engine) updateControlsLocked(c *domain.LocusControls) []ControlEvent {
	var out []ControlEvent
	set := func(name string, dst *domain.Control, v domain.Control) {
		if *dst == v {
			return
		}
		*dst = v
		out = append(out, ControlEvent{Name: name, Control: v})
	}
	ctl := &e.state.Controls
	if c.Lock != nil {
		set("lock", &ctl.Lock, domain.Control{Enabled: c.Lock.Locked, ModifiedBy: c.Lock.Meta.ModifiedBy})
	}
	if c.Record != nil {
		set("record", &ctl.Record, domain.Control{Enabled: c.Record.Recording, ModifiedBy: c.Record.Meta.ModifiedBy})
	}
	if c.Transcribe != nil {
		set("transcribe", &ctl.Transcribe, domain.Control{Enabled: c.Transcribe.Transcribing, ModifiedBy: c.Transcribe.Meta.ModifiedBy})
		set("caption", &ctl.Caption, domain.Control{Enabled: c.Transcribe.Caption, ModifiedBy: c.Transcribe.Meta.ModifiedBy})
	}
	return out
}
