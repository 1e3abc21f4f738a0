package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

var ErrSessionNotFound = errors.New("session not found")

// Meeting is the part of a meeting session the registry and the control API
// need without depending on its implementation.
type Meeting interface {
	ID() string
	Snapshot() domain.SessionState
	HandleLocusEvent(ctx context.Context, ev domain.LocusEvent) error
	// Close leaves the meeting if joined and releases every resource.
	Close(ctx context.Context) error
}

type entry struct {
	Owner   string
	Meeting Meeting
}

// Registry keeps the meeting sessions owned by each API client.
type Registry struct {
	mu       sync.RWMutex
	meetings map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{meetings: make(map[string]*entry)}
}

func (r *Registry) Add(owner string, m Meeting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[m.ID()] = &entry{Owner: owner, Meeting: m}
	log.Info().Str("module", "app.registry").Str("owner", owner).Str("session_id", m.ID()).Msg("registered session")
}

// Get returns the meeting id owned by owner.
func (r *Registry) Get(owner, id string) (Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.meetings[id]
	if !ok || e.Owner != owner {
		return nil, ErrSessionNotFound
	}
	return e.Meeting, nil
}

func (r *Registry) List(owner string) []Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meeting, 0, len(r.meetings))
	for _, e := range r.meetings {
		if e.Owner == owner {
			out = append(out, e.Meeting)
		}
	}
	return out
}

// Remove closes and forgets the meeting.
func (r *Registry) Remove(ctx context.Context, owner, id string) error {
	r.mu.Lock()
	e, ok := r.meetings[id]
	if !ok || e.Owner != owner {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.meetings, id)
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("owner", owner).Str("session_id", id).Msg("removed session")
	return e.Meeting.Close(ctx)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.meetings)
}

// Dispatch hands a pushed locus event to every session on that locus. It
// returns the number of sessions that took it.
func (r *Registry) Dispatch(ctx context.Context, ev domain.LocusEvent) int {
	r.mu.RLock()
	targets := make([]Meeting, 0, 1)
	for _, e := range r.meetings {
		if url := e.Meeting.Snapshot().LocusURL; url != "" && url == ev.LocusURL {
			targets = append(targets, e.Meeting)
		}
	}
	r.mu.RUnlock()

	for _, m := range targets {
		if err := m.HandleLocusEvent(ctx, ev); err != nil {
			log.Warn().Str("module", "app.registry").Str("session_id", m.ID()).Err(err).Msg("locus event rejected")
		}
	}
	return len(targets)
}

// Shutdown closes every meeting concurrently and empties the registry. All
// sessions are attempted; the errors are joined.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]Meeting, 0, len(r.meetings))
	for _, e := range r.meetings {
		all = append(all, e.Meeting)
	}
	r.meetings = make(map[string]*entry)
	r.mu.Unlock()

	p := pool.New().WithMaxGoroutines(8).WithErrors().WithContext(ctx)
	for _, m := range all {
		m := m
		p.Go(func(ctx context.Context) error {
			if err := m.Close(ctx); err != nil {
				log.Warn().Str("module", "app.registry").Str("session_id", m.ID()).Err(err).Msg("close on shutdown failed")
				return err
			}
			return nil
		})
	}
	err := p.Wait()
	log.Info().Str("module", "app.registry").Int("sessions", len(all)).Msg("registry shut down")
	return err
}
