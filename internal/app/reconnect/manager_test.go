package reconnect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/clock"
	"github.com/dkeye/huddle/internal/core/mocks"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/dkeye/huddle/internal/event"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

type scriptedMedia struct {
	mu      sync.Mutex
	results []error
	updates []domain.MediaUpdate
	block   chan struct{}
}

func (s *scriptedMedia) Renegotiate(_ context.Context, upd domain.MediaUpdate) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, upd)
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func TestReconnectSuccessResetsState(t *testing.T) {
	media := &scriptedMedia{results: []error{errors.New("ice"), nil}}
	m := New(media, Options{Retries: 2, Logger: zerolog.Nop()})
	var ok event.Recorder[SuccessEvent]
	m.Success().Subscribe(ok.Record)

	if !m.Trigger(Request{Reason: ReasonMediaFailure}) {
		t.Fatal("trigger refused")
	}
	m.Wait()

	got := ok.Values()
	if len(got) != 1 || got[0].Attempts != 2 {
		t.Fatalf("success events = %+v", got)
	}
	if m.Status() != StatusIdle || m.Attempts() != 0 {
		t.Fatalf("status = %s attempts = %d", m.Status(), m.Attempts())
	}
	if !media.updates[0].RestartICE {
		t.Fatal("default recovery should restart ICE")
	}
}

func TestReconnectFailureUploadsLogsAndResets(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockLogUploader(ctrl)
	up.EXPECT().UploadLogs(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, meta map[string]string) error {
			if meta["correlation_id"] != "corr-1" || meta["reason"] != string(ReasonMediaFailure) {
				t.Errorf("meta = %v", meta)
			}
			return nil
		}).Times(1)

	cause := errors.New("still broken")
	media := &scriptedMedia{results: []error{cause, cause, cause}}
	m := New(media, Options{
		Retries:  2,
		Uploader: up,
		Meta:     func() map[string]string { return map[string]string{"correlation_id": "corr-1"} },
		Logger:   zerolog.Nop(),
	})
	var failed event.Recorder[FailureEvent]
	m.Failure().Subscribe(failed.Record)

	m.Trigger(Request{Reason: ReasonMediaFailure})
	m.Wait()

	got := failed.Values()
	if len(got) != 1 || !errors.Is(got[0].Err, cause) || got[0].Attempts != 3 {
		t.Fatalf("failure events = %+v", got)
	}
	if m.Status() != StatusIdle {
		t.Fatal("manager stuck after failure")
	}
	if !m.Trigger(Request{Reason: ReasonMediaFailure}) {
		t.Fatal("a failed reconnection must not block the next one")
	}
	m.Wait()
}

func TestTriggerWhileRunningIsRefused(t *testing.T) {
	media := &scriptedMedia{block: make(chan struct{})}
	m := New(media, Options{Logger: zerolog.Nop()})
	if !m.Trigger(Request{Reason: ReasonMediaFailure}) {
		t.Fatal("first trigger refused")
	}
	if m.Trigger(Request{Reason: ReasonMediaFailure}) {
		t.Fatal("second trigger accepted while reconnecting")
	}
	close(media.block)
	m.Wait()
}

func TestRejoinBeforeRenegotiate(t *testing.T) {
	var order []string
	media := &scriptedMedia{}
	m := New(media, Options{
		Retries: 1,
		Rejoin: func(context.Context) error {
			order = append(order, "rejoin")
			return nil
		},
		Logger: zerolog.Nop(),
	})
	upd := domain.MediaUpdate{Audio: domain.Dir(domain.DirInactive)}
	m.Trigger(Request{Reason: ReasonInactivity, Rejoin: true, Update: &upd})
	m.Wait()

	if len(order) != 1 {
		t.Fatalf("rejoin calls = %v", order)
	}
	if len(media.updates) != 1 || media.updates[0].Audio == nil {
		t.Fatalf("updates = %+v", media.updates)
	}
}

func TestUserNotJoinedStopsRetrying(t *testing.T) {
	media := &scriptedMedia{results: []error{errs.ErrUserNotJoined, nil}}
	m := New(media, Options{Retries: 5, Logger: zerolog.Nop()})
	var failed event.Recorder[FailureEvent]
	m.Failure().Subscribe(failed.Record)
	m.Trigger(Request{Reason: ReasonMediaFailure})
	m.Wait()
	if len(media.updates) != 1 || len(failed.Values()) != 1 {
		t.Fatalf("updates = %d failures = %d", len(media.updates), len(failed.Values()))
	}
}

func (s *scriptedMedia) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func TestBackoffRunsOnInjectedClock(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC))
	media := &scriptedMedia{results: []error{errors.New("ice"), nil}}
	m := New(media, Options{Retries: 2, Backoff: 5 * time.Second, Clock: fc, Logger: zerolog.Nop()})

	m.Trigger(Request{Reason: ReasonMediaFailure})
	fc.WaitForTimers(1)
	if n := media.calls(); n != 1 {
		t.Fatalf("attempts before backoff = %d", n)
	}
	fc.Advance(4 * time.Second)
	if n := media.calls(); n != 1 {
		t.Fatalf("retried %d times before the backoff elapsed", n-1)
	}
	fc.Advance(time.Second)
	m.Wait()
	if n := media.calls(); n != 2 {
		t.Fatalf("attempts = %d, want 2", n)
	}
}
