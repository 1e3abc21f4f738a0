package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/mocks"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/errs"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

type fakeSession struct {
	mu    sync.Mutex
	seq   uint64
	state domain.SessionState
}

func (s *fakeSession) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) NextRoapSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *fakeSession) setSelf(st domain.SelfState) {
	s.mu.Lock()
	s.state.SelfState = st
	s.mu.Unlock()
}

func answer(seq uint64) *domain.RoapMessage {
	return &domain.RoapMessage{MessageType: domain.RoapAnswer, Seq: seq, SDPs: []string{"v=0 answer"}}
}

func connectedEngine(t *testing.T) *mocks.MockMediaEngine {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	eng.EXPECT().CreateOffer(gomock.Any(), gomock.Any()).Return("v=0 offer", nil).AnyTimes()
	eng.EXPECT().ApplyAnswer(gomock.Any(), "v=0 answer").Return(nil).AnyTimes()
	eng.EXPECT().ConnectionState().Return(core.MediaConnected).AnyTimes()
	return eng
}

func TestEmptyUpdateRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	sender := SenderFunc(func(context.Context, domain.RoapMessage) (*domain.RoapMessage, error) {
		t.Fatal("empty update must not reach the transport")
		return nil, nil
	})
	n := NewNegotiator(eng, &fakeSession{}, sender, Options{Logger: zerolog.Nop()})

	err := n.Renegotiate(context.Background(), domain.MediaUpdate{})
	var pe *errs.ParameterError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParameterError", err)
	}
}

func TestRoapSeqNonDecreasingAcrossRetries(t *testing.T) {
	sess := &fakeSession{state: domain.SessionState{SelfState: domain.SelfJoined}}
	var seqs []uint64
	calls := 0
	sender := SenderFunc(func(_ context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error) {
		seqs = append(seqs, msg.Seq)
		calls++
		if calls <= 2 {
			return nil, &core.StatusError{StatusCode: 500}
		}
		return answer(msg.Seq), nil
	})
	n := NewNegotiator(connectedEngine(t), sess, sender, Options{Retries: 3, Logger: zerolog.Nop()})

	if err := n.Renegotiate(context.Background(), domain.MediaUpdate{Audio: domain.Dir(domain.DirSendRecv)}); err != nil {
		t.Fatal(err)
	}
	_ = n.Renegotiate(context.Background(), domain.MediaUpdate{Replace: true})

	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("seqs not increasing: %v", seqs)
		}
	}
	if len(seqs) != 4 {
		t.Fatalf("offers sent = %d, want 4", len(seqs))
	}
	if !n.Established() {
		t.Fatal("negotiator should be established")
	}
}

func TestFailureAfterSelfLeftIsUserNotJoined(t *testing.T) {
	sess := &fakeSession{state: domain.SessionState{SelfState: domain.SelfJoined}}
	sender := SenderFunc(func(context.Context, domain.RoapMessage) (*domain.RoapMessage, error) {
		sess.setSelf(domain.SelfLeft)
		return nil, &core.StatusError{StatusCode: 409}
	})
	n := NewNegotiator(connectedEngine(t), sess, sender, Options{Retries: 5, Logger: zerolog.Nop()})

	err := n.Renegotiate(context.Background(), domain.MediaUpdate{Replace: true})
	if !errors.Is(err, errs.ErrUserNotJoined) {
		t.Fatalf("err = %v, want ErrUserNotJoined", err)
	}
	if next := sess.NextRoapSeq(); next != 2 {
		t.Fatalf("next seq = %d, no retry expected after self left", next)
	}
}

func TestFailureWhileDisconnectedIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)
	eng.EXPECT().CreateOffer(gomock.Any(), gomock.Any()).Return("v=0 offer", nil).Times(1)
	eng.EXPECT().ConnectionState().Return(core.MediaConnecting).AnyTimes()
	sender := SenderFunc(func(context.Context, domain.RoapMessage) (*domain.RoapMessage, error) {
		return nil, errors.New("boom")
	})
	n := NewNegotiator(eng, &fakeSession{}, sender, Options{Retries: 3, Logger: zerolog.Nop()})
	if err := n.Renegotiate(context.Background(), domain.MediaUpdate{Replace: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestQueuedRequestsCoalesce(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockMediaEngine(ctrl)

	var offersMu sync.Mutex
	var offers []domain.MediaUpdate
	eng.EXPECT().CreateOffer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, u domain.MediaUpdate) (string, error) {
			offersMu.Lock()
			offers = append(offers, u)
			offersMu.Unlock()
			return "v=0 offer", nil
		}).Times(2)
	eng.EXPECT().ApplyAnswer(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	eng.EXPECT().ConnectionState().Return(core.MediaConnected).AnyTimes()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32
	sender := SenderFunc(func(_ context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error) {
		cur := inFlight.Add(1)
		if cur > maxInFlight.Load() {
			maxInFlight.Store(cur)
		}
		defer inFlight.Add(-1)
		entered <- struct{}{}
		<-release
		return answer(msg.Seq), nil
	})
	n := NewNegotiator(eng, &fakeSession{}, sender, Options{Logger: zerolog.Nop()})
	ctx := context.Background()

	results := make(chan error, 3)
	go func() { results <- n.Renegotiate(ctx, domain.MediaUpdate{Audio: domain.Dir(domain.DirSendRecv)}) }()
	<-entered
	if !n.InFlight() {
		t.Fatal("a renegotiation is in flight")
	}

	go func() { results <- n.Renegotiate(ctx, domain.MediaUpdate{Video: domain.Dir(domain.DirSendRecv)}) }()
	waitFor(t, func() bool { return n.Queued() == 1 })
	go func() { results <- n.Renegotiate(ctx, domain.MediaUpdate{Video: domain.Dir(domain.DirInactive)}) }()
	waitFor(t, func() bool { return n.Queued() == 2 })

	close(release)
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			t.Fatalf("result %d: %v", i, err)
		}
	}
	waitFor(t, func() bool { return !n.InFlight() })

	if maxInFlight.Load() != 1 {
		t.Fatalf("max in flight = %d, want 1", maxInFlight.Load())
	}
	offersMu.Lock()
	defer offersMu.Unlock()
	if len(offers) != 2 {
		t.Fatalf("offers = %d, want 2", len(offers))
	}
	if offers[1].Video == nil || *offers[1].Video != domain.DirInactive {
		t.Fatalf("replayed update = %+v, want the latest queued one", offers[1])
	}
}

func TestStopFailsQueuedRequest(t *testing.T) {
	eng := connectedEngine(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	sender := SenderFunc(func(_ context.Context, msg domain.RoapMessage) (*domain.RoapMessage, error) {
		close(entered)
		<-release
		return answer(msg.Seq), nil
	})
	n := NewNegotiator(eng, &fakeSession{}, sender, Options{Logger: zerolog.Nop()})

	first := make(chan error, 1)
	go func() { first <- n.Renegotiate(context.Background(), domain.MediaUpdate{Replace: true}) }()
	<-entered

	queued := make(chan error, 1)
	go func() { queued <- n.Renegotiate(context.Background(), domain.MediaUpdate{Replace: true}) }()
	waitFor(t, func() bool { return n.Queued() == 1 })

	_ = n.Stop()
	if err := <-queued; !errors.Is(err, ErrStopped) {
		t.Fatalf("queued err = %v, want ErrStopped", err)
	}
	close(release)
	if err := <-first; err != nil {
		t.Fatalf("in-flight request should finish: %v", err)
	}
	if err := n.Renegotiate(context.Background(), domain.MediaUpdate{Replace: true}); !errors.Is(err, ErrStopped) {
		t.Fatalf("after stop err = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
