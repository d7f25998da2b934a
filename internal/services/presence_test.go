package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/types"
)

// stateRecorder records UpdateState calls and signals each one.
type stateRecorder struct {
	UserRepository

	mu    sync.Mutex
	calls []stateCall
	fired chan stateCall
}

type stateCall struct {
	userID int
	state  string
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{fired: make(chan stateCall, 8)}
}

func (r *stateRecorder) UpdateState(_ context.Context, id int, state string, _ time.Time) error {
	call := stateCall{userID: id, state: state}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	r.fired <- call
	return nil
}

func (r *stateRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPresenceScheduledFlipFires(t *testing.T) {
	repo := newStateRecorder()
	presence := NewPresenceService(NewUserService(repo), 10*time.Millisecond, quietLogger())
	defer presence.Close()

	presence.ScheduleOffline(1)

	select {
	case call := <-repo.fired:
		if call.userID != 1 || call.state != types.StateOffline {
			t.Errorf("flip = %+v, want user 1 offline", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("offline flip never fired")
	}
}

func TestPresenceCancelDisarmsFlip(t *testing.T) {
	repo := newStateRecorder()
	presence := NewPresenceService(NewUserService(repo), 20*time.Millisecond, quietLogger())
	defer presence.Close()

	presence.ScheduleOffline(1)
	presence.CancelOffline(1)

	select {
	case call := <-repo.fired:
		t.Fatalf("flip fired after cancel: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPresenceRescheduleReplacesTimer(t *testing.T) {
	repo := newStateRecorder()
	presence := NewPresenceService(NewUserService(repo), 30*time.Millisecond, quietLogger())
	defer presence.Close()

	presence.ScheduleOffline(1)
	time.Sleep(10 * time.Millisecond)
	presence.ScheduleOffline(1)

	select {
	case <-repo.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("offline flip never fired")
	}

	// Only the replacement timer should have fired.
	time.Sleep(50 * time.Millisecond)
	if n := repo.callCount(); n != 1 {
		t.Errorf("flip fired %d times, want 1", n)
	}
}

func TestPresenceCloseDisarmsAll(t *testing.T) {
	repo := newStateRecorder()
	presence := NewPresenceService(NewUserService(repo), 20*time.Millisecond, quietLogger())

	presence.ScheduleOffline(1)
	presence.ScheduleOffline(2)
	presence.Close()

	// Scheduling after close is a no-op.
	presence.ScheduleOffline(3)

	select {
	case call := <-repo.fired:
		t.Fatalf("flip fired after close: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}
