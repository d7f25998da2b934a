package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/mq"
	"github.com/taskhive/apiserver/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	bus := mq.NewBus(mq.NewMemoryBackend())
	registry := NewRegistry(bus, time.Hour, quietLogger(), opts...)
	t.Cleanup(registry.Close)
	return registry
}

func TestLoginEvictsDifferentUserOnSameClient(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	first := types.User{ID: 1, Email: "first@example.com"}
	second := types.User{ID: 2, Email: "second@example.com"}

	evicted, err := registry.Login(ctx, "client-a", first, "token-1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if evicted != nil {
		t.Fatalf("first login evicted %+v", evicted)
	}

	evicted, err = registry.Login(ctx, "client-a", second, "token-2")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if evicted == nil || evicted.User.Email != first.Email {
		t.Fatalf("evicted = %+v, want first user", evicted)
	}

	active, ok := registry.Get("client-a")
	if !ok || active.User.Email != second.Email {
		t.Errorf("active session = %+v, want second user", active)
	}
	if registry.Active() != 1 {
		t.Errorf("active count = %d, want 1", registry.Active())
	}
}

func TestLoginSameUserRefreshesWithoutEviction(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	user := types.User{ID: 1, Email: "same@example.com"}

	if _, err := registry.Login(ctx, "client-a", user, "token-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	evicted, err := registry.Login(ctx, "client-a", user, "token-2")
	if err != nil {
		t.Fatalf("re-login: %v", err)
	}
	if evicted != nil {
		t.Errorf("re-login evicted %+v, want nil", evicted)
	}

	session, ok := registry.Get("client-a")
	if !ok || session.Token != "token-2" {
		t.Errorf("session = %+v, want refreshed token", session)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	if _, err := registry.Login(ctx, "client-a", types.User{ID: 1, Email: "a@example.com"}, "t"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := registry.Logout(ctx, "client-a"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := registry.Get("client-a"); ok {
		t.Error("session survived logout")
	}
	// Logging out an unknown client is harmless.
	if err := registry.Logout(ctx, "client-b"); err != nil {
		t.Errorf("logout unknown client: %v", err)
	}
}

func TestSweepExpiredRemovesStaleSessions(t *testing.T) {
	clock := newFakeClock()
	expiredCh := make(chan types.Session, 4)
	registry := newTestRegistry(t,
		WithClock(clock.Now),
		WithExpireHook(func(s types.Session) { expiredCh <- s }),
	)
	ctx := context.Background()

	if _, err := registry.Login(ctx, "client-a", types.User{ID: 1, Email: "old@example.com"}, "t1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(30 * time.Minute)
	if _, err := registry.Login(ctx, "client-b", types.User{ID: 2, Email: "fresh@example.com"}, "t2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// client-a is now 90 minutes old, client-b only 60.
	clock.Advance(time.Hour)
	if n := registry.SweepExpired(ctx); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}

	select {
	case expired := <-expiredCh:
		if expired.ClientID != "client-a" {
			t.Errorf("expired = %+v, want client-a", expired)
		}
	default:
		t.Error("expiry hook never ran")
	}

	if _, ok := registry.Get("client-a"); ok {
		t.Error("expired session still present")
	}
	if _, ok := registry.Get("client-b"); !ok {
		t.Error("fresh session was swept")
	}
}

func TestSweepExpiredKeepsSessionsWithinBudget(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(t, WithClock(clock.Now))
	ctx := context.Background()

	if _, err := registry.Login(ctx, "client-a", types.User{ID: 1, Email: "a@example.com"}, "t"); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(59 * time.Minute)
	if n := registry.SweepExpired(ctx); n != 0 {
		t.Errorf("swept %d sessions, want 0", n)
	}
	if registry.Active() != 1 {
		t.Errorf("active = %d, want 1", registry.Active())
	}
}

func TestLogoutPropagatesAcrossNodes(t *testing.T) {
	bus := mq.NewBus(mq.NewMemoryBackend())
	logger := quietLogger()

	local := NewRegistry(bus, time.Hour, logger, WithSweepInterval(time.Hour))
	remote := NewRegistry(bus, time.Hour, logger)
	t.Cleanup(local.Close)
	t.Cleanup(remote.Close)

	ctx := context.Background()
	local.Start(ctx)
	// The subscriber attaches asynchronously; give it a moment.
	time.Sleep(20 * time.Millisecond)

	if _, err := local.Login(ctx, "client-a", types.User{ID: 1, Email: "a@example.com"}, "t"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// The other node clears the client; the started registry should follow.
	if err := remote.Logout(ctx, "client-a"); err != nil {
		t.Fatalf("remote logout: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := local.Get("client-a"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("logout event never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHandleEventIsIdempotent(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	user := types.User{ID: 1, Email: "a@example.com"}
	if _, err := registry.Login(ctx, "client-a", user, "t"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// An echo of our own login leaves the session alone.
	echo := types.SessionEvent{Type: types.EventLogin, ClientID: "client-a", Email: user.Email}
	if err := registry.handleEvent(ctx, echo); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if _, ok := registry.Get("client-a"); !ok {
		t.Error("login echo cleared the session")
	}

	// A login by someone else on the same client evicts ours.
	other := types.SessionEvent{Type: types.EventLogin, ClientID: "client-a", Email: "b@example.com"}
	if err := registry.handleEvent(ctx, other); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if _, ok := registry.Get("client-a"); ok {
		t.Error("foreign login did not evict the session")
	}

	// Repeating a force-logout for a gone session is a no-op.
	gone := types.SessionEvent{Type: types.EventForceLogout, ClientID: "client-a"}
	if err := registry.handleEvent(ctx, gone); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
}
