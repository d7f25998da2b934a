// Package session tracks issued logins per client (browser/device instance)
// and coordinates them across nodes over the auth event channel. It enforces
// the two rules the original client kept in browser storage: one active user
// per client, and a hard inactivity budget independent of token expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/mq"
	"github.com/taskhive/apiserver/types"
)

const defaultSweepInterval = time.Minute

// Registry is the server-side session store. Construct with NewRegistry,
// call Start once, and Close on shutdown.
type Registry struct {
	bus    *mq.Bus
	ttl    time.Duration
	sweep  time.Duration
	now    func() time.Time
	logger *logrus.Logger

	// onExpire runs for every session removed by the sweeper.
	onExpire func(types.Session)

	mu       sync.Mutex
	sessions map[string]types.Session

	cancel context.CancelFunc
	done   sync.WaitGroup
}

// Option adjusts registry construction.
type Option func(*Registry)

// WithClock overrides the time source. Tests use this to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSweepInterval overrides how often expired sessions are collected.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweep = d }
}

// WithExpireHook registers a callback invoked for each expired session.
func WithExpireHook(hook func(types.Session)) Option {
	return func(r *Registry) { r.onExpire = hook }
}

func NewRegistry(bus *mq.Bus, ttl time.Duration, logger *logrus.Logger, opts ...Option) *Registry {
	r := &Registry{
		bus:      bus,
		ttl:      ttl,
		sweep:    defaultSweepInterval,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]types.Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the event subscriber and the expiry sweeper.
func (r *Registry) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.done.Add(2)
	go func() {
		defer r.done.Done()
		if err := r.bus.SubscribeSessionEvents(ctx, r.handleEvent); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Error("session: event subscription ended")
		}
	}()
	go func() {
		defer r.done.Done()
		r.runSweeper(ctx)
	}()
}

// Close stops the subscriber and sweeper and drops all sessions.
func (r *Registry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.done.Wait()

	r.mu.Lock()
	r.sessions = make(map[string]types.Session)
	r.mu.Unlock()
}

// Login records a session for the client. If a different user was already
// active on the same client, that session is cleared first and a
// force-logout event is broadcast; the returned session is the evicted one.
func (r *Registry) Login(ctx context.Context, clientID string, user types.User, token string) (evicted *types.Session, err error) {
	now := r.now()

	r.mu.Lock()
	if prev, ok := r.sessions[clientID]; ok && prev.User.Email != user.Email {
		delete(r.sessions, clientID)
		evicted = &prev
	}
	r.sessions[clientID] = types.Session{
		ClientID:  clientID,
		User:      user,
		Token:     token,
		LoginTime: now,
	}
	r.mu.Unlock()

	if evicted != nil {
		if err := r.publish(ctx, types.EventForceLogout, clientID, evicted.User.Email); err != nil {
			return evicted, err
		}
	}
	return evicted, r.publish(ctx, types.EventLogin, clientID, user.Email)
}

// Logout clears the client's session and broadcasts a logout event.
func (r *Registry) Logout(ctx context.Context, clientID string) error {
	r.mu.Lock()
	delete(r.sessions, clientID)
	r.mu.Unlock()

	return r.publish(ctx, types.EventLogout, clientID, "")
}

// Get returns the client's session, if any.
func (r *Registry) Get(clientID string) (types.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) publish(ctx context.Context, eventType, clientID, email string) error {
	return r.bus.PublishSessionEvent(ctx, types.SessionEvent{
		Type:     eventType,
		ClientID: clientID,
		Email:    email,
		Time:     r.now(),
	})
}

// handleEvent applies events from other nodes (and echoes of our own, which
// are idempotent): logouts clear the client's session, and a login by a
// different email evicts whoever was active on that client here.
func (r *Registry) handleEvent(_ context.Context, event types.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case types.EventLogout, types.EventForceLogout:
		delete(r.sessions, event.ClientID)
	case types.EventLogin:
		if current, ok := r.sessions[event.ClientID]; ok && current.User.Email != event.Email {
			delete(r.sessions, event.ClientID)
		}
	}
	return nil
}

func (r *Registry) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepExpired(ctx)
		}
	}
}

// SweepExpired removes every session past the inactivity budget, broadcasts
// a force-logout for each, and runs the expiry hook. It returns the number
// of sessions removed.
func (r *Registry) SweepExpired(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	expired := []types.Session{}
	for clientID, s := range r.sessions {
		if now.Sub(s.LoginTime) > r.ttl {
			delete(r.sessions, clientID)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if err := r.publish(ctx, types.EventForceLogout, s.ClientID, s.User.Email); err != nil {
			r.logger.WithError(err).Warn("session: failed to broadcast expiry")
		}
		if r.onExpire != nil {
			r.onExpire(s)
		}
		r.logger.WithFields(logrus.Fields{
			"client_id": s.ClientID,
			"email":     s.User.Email,
		}).Info("session: expired")
	}
	return len(expired)
}
