package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/types"
)

// PresenceService flips users back to offline a fixed delay after login.
// Each user has at most one pending flip: a re-login replaces it and an
// explicit logout cancels it, so a stale timer never clobbers a newer
// session.
type PresenceService struct {
	users  *UserService
	delay  time.Duration
	logger *logrus.Logger

	mu     sync.Mutex
	timers map[int]*time.Timer
	closed bool
}

func NewPresenceService(users *UserService, delay time.Duration, logger *logrus.Logger) *PresenceService {
	return &PresenceService{
		users:  users,
		delay:  delay,
		logger: logger,
		timers: make(map[int]*time.Timer),
	}
}

// ScheduleOffline arms (or re-arms) the offline flip for the user.
func (p *PresenceService) ScheduleOffline(userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	if timer, ok := p.timers[userID]; ok {
		timer.Stop()
	}
	p.timers[userID] = time.AfterFunc(p.delay, func() {
		p.fire(userID)
	})
}

// CancelOffline disarms a pending flip, typically on explicit logout.
func (p *PresenceService) CancelOffline(userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if timer, ok := p.timers[userID]; ok {
		timer.Stop()
		delete(p.timers, userID)
	}
}

// Close disarms every pending flip.
func (p *PresenceService) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
}

func (p *PresenceService) fire(userID int) {
	p.mu.Lock()
	delete(p.timers, userID)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.users.SetState(ctx, userID, types.StateOffline, time.Now()); err != nil {
		p.logger.WithError(err).WithField("user_id", userID).Warn("presence: offline flip failed")
		return
	}
	p.logger.WithField("user_id", userID).Debug("presence: user flipped offline")
}
