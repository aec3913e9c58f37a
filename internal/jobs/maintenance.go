package jobs

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

type AdminBootstrapper interface {
	EnsureFirstAdmin(ctx context.Context) error
}

// Maintenance runs the expired-session sweep and the first-admin
// bootstrap. It is kicked opportunistically from request handling rather
// than from a scheduler; a kick is fire-and-forget and failures never
// reach any request.
type Maintenance struct {
	sweeper     SessionSweeper
	bootstrap   AdminBootstrapper
	minInterval time.Duration
	timeout     time.Duration
	lastRun     atomic.Int64
}

func NewMaintenance(sweeper SessionSweeper, bootstrap AdminBootstrapper, minInterval time.Duration) *Maintenance {
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	return &Maintenance{
		sweeper:     sweeper,
		bootstrap:   bootstrap,
		minInterval: minInterval,
		timeout:     10 * time.Second,
	}
}

// Kick schedules a maintenance pass unless one ran within minInterval.
func (m *Maintenance) Kick() {
	if !m.tryAcquire(time.Now()) {
		return
	}
	go m.run()
}

func (m *Maintenance) tryAcquire(now time.Time) bool {
	last := m.lastRun.Load()
	if now.UnixNano()-last < int64(m.minInterval) {
		return false
	}
	return m.lastRun.CompareAndSwap(last, now.UnixNano())
}

func (m *Maintenance) run() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if swept, err := m.sweeper.SweepExpiredSessions(ctx); err != nil {
		log.Printf("session sweep error: %v", err)
	} else if swept > 0 {
		log.Printf("session sweep removed %d expired sessions", swept)
	}

	if err := m.bootstrap.EnsureFirstAdmin(ctx); err != nil {
		log.Printf("first admin bootstrap error: %v", err)
	}
}
