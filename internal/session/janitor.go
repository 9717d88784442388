package session

import (
	"context"
	"log"
	"time"
)

// Janitor periodically sweeps sessions whose timers ran out while no
// request touched them.  Each expired lock triggers exactly one
// best-effort release through the stage-correct endpoint; the session
// is dropped either way.  Sweeping on read (Service.expireIfNeeded)
// handles the common case, the janitor covers abandoned tabs.
type Janitor struct {
	svc      *Service
	interval time.Duration
}

// NewJanitor returns a janitor sweeping at the given interval.  A
// non-positive interval defaults to 5 seconds.
func NewJanitor(svc *Service, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Janitor{svc: svc, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
// Intended to run in its own goroutine from main.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	ids, err := j.svc.store.IDs(ctx)
	if err != nil {
		log.Printf("janitor: listing sessions failed: %v", err)
		return
	}
	for _, id := range ids {
		sess, err := j.svc.store.Get(ctx, id)
		if err != nil {
			continue // expired between scan and read
		}
		if j.svc.expireIfNeeded(ctx, sess) {
			log.Printf("janitor: expired session %s in state %s", sess.ID, sess.State)
		}
	}
}
