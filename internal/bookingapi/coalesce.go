package bookingapi

// coalesce.go implements request coalescing for the external API.
// Identical in-flight requests (same method, URL and body) share one
// round trip, and the completed result stays shareable for a short
// grace window so bursts arriving just after completion still reuse it.

import (
	"sync"
	"time"
)

// grace windows after a call completes before its entry is evicted.
const (
	DefaultGrace = 500 * time.Millisecond
	TokenGrace   = 2 * time.Second
)

type call struct {
	done chan struct{}
	body []byte
	err  error
}

// Coalescer deduplicates concurrent identical requests.  It is owned by
// a single Client instance rather than living at package level, so two
// clients with different base URLs never share results.
type Coalescer struct {
	mu    sync.Mutex
	calls map[string]*call
}

// NewCoalescer returns an empty coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{calls: make(map[string]*call)}
}

// Do runs fn once per key.  Callers arriving while a call for the same
// key is in flight, or within the grace window after it completed,
// receive the shared result.  The returned byte slice must be treated
// as read-only.
func (co *Coalescer) Do(key string, grace time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	co.mu.Lock()
	if c, ok := co.calls[key]; ok {
		co.mu.Unlock()
		<-c.done
		return c.body, c.err
	}
	c := &call{done: make(chan struct{})}
	co.calls[key] = c
	co.mu.Unlock()

	c.body, c.err = fn()
	close(c.done)

	// Evict after the grace window.  The identity check guards against
	// removing a newer entry that replaced this one in the meantime.
	time.AfterFunc(grace, func() {
		co.mu.Lock()
		if co.calls[key] == c {
			delete(co.calls, key)
		}
		co.mu.Unlock()
	})
	return c.body, c.err
}

// Forget drops the entry for key immediately.  Used after a 401 so the
// retry with a fresh token is not served the cached failure.
func (co *Coalescer) Forget(key string) {
	co.mu.Lock()
	delete(co.calls, key)
	co.mu.Unlock()
}
