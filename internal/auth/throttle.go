package auth

import (
	"sync"
	"time"
)

// Throttle locks a client out after too many failed logins within a window.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Throttle struct {
	max     int
	window  time.Duration
	lockout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*failures
}

type failures struct {
	count       int
	first       time.Time
	lockedUntil time.Time
}

// NewThrottle allows max failures per window, then refuses the client for
// lockout.
func NewThrottle(maxFailures int, window, lockout time.Duration) *Throttle {
	return &Throttle{
		max:     maxFailures,
		window:  window,
		lockout: lockout,
		now:     time.Now,
		clients: make(map[string]*failures),
	}
}

// Allow reports whether client may attempt a login now.
func (t *Throttle) Allow(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.clients[client]
	if !ok {
		return true
	}
	return !t.now().Before(f.lockedUntil)
}

// Fail records a failed login and reports whether the client is now
// locked out.
func (t *Throttle) Fail(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	f, ok := t.clients[client]
	if !ok || now.Sub(f.first) > t.window {
		f = &failures{first: now}
		t.clients[client] = f
	}
	f.count++
	if f.count >= t.max {
		f.lockedUntil = now.Add(t.lockout)
		f.count = 0
		f.first = now
		return true
	}
	return false
}

// Succeed clears the client's failure record.
func (t *Throttle) Succeed(client string) {
	t.mu.Lock()
	delete(t.clients, client)
	t.mu.Unlock()
}

// Prune drops records that are neither locked nor inside the window.
func (t *Throttle) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for c, f := range t.clients {
		if now.After(f.lockedUntil) && now.Sub(f.first) > t.window {
			delete(t.clients, c)
		}
	}
}
