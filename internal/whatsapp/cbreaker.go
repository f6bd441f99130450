package whatsapp

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker guards the Cloud API endpoint. After threshold consecutive
// failures it rejects sends for the cooldown period, then admits a single
// probe; the probe's outcome decides whether the breaker closes again.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	retryAt  time.Time
	probing  bool
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a send may proceed, reserving the probe slot when the
// breaker is cooling down. Every true result must be settled with Success or
// Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.probing || b.now().Before(b.retryAt) {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	case stateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.probing = false
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.retryAt = b.now().Add(b.cooldown)
		b.probing = false
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.retryAt = b.now().Add(b.cooldown)
	}
}
