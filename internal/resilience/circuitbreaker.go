// Package resilience guards the judgment transport against a degraded model
// backend.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open).
// [Provider] wraps an llm.Provider with one, so that when the backend fails
// repeatedly, judgment calls are rejected immediately instead of burning
// their timeout budget. A rejected call surfaces as a transport failure and
// the game degrades to deterministic verification for the round.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned instead of calling through while the breaker is open.
var ErrOpen = errors.New("resilience: circuit open")

// State is a breaker's operating mode.
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects every call with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen lets a bounded number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	HalfOpen
)

// String returns the state's log label.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	defaultTripAfter = 5
	defaultCooldown  = 30 * time.Second
	defaultProbes    = 3
)

// BreakerOption configures a [Breaker].
type BreakerOption func(*Breaker)

// WithTripAfter sets how many consecutive failures open the breaker.
// Default: 5.
func WithTripAfter(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.tripAfter = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before probing.
// Default: 30s.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithProbes sets the half-open probe budget. Default: 3.
func WithProbes(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.probes = n
		}
	}
}

// WithBreakerLogger sets the logger. Default: slog.Default().
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = l
	}
}

// Breaker is a three-state circuit breaker. Construct with [NewBreaker].
type Breaker struct {
	name      string
	tripAfter int
	cooldown  time.Duration
	probes    int
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	failStreak  int
	openedAt    time.Time
	probeCalls  int
	probePassed int

	now func() time.Time
}

// NewBreaker creates a closed breaker. name labels it in logs.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:      name,
		tripAfter: defaultTripAfter,
		cooldown:  defaultCooldown,
		probes:    defaultProbes,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Do runs fn if the breaker allows it, recording the outcome. While open it
// returns [ErrOpen] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	probing, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn()
	b.settle(probing, callErr == nil)
	return callErr
}

// admit decides whether the next call may proceed, handling the open to
// half-open transition. It reports whether the call is a half-open probe.
func (b *Breaker) admit() (probing bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrOpen
		}
		b.state = HalfOpen
		b.probeCalls = 0
		b.probePassed = 0
		b.logger.Info("circuit probing backend", "breaker", b.name)
	case HalfOpen:
		if b.probeCalls >= b.probes {
			return false, ErrOpen
		}
	}

	if b.state == HalfOpen {
		b.probeCalls++
		return true, nil
	}
	return false, nil
}

// settle records a call outcome.
func (b *Breaker) settle(probing, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case ok && probing:
		b.probePassed++
		if b.probePassed >= b.probes {
			b.state = Closed
			b.failStreak = 0
			b.logger.Info("circuit closed", "breaker", b.name)
		}
	case ok:
		b.failStreak = 0
	case probing:
		b.state = Open
		b.openedAt = b.now()
		b.failStreak = b.tripAfter
		b.logger.Warn("circuit re-opened by failed probe", "breaker", b.name)
	default:
		b.failStreak++
		b.openedAt = b.now()
		if b.state == Closed && b.failStreak >= b.tripAfter {
			b.state = Open
			b.logger.Warn("circuit opened", "breaker", b.name, "failures", b.failStreak)
		}
	}
}

// State returns the breaker's current mode. An open breaker whose cooldown
// has elapsed reports [HalfOpen]; the transition itself happens on the next
// [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failStreak = 0
	b.probeCalls = 0
	b.probePassed = 0
	b.logger.Info("circuit manually reset", "breaker", b.name)
}
