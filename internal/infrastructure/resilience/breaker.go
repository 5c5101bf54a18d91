// Package resilience provides the per-stream circuit breaker the
// aggregation engine uses to shed a camera whose producer keeps
// failing, instead of burning worker time on it every frame.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is shedding work.
var ErrOpen = errors.New("resilience: breaker open")

// State represents the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config configures breaker behavior.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// opens the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before letting one
	// probe through.
	Cooldown time.Duration
	// OnStateChange, when set, is called on every transition.
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker. Closed passes
// everything through; after FailureThreshold consecutive failures it
// opens and rejects with ErrOpen; after Cooldown a single probe is let
// through, and its outcome closes or reopens the breaker.
type Breaker struct {
	name string
	cfg  Config

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeBusy bool
}

// New creates a breaker. Zero config fields get conservative defaults.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, state: StateClosed}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

// Execute runs op unless the breaker is shedding. A panic in op counts
// as a failure and propagates.
func (b *Breaker) Execute(op func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(false)
			panic(r)
		}
	}()

	err := op()
	b.record(err == nil)
	return err
}

// allow decides whether a call may proceed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(time.Now()) {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probeBusy {
			return ErrOpen
		}
		b.probeBusy = true
	}
	return nil
}

// record applies a call outcome.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState(time.Now())
	switch state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.probeBusy = false
		if success {
			b.transition(StateClosed)
		} else {
			b.transition(StateOpen)
		}
	}
}

// currentState resolves cooldown expiry. Caller holds the lock.
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.Cooldown {
		b.transition(StateHalfOpen)
	}
	return b.state
}

// transition changes state. Caller holds the lock.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0

	switch to {
	case StateOpen:
		b.openedAt = time.Now()
	case StateHalfOpen:
		b.probeBusy = false
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
