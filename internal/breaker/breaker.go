// Package breaker wraps the blocking dispatcher with a circuit breaker
// tripped by consecutive I/O failures, so a filesystem observably
// failing (ENOSPC storms, a dying disk) fails fast instead of queuing
// more work against it. Adapted from a conventional closed/open/half-open
// circuit breaker; narrowed to consecutive-failure tripping since the
// dispatcher only ever sees one kind of downstream (the local host fs).
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned by Execute while the breaker is open.
var ErrOpen = errors.New("circuit open")

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker. 0 disables the breaker (Execute always runs fn).
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before allowing one
	// trial request through (half-open).
	ResetTimeout time.Duration

	// IsFailure classifies an error as countable. A nil IsFailure treats
	// any non-nil error as a failure.
	IsFailure func(err error) bool
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	config Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
}

// New builds a Breaker. A zero FailureThreshold disables tripping.
func New(config Config) *Breaker {
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{config: config, state: Closed}
}

// Execute runs fn if the breaker allows it, else returns ErrOpen without
// calling fn.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	if b.config.FailureThreshold <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) >= b.config.ResetTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	case HalfOpen:
		// The one trial request is already in flight.
		return false
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	if b.config.FailureThreshold <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.IsFailure(err) {
		b.consecutiveFailures++
		if b.state == HalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
			b.state = Open
			b.openedAt = time.Now()
		}
		return
	}

	b.consecutiveFailures = 0
	if b.state == HalfOpen {
		b.state = Closed
	}
}

// State reports the breaker's current state, advancing Open->HalfOpen
// if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && time.Since(b.openedAt) >= b.config.ResetTimeout {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
}
