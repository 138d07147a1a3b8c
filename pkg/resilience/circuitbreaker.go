// Package resilience provides a circuit breaker for calls to flaky backends.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Circuit breaker states.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripping, reject calls
	StateHalfOpen              // allowing a probe call
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// BreakerOpts configures the circuit breaker.
type BreakerOpts struct {
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before entering half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of probe calls allowed in half-open state.
	HalfOpenMax int
	// CallTimeout, when positive, bounds every call through the breaker.
	// A call that runs out of time counts as a failure.
	CallTimeout time.Duration
	// OnStateChange is called, outside the lock, after every transition.
	OnStateChange func(from, to State)
}

// DefaultBreakerOpts provides sensible defaults.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker implements a circuit breaker with closed/open/half-open states.
type Breaker struct {
	mu            sync.Mutex
	opts          BreakerOpts
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCount int
	now           func() time.Time // for testing
}

// NewBreaker creates a circuit breaker with the given options.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	st, from, changed := b.currentState()
	b.mu.Unlock()
	if changed {
		b.notify(from, st)
	}
	return st
}

// currentState returns state, transitioning open→half-open if timeout elapsed. Must hold mu.
func (b *Breaker) currentState() (st, from State, changed bool) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.halfOpenCount = 0
		return StateHalfOpen, StateOpen, true
	}
	return b.state, b.state, false
}

func (b *Breaker) notify(from, to State) {
	if b.opts.OnStateChange != nil && from != to {
		b.opts.OnStateChange(from, to)
	}
}

// admit reserves a slot for a call or reports that the circuit is open.
func (b *Breaker) admit() error {
	b.mu.Lock()
	st, from, changed := b.currentState()
	var err error
	switch st {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenCount >= b.opts.HalfOpenMax {
			err = ErrCircuitOpen
		} else {
			b.halfOpenCount++
		}
	}
	b.mu.Unlock()
	if changed {
		b.notify(from, st)
	}
	return err
}

// record updates the state with the outcome of an admitted call.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.halfOpenCount = 0
		}
	} else {
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// Call executes f through the circuit breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	_, err := Execute(b, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
	return err
}

// Execute runs f through the breaker and returns its value. A panic in f is
// recorded as a failure and re-raised.
func Execute[T any](b *Breaker, ctx context.Context, f func(context.Context) (T, error)) (v T, err error) {
	if err := b.admit(); err != nil {
		return v, err
	}
	if b.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.CallTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	v, err = f(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	b.record(err)
	return v, err
}
