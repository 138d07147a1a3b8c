package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFail = errors.New("fail")

func failing(context.Context) error { return errFail }
func ok(context.Context) error      { return nil }

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(BreakerOpts{})
	assert.Equal(t, DefaultBreakerOpts.FailThreshold, b.opts.FailThreshold)
	assert.Equal(t, DefaultBreakerOpts.Timeout, b.opts.Timeout)
	assert.Equal(t, DefaultBreakerOpts.HalfOpenMax, b.opts.HalfOpenMax)
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Call(ctx, failing), errFail)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Call(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, ok)
	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, failing)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpen(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerOpts{
		FailThreshold: 1,
		Timeout:       5 * time.Second,
		OnStateChange: func(from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) },
	})
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(6 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Call(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailure(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 5 * time.Second})
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	now = now.Add(6 * time.Second)

	assert.ErrorIs(t, b.Call(ctx, failing), errFail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Second, HalfOpenMax: 1})
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	now = now.Add(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Call(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	assert.ErrorIs(t, b.Call(ctx, ok), ErrCircuitOpen)
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, b.State())
}

func TestExecuteReturnsValue(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2})
	v, err := Execute(b, context.Background(), func(context.Context) (string, error) { return "回答", nil })
	require.NoError(t, err)
	assert.Equal(t, "回答", v)
}

func TestExecuteCallTimeout(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, CallTimeout: 10 * time.Millisecond})
	_, err := Execute(b, context.Background(), func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateOpen, b.State())
}

func TestExecuteLateSuccessAfterDeadlineCountsAsFailure(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, CallTimeout: 5 * time.Millisecond})
	_, err := Execute(b, context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutePanicRecordedAndRethrown(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1})
	assert.Panics(t, func() {
		_, _ = Execute(b, context.Background(), func(context.Context) (int, error) { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
