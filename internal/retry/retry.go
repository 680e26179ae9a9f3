// Package retry re-runs writes that fail with a transient "unavailable"
// error using exponential backoff plus random jitter.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/daybook/internal/apperr"
)

// Defaults match the planner's historical write loop.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = time.Second
)

// Policy describes how a failing write is retried.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before retry n is BaseDelay * 2^n
	MaxJitter   time.Duration // plus a random value in [0, MaxJitter)

	// Jitter overrides the random source; used by tests.
	Jitter func(max time.Duration) time.Duration
	// Sleep overrides the timer; used by tests.
	Sleep func(time.Duration)
}

// DefaultPolicy returns the five-attempt, one-second-base policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, apperr.ErrUnavailable)
}

// Do runs fn until it succeeds, fails with a non-retryable error, ctx is done
// or MaxAttempts is reached. Each retry is logged at warn level and a final
// failure is logged once at error level. The last error is returned.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	operation := func() error {
		attempt++
		attemptsTotal.WithLabelValues(op).Inc()
		err := fn(ctx)
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if maxAttempts > 1 {
		// WithMaxRetries treats zero as unlimited, hence the StopBackOff above.
		b = backoff.WithMaxRetries(&exponential{
			base:      p.BaseDelay,
			maxJitter: p.MaxJitter,
			jitter:    p.jitterFunc(),
		}, uint64(maxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		logger.Warn("retry: transient failure, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait),
			slog.String("error", err.Error()))
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, p.timer())
	if err != nil {
		failuresTotal.WithLabelValues(op).Inc()
		logger.Error("retry: write failed",
			slog.String("op", op),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()))
	}
	return err
}

func (p Policy) jitterFunc() func(time.Duration) time.Duration {
	if p.Jitter != nil {
		return p.Jitter
	}
	return func(max time.Duration) time.Duration {
		if max <= 0 {
			return 0
		}
		return rand.N(max)
	}
}

func (p Policy) timer() backoff.Timer {
	if p.Sleep == nil {
		return nil
	}
	return &sleepTimer{sleep: p.Sleep}
}

// exponential is a backoff.BackOff yielding base*2^n + jitter for the n-th
// retry, n starting at zero. It never returns Stop; WithMaxRetries bounds it.
type exponential struct {
	base      time.Duration
	maxJitter time.Duration
	jitter    func(time.Duration) time.Duration
	n         int
}

func (e *exponential) NextBackOff() time.Duration {
	d := e.base << e.n
	if d < e.base {
		d = e.base
	}
	e.n++
	return d + e.jitter(e.maxJitter)
}

func (e *exponential) Reset() {
	e.n = 0
}

// sleepTimer adapts a blocking sleep function to backoff.Timer.
type sleepTimer struct {
	sleep func(time.Duration)
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	if t.c == nil {
		t.c = make(chan time.Time, 1)
	}
	t.sleep(d)
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}
