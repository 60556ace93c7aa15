package eventsourcing

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy wraps a unit of work and re-runs it on transient failures.
//
// Implementations must propagate the last error once they give up, and must
// never retry concurrency conflicts or a canceled context.
type RetryPolicy interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type noRetry struct{}

// NoRetry runs the work exactly once.
func NoRetry() RetryPolicy {
	return noRetry{}
}

func (noRetry) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

type RetryOption func(*BackoffRetryPolicy)

// WithRetryNotify is called after every failed attempt that will be retried.
func WithRetryNotify(notify func(err error, next time.Duration)) RetryOption {
	return func(p *BackoffRetryPolicy) {
		p.notify = notify
	}
}

// BackoffRetryPolicy retries failed work with a backoff.BackOff schedule.
type BackoffRetryPolicy struct {
	maxRetries uint64
	newBackOff func() backoff.BackOff
	notify     backoff.Notify
}

// NewBackoffRetryPolicy retries up to maxRetries times after the first
// attempt. newBackOff is called once per Execute so that concurrent
// executions do not share backoff state.
//
// Example Usage:
//
//	policy := NewBackoffRetryPolicy(3, func() backoff.BackOff {
//		return backoff.NewConstantBackOff(50 * time.Millisecond)
//	})
func NewBackoffRetryPolicy(maxRetries uint64, newBackOff func() backoff.BackOff, opts ...RetryOption) *BackoffRetryPolicy {
	p := &BackoffRetryPolicy{
		maxRetries: maxRetries,
		newBackOff: newBackOff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewExponentialRetryPolicy is the bounded exponential backoff used by default
// in production setups.
func NewExponentialRetryPolicy(maxRetries uint64, initial, maxInterval time.Duration, multiplier float64, opts ...RetryOption) *BackoffRetryPolicy {
	return NewBackoffRetryPolicy(maxRetries, func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = maxInterval
		b.Multiplier = multiplier
		b.MaxElapsedTime = 0
		return b
	}, opts...)
}

func (p *BackoffRetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)

	return backoff.RetryNotify(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := fn(ctx)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, p.notify)
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrBusinessRuleViolation),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
