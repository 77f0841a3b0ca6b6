package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Retrier executes operations under the policy table.
type Retrier struct {
	logger     *zap.Logger
	delayScale float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithLogger sets the logger used to report retries.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retrier) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDelayScale multiplies every policy delay by f. A scale of 0 retries immediately.
func WithDelayScale(f float64) Option {
	return func(r *Retrier) {
		if f >= 0 {
			r.delayScale = f
		}
	}
}

// NewRetrier creates a Retrier.
func NewRetrier(opts ...Option) *Retrier {
	r := &Retrier{
		logger:     zap.NewNop(),
		delayScale: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// policyBackOff is a backoff.BackOff whose schedule follows the classification
// of the most recent failure.
type policyBackOff struct {
	scale    float64
	last     Classification
	attempts map[Category]int
}

func (b *policyBackOff) observe(c Classification) {
	b.last = c
}

// NextBackOff implements backoff.BackOff.
func (b *policyBackOff) NextBackOff() time.Duration {
	c := b.last
	if !c.Retryable {
		return backoff.Stop
	}
	b.attempts[c.Category]++
	n := b.attempts[c.Category]
	if n > c.MaxRetries {
		return backoff.Stop
	}
	return time.Duration(float64(c.Delay(n)) * b.scale)
}

// Reset implements backoff.BackOff.
func (b *policyBackOff) Reset() {
	b.attempts = make(map[Category]int)
	b.last = Classification{}
}

// Do runs op until it succeeds, fails with a non-retryable error, or exhausts the
// retries allowed for its category. The last error is returned unchanged.
func Do[T any](ctx context.Context, r *Retrier, op string, fn func() (T, error)) (T, error) {
	if r == nil {
		r = NewRetrier()
	}
	b := &policyBackOff{scale: r.delayScale}
	b.Reset()

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		c := Lookup(Classify(err))
		b.observe(c)
		if !c.Retryable {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("Retrying operation",
				zap.String("op", op),
				zap.String("category", string(Classify(err))),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, r *Retrier, op string, fn func() error) error {
	_, err := Do(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
