package driver

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
)

// RetryPolicy bounds how often a record is attempted. Between attempts the
// dispatcher sleeps a uniform random duration in [MinBackoff, MaxBackoff).
type RetryPolicy struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 2, MinBackoff: time.Second, MaxBackoff: 2 * time.Second}
}

func (p RetryPolicy) backoff(r *rand.Rand) time.Duration {
	span := p.MaxBackoff - p.MinBackoff
	if span <= 0 {
		return p.MinBackoff
	}
	return p.MinBackoff + time.Duration(r.Int64N(int64(span)))
}

// Dispatcher runs records against an Executor with the retry policy and
// times each record from its first attempt to its final outcome.
type Dispatcher struct {
	exec    Executor
	policy  RetryPolicy
	rand    *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	log     *slog.Logger
	metrics *Metrics
}

type DispatcherOption func(*Dispatcher)

func WithRetryPolicy(p RetryPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		if p.Attempts > 0 {
			d.policy = p
		}
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithSleep replaces the context-aware backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

func WithSeed(seed uint64) DispatcherOption {
	return func(d *Dispatcher) {
		d.rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func NewDispatcher(exec Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		exec:   exec,
		policy: DefaultRetryPolicy(),
		rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:  sleepContext,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-t.C:
		return nil
	}
}

// Dispatch attempts rec until it succeeds or the policy is exhausted. It
// reports whether the record executed and how long it took including
// retries and backoff. A cancelled context ends the record as not executed.
func (d *Dispatcher) Dispatch(ctx context.Context, rec Record) (time.Duration, bool) {
	start := d.now()
	for attempt := 1; attempt <= d.policy.Attempts; attempt++ {
		d.metrics.attempt(rec.Tag)
		ok, err := d.exec.Execute(ctx, rec)
		if err == nil && ok {
			elapsed := d.now().Sub(start)
			d.metrics.executed(rec.Tag, elapsed)
			return elapsed, true
		}
		d.log.DebugContext(ctx, "transaction attempt failed",
			slog.String("tag", rec.Tag),
			slog.Int("line", rec.Line),
			slog.Int("attempt", attempt),
			slog.String("reason", reason(ok, err)),
		)
		if attempt == d.policy.Attempts {
			break
		}
		if err := d.sleep(ctx, d.policy.backoff(d.rand)); err != nil {
			break
		}
	}
	d.metrics.exhausted(rec.Tag)
	return d.now().Sub(start), false
}

func reason(ok bool, err error) string {
	if err != nil {
		return err.Error()
	}
	if !ok {
		return "not applied"
	}
	return ""
}
