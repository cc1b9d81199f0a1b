package worker

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/ignite/fundraise-dialer/internal/pkg/distlock"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
)

// Job names, also used as lock keys and ledger partitions.
const (
	JobDialer     = "dialer-tick"
	JobReconciler = "reconciler-tick"
)

// DefaultTickTimeout bounds a single tick when no timeout is configured.
const DefaultTickTimeout = 5 * time.Minute

// TickFunc runs one tick at now and returns its result.
type TickFunc func(ctx context.Context, now time.Time) (any, error)

// Guard runs fn only if no other process is running key.
// *distlock.Factory satisfies it.
type Guard interface {
	Run(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// TickRecord describes a finished tick for observers.
type TickRecord struct {
	Job       string
	StartedAt time.Time
	Duration  time.Duration
	Result    any
	Err       error
	// Skipped is set when the tick did not run because another process
	// held the lock.
	Skipped bool
}

// Observer is notified after every tick. Implementations must not block for
// long and handle their own errors.
type Observer interface {
	ObserveTick(ctx context.Context, rec TickRecord)
}

// Runner executes ticks under an optional distributed lock and reports each
// one to its observers. Both the HTTP trigger and the interval scheduler go
// through it.
type Runner struct {
	guard     Guard
	observers []Observer
	timeout   time.Duration
	now       func() time.Time
}

// NewRunner creates a runner. A nil guard runs ticks without locking.
func NewRunner(guard Guard, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTickTimeout
	}
	return &Runner{guard: guard, timeout: timeout, now: time.Now}
}

// AddObserver registers an observer.
func (r *Runner) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// SetClock overrides the clock used for tick timestamps.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run executes fn once for job. It returns distlock.ErrLockHeld without
// running fn when another process holds the job's lock.
func (r *Runner) Run(ctx context.Context, job string, fn TickFunc) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := r.now().UTC()
	var result any
	run := func(ctx context.Context) error {
		res, err := fn(ctx, started)
		if !isNil(res) {
			result = res
		}
		return err
	}

	var err error
	if r.guard != nil {
		err = r.guard.Run(ctx, job, run)
	} else {
		err = run(ctx)
	}

	rec := TickRecord{
		Job:       job,
		StartedAt: started,
		Duration:  r.now().UTC().Sub(started),
		Result:    result,
		Err:       err,
		Skipped:   errors.Is(err, distlock.ErrLockHeld),
	}
	switch {
	case rec.Skipped:
		logger.Info("tick skipped, lock held elsewhere", "job", job)
	case err != nil:
		logger.Error("tick failed", "job", job, "duration", rec.Duration.String(), "error", err)
	default:
		logger.Debug("tick finished", "job", job, "duration", rec.Duration.String())
	}

	obsCtx := context.WithoutCancel(ctx)
	for _, o := range r.observers {
		o.ObserveTick(obsCtx, rec)
	}
	return result, err
}

// isNil reports whether v is nil or a nil pointer, map or slice wrapped in
// an interface, as when a tick returns (*Result)(nil) with an error.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
