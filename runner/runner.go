// Package runner owns the lifecycle of simulated actors: each Runner drives
// one scheduler until a terminal state, an external stop, or a fatal error,
// and a Fleet fans many independent runners out over a worker pool. Runners
// share nothing mutable except the read-only machine definition.
package runner

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/rangelabs/simrange/statemachine"
)

// Status is the runner lifecycle state. A runner never transitions backward
// from a terminal status.
type Status int32

const (
	// StatusCreated means the runner has not started yet.
	StatusCreated Status = iota
	// StatusRunning means steps are executing.
	StatusRunning
	// StatusCompleted means a terminal machine state was reached.
	StatusCompleted
	// StatusCancelled means a cooperative stop was observed at a step boundary.
	StatusCancelled
	// StatusFailed means a fatal run error occurred.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned when Run is called twice on one runner.
var ErrAlreadyStarted = errors.New("runner already started")

// Result reports one actor's run outcome. Completion and cancellation are
// both normal outcomes; Err is non-nil only for StatusFailed.
type Result struct {
	ActorID   string
	Profile   string
	Status    Status
	Steps     int
	LastState string
	Err       error
	Duration  time.Duration
}

// Runner executes one actor's scheduler loop. The stop signal is checked
// before each step, never mid-action, so an action is never left half-applied.
type Runner struct {
	id        string
	scheduler *statemachine.Scheduler
	status    *atomic.Int32
	stop      chan struct{}
	stopOnce  *atomic.Bool
	limiter   *rate.Limiter
	maxErrors int
}

// Option configures a runner.
type Option func(*Runner)

// WithLimiter paces step execution with a shared rate limiter, typically one
// limiter across a whole fleet.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(r *Runner) {
		r.limiter = limiter
	}
}

// WithMaxErrors tolerates up to n escalated action failures before the run
// goes Failed. The state does not advance on a failed step; the next
// iteration re-enters selection. Default is 0: the first escalated failure
// fails the run.
func WithMaxErrors(n int) Option {
	return func(r *Runner) {
		r.maxErrors = n
	}
}

// New creates a runner for the given scheduler. The actor ID is taken from
// the scheduler's context.
func New(scheduler *statemachine.Scheduler, opts ...Option) *Runner {
	r := &Runner{
		id:        scheduler.Context().ActorID,
		scheduler: scheduler,
		status:    atomic.NewInt32(int32(StatusCreated)),
		stop:      make(chan struct{}),
		stopOnce:  atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ID returns the actor ID.
func (r *Runner) ID() string {
	return r.id
}

// Status returns the current lifecycle status.
func (r *Runner) Status() Status {
	return Status(r.status.Load())
}

// Stop requests cooperative cancellation. The runner halts before its next
// step; an in-flight action finishes first.
func (r *Runner) Stop() {
	if r.stopOnce.CompareAndSwap(false, true) {
		close(r.stop)
	}
}

// Run executes the step loop until a terminal state, a stop signal, or a
// fatal error. It may be called once.
func (r *Runner) Run(ctx context.Context) Result {
	if !r.status.CompareAndSwap(int32(StatusCreated), int32(StatusRunning)) {
		return Result{
			ActorID: r.id,
			Profile: r.scheduler.Context().Profile,
			Status:  r.Status(),
			Err:     ErrAlreadyStarted,
		}
	}

	profile := r.scheduler.Context().Profile

	runCtx, span := statemachine.StartRunSpan(ctx, r.scheduler.Context())
	defer span.End()

	activeActors.WithLabelValues(sanitizeProfile(profile)).Inc()
	defer activeActors.WithLabelValues(sanitizeProfile(profile)).Dec()

	start := time.Now()
	status, err := r.loop(runCtx)

	r.status.Store(int32(status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, status.String())
	}

	elapsed := time.Since(start)

	runsTotal.WithLabelValues(sanitizeProfile(profile), status.String()).Inc()
	runDuration.WithLabelValues(sanitizeProfile(profile), status.String()).Observe(elapsed.Seconds())

	return Result{
		ActorID:   r.id,
		Profile:   profile,
		Status:    status,
		Steps:     r.scheduler.Steps(),
		LastState: r.scheduler.CurrentState(),
		Err:       err,
		Duration:  elapsed,
	}
}

// loop is the strictly sequential select, act, commit cycle.
func (r *Runner) loop(ctx context.Context) (Status, error) {
	failures := 0

	for {
		// Cooperative cancellation, observed only between steps.
		select {
		case <-ctx.Done():
			return StatusCancelled, nil
		case <-r.stop:
			return StatusCancelled, nil
		default:
		}

		if r.scheduler.Done() {
			return StatusCompleted, nil
		}

		if r.limiter != nil {
			err := r.limiter.Wait(ctx)
			if err != nil {
				return StatusCancelled, nil
			}
		}

		_, err := r.scheduler.Step(ctx)
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, statemachine.ErrRunCancelled):
			return StatusCancelled, nil
		case errors.Is(err, statemachine.ErrNoEnabledTransition):
			// A dead end is a machine-definition bug, never retried.
			return StatusFailed, err
		case errors.Is(err, statemachine.ErrActionFailed):
			failures++
			if failures > r.maxErrors {
				return StatusFailed, err
			}

			// Context and state are untouched by the failed step; re-enter
			// selection on the next iteration.
		default:
			return StatusFailed, err
		}
	}
}
