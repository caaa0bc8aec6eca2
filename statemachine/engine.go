package statemachine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Failure policy defaults, matching the retry posture used elsewhere in the
// codebase: a handful of attempts with short exponential backoff.
const (
	defaultFailureAttempts = 4
	defaultFailureBackoff  = 100 * time.Millisecond
	defaultFailureFactor   = 2.0
)

// FailurePolicy controls what the scheduler does when an action reports
// failure. Retries apply only to actions that declare themselves retryable;
// reselection re-enters transition selection excluding transitions that
// already failed this step. When both are exhausted the failure escalates.
type FailurePolicy struct {
	// Attempts is the per-transition attempt budget (initial call included).
	Attempts int
	// Backoff is the delay before the first retry.
	Backoff time.Duration
	// Factor multiplies the delay after each retry.
	Factor float64
	// Reselect allows picking a different enabled transition after one fails.
	Reselect bool
}

// DefaultFailurePolicy returns the policy used when none is configured.
func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{
		Attempts: defaultFailureAttempts,
		Backoff:  defaultFailureBackoff,
		Factor:   defaultFailureFactor,
		Reselect: false,
	}
}

// StepResult reports one committed step.
type StepResult struct {
	From       string
	Transition string
	To         string
	// Terminal is true when the step landed on a terminal state.
	Terminal bool
}

// Scheduler is the per-actor interpreter: current state plus owned context,
// advanced one step at a time. It is not safe for concurrent use; each actor
// runs its own scheduler, and schedulers share nothing mutable (the Definition
// is read-only).
type Scheduler struct {
	def      *Definition
	current  *State
	actorCtx *Context
	rng      Rand
	clock    Clock
	observer Observer
	logger   Logger
	policy   FailurePolicy

	steps          int
	lastTransition string

	// staged holds the context clone produced by the last successful action
	// attempt, pending commit.
	staged        *Context
	stagedElapsed time.Duration
}

// SchedulerOption configures a scheduler at construction time.
type SchedulerOption func(*Scheduler)

// WithClock injects the time source consumed by time-windowed guards.
func WithClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithRand injects the random source used for weighted selection.
func WithRand(rng Rand) SchedulerOption {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

// WithSeed is shorthand for WithRand(NewRand(seed)).
func WithSeed(seed int64) SchedulerOption {
	return func(s *Scheduler) {
		s.rng = NewRand(seed)
	}
}

// WithObserver registers the per-step notification sink.
func WithObserver(observer Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = observer
	}
}

// WithLogger sets the execution logger.
func WithLogger(logger Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithFailurePolicy sets the action failure policy.
func WithFailurePolicy(policy FailurePolicy) SchedulerOption {
	return func(s *Scheduler) {
		s.policy = policy
	}
}

// NewScheduler creates an interpreter for one actor over a shared read-only
// definition. The context is owned by this scheduler from here on. A context
// carrying a non-empty CurrentState resumes from that state; a resume state
// the definition does not know is a configuration error (stale snapshot,
// renamed state, or a context from another profile).
func NewScheduler(def *Definition, actorCtx *Context, opts ...SchedulerOption) (*Scheduler, error) {
	scheduler := &Scheduler{
		def:      def,
		actorCtx: actorCtx,
		rng:      NewRand(time.Now().UnixNano()),
		clock:    RealClock{},
		logger:   NewDefaultLogger(),
		policy:   DefaultFailurePolicy(),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if actorCtx.Profile == "" {
		actorCtx.Profile = def.name
	}

	start := def.initial
	if actorCtx.CurrentState != "" {
		// Resuming mid-machine (e.g. a persisted context).
		start = actorCtx.CurrentState
	}

	current, ok := def.State(start)
	if !ok {
		return nil, newConfigError(def.name, start, ErrResumeStateNotFound)
	}

	scheduler.current = current
	actorCtx.CurrentState = start
	actorCtx.AppendToPath(start)

	return scheduler, nil
}

// Done reports whether the scheduler has reached a terminal state.
func (s *Scheduler) Done() bool {
	return s.current != nil && s.current.kind == KindTerminal
}

// CurrentState returns the name of the state the actor is in.
func (s *Scheduler) CurrentState() string {
	return s.current.name
}

// Steps returns the number of committed steps so far.
func (s *Scheduler) Steps() int {
	return s.steps
}

// LastTransition returns the label of the last committed transition.
func (s *Scheduler) LastTransition() string {
	return s.lastTransition
}

// Context returns the actor context owned by this scheduler. Callers must not
// mutate it while the scheduler is stepping.
func (s *Scheduler) Context() *Context {
	return s.actorCtx
}

// Clock returns the injected time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Step performs one select, act, commit cycle: filter transitions by guard
// in declaration order, pick one by weight, run its action against a cloned
// context, and commit the clone on success. A failed action never mutates the
// committed context.
func (s *Scheduler) Step(ctx context.Context) (StepResult, error) {
	if ctx.Err() != nil {
		return StepResult{}, ErrRunCancelled
	}

	if s.Done() {
		return StepResult{}, WrapStateError(s.current.name, ErrTerminalState)
	}

	from := s.current

	stepCtx, span := startStepSpan(ctx, s.actorCtx, from.name)
	defer span.End()

	enabled := s.enabledTransitions(stepCtx)
	if len(enabled) == 0 {
		err := WrapStateError(from.name, ErrNoEnabledTransition)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		noEnabledTransitionTotal.WithLabelValues(sanitizeProfile(s.actorCtx.Profile), from.name).Inc()

		return StepResult{}, err
	}

	candidates := enabled

	for {
		tr, err := s.pick(candidates)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return StepResult{}, err
		}

		actionErr := s.runAction(stepCtx, from, tr)
		if actionErr == nil {
			result := s.commit(stepCtx, from, tr)

			span.SetAttributes(
				attribute.String("transition", tr.name),
				attribute.String("to", tr.target),
			)
			span.SetStatus(codes.Ok, "committed")

			return result, nil
		}

		if s.policy.Reselect && len(candidates) > 1 {
			candidates = without(candidates, tr)

			continue
		}

		err = WrapTransitionError(from.name, tr.name, fmt.Errorf("%w: %w", ErrActionFailed, actionErr))

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		stepsTotal.WithLabelValues(sanitizeProfile(s.actorCtx.Profile), from.name, string(OutcomeFailure)).Inc()

		return StepResult{}, err
	}
}

// enabledTransitions evaluates guards in declaration order and returns the
// enabled set. Guard evaluation order across competing transitions is exactly
// the declared order every step, which keeps runs deterministic under a fixed
// seed.
func (s *Scheduler) enabledTransitions(ctx context.Context) []*Transition {
	transitions := s.current.transitions
	enabled := make([]*Transition, 0, len(transitions))

	for _, tr := range transitions {
		if tr.guard.Evaluate(ctx, s.actorCtx) {
			enabled = append(enabled, tr)
		}
	}

	return enabled
}

// pick selects one transition from the candidate set. A sole enabled
// transition is taken unconditionally, weight ignored; otherwise weights are
// normalized into a distribution and sampled. Zero-weight transitions are
// never sampled among competitors.
func (s *Scheduler) pick(candidates []*Transition) (*Transition, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	idx := weightedIndex(s.rng, candidates)
	if idx < 0 {
		// Several enabled transitions, none with positive weight: nothing is
		// eligible for sampling. Treat like an empty enabled set.
		return nil, WrapStateError(s.current.name, ErrNoEnabledTransition)
	}

	return candidates[idx], nil
}

// runAction executes a transition's action against a cloned context with the
// transition's retry budget, committing nothing itself. The pre-step context
// stays untouched whatever happens here.
func (s *Scheduler) runAction(ctx context.Context, from *State, tr *Transition) error {
	attempts := 1
	if isRetryable(tr.action) && s.policy.Attempts > attempts {
		attempts = s.policy.Attempts
	}

	delay := s.policy.Backoff

	var lastErr error

	for attempt := range attempts {
		if attempt > 0 {
			time.Sleep(delay)

			delay = time.Duration(float64(delay) * s.policy.Factor)
		}

		err := s.executeOnce(ctx, from, tr)
		if err == nil {
			return nil
		}

		lastErr = err
	}

	return lastErr
}

// executeOnce runs a single action attempt against a fresh clone and stages
// the clone for commit on success.
func (s *Scheduler) executeOnce(ctx context.Context, from *State, tr *Transition) error {
	working := s.actorCtx.Clone()

	actionCtx, span := startActionSpan(ctx, s.actorCtx, tr.action.Name(), from.name)
	defer span.End()

	s.logger.ActionStarted(actionCtx, tr.action.Name())

	start := time.Now()
	err := tr.action.Execute(actionCtx, working)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))

	s.logger.ActionCompleted(actionCtx, tr.action.Name(), elapsed, err)

	actionDuration.WithLabelValues(
		sanitizeProfile(s.actorCtx.Profile), tr.action.Name(), from.name,
	).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		actionFailuresTotal.WithLabelValues(
			sanitizeProfile(s.actorCtx.Profile), tr.action.Name(), from.name,
		).Inc()

		s.notify(ctx, from, tr, OutcomeFailure, err, elapsed)

		return err
	}

	span.SetStatus(codes.Ok, "completed")

	s.staged = working
	s.stagedElapsed = elapsed

	return nil
}

// commit swaps in the staged context, moves to the target state, and emits
// the step notification.
func (s *Scheduler) commit(ctx context.Context, from *State, tr *Transition) StepResult {
	working := s.staged
	s.staged = nil

	working.AddStep(from.name, tr.name, tr.target)
	working.AppendToPath(tr.target)
	working.CurrentState = tr.target

	s.actorCtx = working
	s.current, _ = s.def.State(tr.target)
	s.steps++
	s.lastTransition = tr.name

	s.logger.TransitionExecuted(ctx, from.name, tr.name, tr.target)
	s.logger.StateEntered(ctx, s.current.name, s.current.kind)

	stepsTotal.WithLabelValues(
		sanitizeProfile(s.actorCtx.Profile), from.name, string(OutcomeSuccess),
	).Inc()
	transitionsTotal.WithLabelValues(
		sanitizeProfile(s.actorCtx.Profile), from.name, tr.target,
	).Inc()

	s.notify(ctx, from, tr, OutcomeSuccess, nil, s.stagedElapsed)

	return StepResult{
		From:       from.name,
		Transition: tr.name,
		To:         tr.target,
		Terminal:   s.current.kind == KindTerminal,
	}
}

// notify emits a step event if an observer is registered.
func (s *Scheduler) notify(
	ctx context.Context, from *State, tr *Transition, outcome Outcome, err error, elapsed time.Duration,
) {
	if s.observer == nil {
		return
	}

	s.observer.StepTaken(ctx, StepEvent{
		ActorID:    s.actorCtx.ActorID,
		Profile:    s.actorCtx.Profile,
		From:       from.name,
		Transition: tr.name,
		To:         tr.target,
		Outcome:    outcome,
		Err:        err,
		Duration:   elapsed,
		Composite:  from.kind == KindComposite,
		Step:       s.steps,
	})
}

// without returns candidates minus the excluded transition, preserving order.
func without(candidates []*Transition, excluded *Transition) []*Transition {
	remaining := make([]*Transition, 0, len(candidates)-1)

	for _, tr := range candidates {
		if tr != excluded {
			remaining = append(remaining, tr)
		}
	}

	return remaining
}
