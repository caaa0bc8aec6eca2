package statemachine

import (
	"context"
	"fmt"
	"time"
)

// BaseAction provides the name plumbing shared by built-in actions.
type BaseAction struct {
	name string
}

func (a *BaseAction) Name() string {
	return a.name
}

// NoopAction does nothing and always succeeds. It is the default action on
// every transition.
type NoopAction struct {
	BaseAction
}

// NewNoopAction creates a no-op action.
func NewNoopAction(name string) *NoopAction {
	return &NoopAction{BaseAction: BaseAction{name: name}}
}

func (a *NoopAction) Execute(_ context.Context, _ *Context) error {
	return nil
}

// FuncAction adapts a plain function to the Action interface. The retryable
// flag declares whether failures are safe to re-run.
type FuncAction struct {
	BaseAction

	fn        func(ctx context.Context, actorCtx *Context) error
	retryable bool
}

// NewFuncAction creates an action from a function.
func NewFuncAction(name string, fn func(ctx context.Context, actorCtx *Context) error) *FuncAction {
	return &FuncAction{
		BaseAction: BaseAction{name: name},
		fn:         fn,
	}
}

// NewRetryableFuncAction creates an action from a function whose failures are
// idempotent-safe to retry.
func NewRetryableFuncAction(name string, fn func(ctx context.Context, actorCtx *Context) error) *FuncAction {
	return &FuncAction{
		BaseAction: BaseAction{name: name},
		fn:         fn,
		retryable:  true,
	}
}

func (a *FuncAction) Execute(ctx context.Context, actorCtx *Context) error {
	return a.fn(ctx, actorCtx)
}

func (a *FuncAction) Retryable() bool {
	return a.retryable
}

// SetAction stores a fixed value in the context. Machine definitions use it
// as the zero-duration pseudo-action carrying exit-side context mutations.
type SetAction struct {
	BaseAction

	key   string
	value any
}

// NewSetAction creates an action that sets key to value.
func NewSetAction(name, key string, value any) *SetAction {
	return &SetAction{
		BaseAction: BaseAction{name: name},
		key:        key,
		value:      value,
	}
}

func (a *SetAction) Execute(_ context.Context, actorCtx *Context) error {
	actorCtx.Set(a.key, a.value)

	return nil
}

// IncrementAction bumps an integer counter in the context.
type IncrementAction struct {
	BaseAction

	key   string
	delta int
}

// NewIncrementAction creates an action that adds delta to a counter.
func NewIncrementAction(name, key string, delta int) *IncrementAction {
	return &IncrementAction{
		BaseAction: BaseAction{name: name},
		key:        key,
		delta:      delta,
	}
}

func (a *IncrementAction) Execute(_ context.Context, actorCtx *Context) error {
	actorCtx.Increment(a.key, a.delta)

	return nil
}

// SequenceAction executes actions in order, failing on the first error.
type SequenceAction struct {
	BaseAction

	actions []Action
}

// NewSequenceAction creates a sequence of actions.
func NewSequenceAction(name string, actions ...Action) *SequenceAction {
	return &SequenceAction{
		BaseAction: BaseAction{name: name},
		actions:    actions,
	}
}

func (a *SequenceAction) Execute(ctx context.Context, actorCtx *Context) error {
	for _, action := range a.actions {
		err := action.Execute(ctx, actorCtx)
		if err != nil {
			return fmt.Errorf("sequence step %s failed: %w", action.Name(), err)
		}
	}

	return nil
}

// ConditionalAction executes one of two actions depending on a guard.
type ConditionalAction struct {
	BaseAction

	guard      Guard
	thenAction Action
	elseAction Action
}

// NewConditionalAction creates a guarded either/or action. Either branch may
// be nil, in which case that branch is a no-op.
func NewConditionalAction(name string, guard Guard, thenAction, elseAction Action) *ConditionalAction {
	return &ConditionalAction{
		BaseAction: BaseAction{name: name},
		guard:      guard,
		thenAction: thenAction,
		elseAction: elseAction,
	}
}

func (a *ConditionalAction) Execute(ctx context.Context, actorCtx *Context) error {
	if a.guard.Evaluate(ctx, actorCtx) {
		if a.thenAction != nil {
			return a.thenAction.Execute(ctx, actorCtx)
		}

		return nil
	}

	if a.elseAction != nil {
		return a.elseAction.Execute(ctx, actorCtx)
	}

	return nil
}

// IdleAction blocks for a duration sampled uniformly from [min, max]. Pacing
// is modeled as an action with an observable delay; the scheduler treats the
// blocking time as opaque and never interrupts it.
type IdleAction struct {
	BaseAction

	min time.Duration
	max time.Duration
	rng Rand
}

// NewIdleAction creates an idle action sampling from [min, max]. A nil rng
// falls back to a time-seeded source.
func NewIdleAction(name string, minIdle, maxIdle time.Duration, rng Rand) *IdleAction {
	if rng == nil {
		rng = NewRand(time.Now().UnixNano())
	}

	if maxIdle < minIdle {
		maxIdle = minIdle
	}

	return &IdleAction{
		BaseAction: BaseAction{name: name},
		min:        minIdle,
		max:        maxIdle,
		rng:        rng,
	}
}

func (a *IdleAction) Execute(_ context.Context, actorCtx *Context) error {
	d := a.min
	if a.max > a.min {
		d = a.min + time.Duration(a.rng.Float64()*float64(a.max-a.min))
	}

	time.Sleep(d)

	actorCtx.Set("last_idle", d)

	return nil
}
