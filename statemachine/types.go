// Package statemachine implements a probabilistic finite state machine engine
// for driving simulated human actors through multi-step workflows. States hold
// weighted, guard-filtered transitions; a per-actor scheduler repeatedly
// selects one enabled transition, executes its action, and advances:
// reproducibly given a seeded random source, and without committing context
// changes from failed actions.
package statemachine

import "context"

// Action is a side-effecting unit of work attached to a transition. The
// scheduler invokes it with a working copy of the actor context; mutations are
// committed only if Execute returns nil.
type Action interface {
	Name() string
	Execute(ctx context.Context, actorCtx *Context) error
}

// RetryableAction is an optional interface actions implement to declare that
// their failures are safe to retry. Actions that do not implement it are
// treated as single-shot.
type RetryableAction interface {
	Retryable() bool
}

// Guard is a pure predicate over the actor context gating a transition's
// eligibility. Evaluation must be side-effect-free and total: a guard that
// cannot decide is a configuration bug, not a runtime condition.
type Guard interface {
	Evaluate(ctx context.Context, actorCtx *Context) bool
}

// GuardFunc adapts a plain function to the Guard interface.
type GuardFunc func(ctx context.Context, actorCtx *Context) bool

func (f GuardFunc) Evaluate(ctx context.Context, actorCtx *Context) bool {
	return f(ctx, actorCtx)
}

// isRetryable reports whether an action declared its failures retryable.
func isRetryable(action Action) bool {
	r, ok := action.(RetryableAction)

	return ok && r.Retryable()
}
