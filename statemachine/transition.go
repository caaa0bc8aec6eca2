package statemachine

import "context"

// defaultWeight is used when a transition does not specify one.
const defaultWeight = 1.0

// Transition is a single edge in a machine definition: a labelled, weighted,
// optionally guarded jump to a target state with an attached action. The
// zero-value guard is "always true" and the zero-value action is a no-op.
type Transition struct {
	name   string
	target string
	weight float64
	guard  Guard
	action Action
}

// TransitionOption configures a transition at construction time.
type TransitionOption func(*Transition)

// WithWeight sets the relative likelihood used when several transitions are
// enabled at once. Weight 0 marks a transition that is only ever taken when it
// is the sole enabled edge (a forced fallback).
func WithWeight(weight float64) TransitionOption {
	return func(t *Transition) {
		t.weight = weight
	}
}

// WithGuard sets the eligibility predicate.
func WithGuard(guard Guard) TransitionOption {
	return func(t *Transition) {
		t.guard = guard
	}
}

// WithGuardFunc sets the eligibility predicate from a plain function.
func WithGuardFunc(f func(actorCtx *Context) bool) TransitionOption {
	return func(t *Transition) {
		t.guard = GuardFunc(func(_ context.Context, actorCtx *Context) bool {
			return f(actorCtx)
		})
	}
}

// WithAction sets the side effect executed when the transition is taken.
func WithAction(action Action) TransitionOption {
	return func(t *Transition) {
		t.action = action
	}
}

// NewTransition creates a transition to the target state. Defaults: weight
// 1.0, always-true guard, no-op action.
func NewTransition(name, target string, opts ...TransitionOption) *Transition {
	t := &Transition{
		name:   name,
		target: target,
		weight: defaultWeight,
		guard:  Always(),
		action: NewNoopAction(name),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the transition's label.
func (t *Transition) Name() string {
	return t.name
}

// Target returns the destination state name.
func (t *Transition) Target() string {
	return t.target
}

// Weight returns the selection weight.
func (t *Transition) Weight() float64 {
	return t.weight
}

// Guard returns the eligibility predicate.
func (t *Transition) Guard() Guard {
	return t.guard
}

// Action returns the attached side effect.
func (t *Transition) Action() Action {
	return t.action
}
