package statemachine

import (
	"context"
	"time"
)

// Outcome classifies a step attempt for observers.
type Outcome string

const (
	// OutcomeSuccess means the action succeeded and the step was committed.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure means the action failed; the context was not committed.
	OutcomeFailure Outcome = "failure"
)

// StepEvent is the per-step notification exposed to callers for logging and
// telemetry. The engine emits these but does not interpret them.
type StepEvent struct {
	ActorID    string
	Profile    string
	From       string
	Transition string
	To         string
	Outcome    Outcome
	Err        error
	Duration   time.Duration
	Composite  bool
	Step       int
}

// Observer receives step notifications from a scheduler.
type Observer interface {
	StepTaken(ctx context.Context, event StepEvent)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx context.Context, event StepEvent)

func (f ObserverFunc) StepTaken(ctx context.Context, event StepEvent) {
	f(ctx, event)
}

// MultiObserver fans one event out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) StepTaken(ctx context.Context, event StepEvent) {
	for _, obs := range m {
		obs.StepTaken(ctx, event)
	}
}
