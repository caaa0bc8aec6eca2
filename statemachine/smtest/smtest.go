// Package smtest provides test doubles and fixture machine definitions used
// by the engine, runner, and profile tests.
package smtest

import (
	"context"
	"sync"

	"github.com/rangelabs/simrange/statemachine"
)

// ScriptedAction returns a scripted sequence of outcomes, one per call, then
// keeps returning the last one. It records every invocation.
type ScriptedAction struct {
	mu        sync.Mutex
	name      string
	outcomes  []error
	retryable bool
	calls     int
	onCall    func(actorCtx *statemachine.Context)
}

// NewScriptedAction creates an action that fails or succeeds per the given
// outcome script (nil means success).
func NewScriptedAction(name string, outcomes ...error) *ScriptedAction {
	return &ScriptedAction{
		name:     name,
		outcomes: outcomes,
	}
}

// MarkRetryable declares the action's failures retryable.
func (a *ScriptedAction) MarkRetryable() *ScriptedAction {
	a.retryable = true

	return a
}

// OnCall registers a context mutation applied on every invocation, before the
// scripted outcome is returned.
func (a *ScriptedAction) OnCall(fn func(actorCtx *statemachine.Context)) *ScriptedAction {
	a.onCall = fn

	return a
}

func (a *ScriptedAction) Name() string {
	return a.name
}

func (a *ScriptedAction) Retryable() bool {
	return a.retryable
}

// Calls returns how many times the action was invoked.
func (a *ScriptedAction) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.calls
}

func (a *ScriptedAction) Execute(_ context.Context, actorCtx *statemachine.Context) error {
	a.mu.Lock()
	idx := a.calls
	a.calls++
	a.mu.Unlock()

	if a.onCall != nil {
		a.onCall(actorCtx)
	}

	if len(a.outcomes) == 0 {
		return nil
	}

	if idx >= len(a.outcomes) {
		idx = len(a.outcomes) - 1
	}

	return a.outcomes[idx]
}

// RecordingObserver collects step events for assertions.
type RecordingObserver struct {
	mu     sync.Mutex
	events []statemachine.StepEvent
}

// NewRecordingObserver creates an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) StepTaken(_ context.Context, event statemachine.StepEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, event)
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []statemachine.StepEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]statemachine.StepEvent, len(o.events))
	copy(out, o.events)

	return out
}

// Committed returns only the successfully committed step events.
func (o *RecordingObserver) Committed() []statemachine.StepEvent {
	var out []statemachine.StepEvent

	for _, ev := range o.Events() {
		if ev.Outcome == statemachine.OutcomeSuccess {
			out = append(out, ev)
		}
	}

	return out
}

// StubRand replays a fixed sequence of samples, cycling when exhausted.
type StubRand struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewStubRand creates a sampler replaying the given values.
func NewStubRand(values ...float64) *StubRand {
	return &StubRand{values: values}
}

func (r *StubRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.values) == 0 {
		return 0
	}

	val := r.values[r.next%len(r.values)]
	r.next++

	return val
}

// LinearDefinition builds a chain a -> b -> ... -> z where the last state is
// terminal and every edge is an unguarded no-op.
func LinearDefinition(name string, states ...string) (*statemachine.Definition, error) {
	builder := statemachine.NewBuilder(name).WithInitialState(states[0])

	for i, state := range states {
		if i == len(states)-1 {
			builder.AddTerminalState(state)

			continue
		}

		builder.AddState(state, statemachine.NewTransition("to_"+states[i+1], states[i+1]))
	}

	return builder.Build()
}
