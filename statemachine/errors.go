package statemachine

import (
	"errors"
	"fmt"
)

// Load-time configuration errors. All of these surface from NewDefinition or
// the config loader, before any run starts.
var (
	// ErrDefinitionNameRequired indicates that a machine name is required.
	ErrDefinitionNameRequired = errors.New("definition name is required")
	// ErrInitialStateRequired indicates that an initial state is required.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrInitialStateNotFound indicates that the initial state does not exist.
	ErrInitialStateNotFound = errors.New("initial state does not exist")
	// ErrResumeStateNotFound indicates a resumed context whose CurrentState
	// is not a state of the definition.
	ErrResumeStateNotFound = errors.New("resume state does not exist")
	// ErrDanglingTarget indicates a transition pointing at a state that does
	// not exist in the definition.
	ErrDanglingTarget = errors.New("transition target does not exist")
	// ErrTransitionNameRequired indicates that a transition label is required.
	ErrTransitionNameRequired = errors.New("transition name is required")
	// ErrNegativeWeight indicates a transition with a weight below zero.
	ErrNegativeWeight = errors.New("transition weight must not be negative")
	// ErrTerminalHasTransitions indicates outgoing transitions on a terminal state.
	ErrTerminalHasTransitions = errors.New("terminal state must not have outgoing transitions")
	// ErrStateWithoutTransitions indicates a reachable non-terminal state
	// with no outgoing transitions, which would stall the run.
	ErrStateWithoutTransitions = errors.New("non-terminal state has no outgoing transitions")
	// ErrUnreachableState indicates a state that cannot be reached from the
	// initial state.
	ErrUnreachableState = errors.New("state is unreachable from the initial state")

	// ErrUnknownGuardType indicates an unregistered guard type in a config.
	ErrUnknownGuardType = errors.New("unknown guard type")
	// ErrUnknownActionType indicates an unregistered action type in a config.
	ErrUnknownActionType = errors.New("unknown action type")
	// ErrInvalidGuardConfig indicates a guard config with bad parameters.
	ErrInvalidGuardConfig = errors.New("invalid guard config")
	// ErrInvalidActionConfig indicates an action config with bad parameters.
	ErrInvalidActionConfig = errors.New("invalid action config")
	// ErrNoConfigLoader indicates that no config loader is registered.
	ErrNoConfigLoader = errors.New("no config loader registered; use SetConfigLoader() or provide a file path")

	// ErrInvalidExpression indicates that a guard expression is malformed.
	ErrInvalidExpression = errors.New("invalid expression")
	// ErrUnsupportedExpression indicates that a guard expression form is unsupported.
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

// Run-time errors.
var (
	// ErrNoEnabledTransition indicates that no transition's guard holds in a
	// non-terminal state. This is a machine-definition bug and is fatal for
	// the actor's run.
	ErrNoEnabledTransition = errors.New("no enabled transition")
	// ErrActionFailed indicates an action reported failure and its
	// retry/reselect policy is exhausted.
	ErrActionFailed = errors.New("action execution failed")
	// ErrRunCancelled reports a cooperative stop observed at a step boundary.
	// It is a normal terminal outcome, not a machine bug.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrTerminalState is returned by Step when the scheduler is already in a
	// terminal state and has nothing left to do.
	ErrTerminalState = errors.New("scheduler is in a terminal state")
)

// ConfigurationError wraps a load-time violation with the definition and
// state it was found in.
type ConfigurationError struct {
	Definition string
	State      string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("definition %s: %v", e.Definition, e.Err)
	}

	return fmt.Sprintf("definition %s, state %s: %v", e.Definition, e.State, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// StateError wraps a run-time error with the state it occurred in.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps a run-time error with the transition it occurred on.
type TransitionError struct {
	From       string
	Transition string
	Err        error
}

func (e *TransitionError) Error() string {
	if e.Transition == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s (from %s): %v", e.Transition, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// newConfigError wraps a load-time violation.
func newConfigError(definition, state string, err error) error {
	return &ConfigurationError{
		Definition: definition,
		State:      state,
		Err:        err,
	}
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, transition string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From:       from,
		Transition: transition,
		Err:        err,
	}
}
