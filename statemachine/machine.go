package statemachine

import "fmt"

// Definition is the immutable graph of states plus an initial state. Once
// built it is never mutated, which is what makes it safe to share read-only
// across arbitrarily many concurrent actors without locking.
type Definition struct {
	name    string
	initial string
	states  map[string]*State
	order   []string
}

// NewDefinition validates and freezes a machine definition. Every structural
// violation (dangling targets, unreachable states, terminal states with
// outgoing edges, reachable non-terminal states with none, negative weights)
// is a ConfigurationError surfaced here, before any run starts.
func NewDefinition(name, initial string, states ...*State) (*Definition, error) {
	if name == "" {
		return nil, newConfigError(name, "", ErrDefinitionNameRequired)
	}

	if initial == "" {
		return nil, newConfigError(name, "", ErrInitialStateRequired)
	}

	if len(states) == 0 {
		return nil, newConfigError(name, "", ErrStateRequired)
	}

	def := &Definition{
		name:    name,
		initial: initial,
		states:  make(map[string]*State, len(states)),
		order:   make([]string, 0, len(states)),
	}

	for _, state := range states {
		if state.name == "" {
			return nil, newConfigError(name, "", ErrStateNameRequired)
		}

		if _, dup := def.states[state.name]; dup {
			return nil, newConfigError(name, state.name, ErrDuplicateStateName)
		}

		def.states[state.name] = state
		def.order = append(def.order, state.name)
	}

	if _, ok := def.states[initial]; !ok {
		return nil, newConfigError(name, initial, ErrInitialStateNotFound)
	}

	err := def.validateStates()
	if err != nil {
		return nil, err
	}

	err = def.validateReachability()
	if err != nil {
		return nil, err
	}

	return def, nil
}

// Name returns the machine's name.
func (d *Definition) Name() string {
	return d.name
}

// InitialState returns the designated initial state name.
func (d *Definition) InitialState() string {
	return d.initial
}

// State looks up a state by name.
func (d *Definition) State(name string) (*State, bool) {
	state, ok := d.states[name]

	return state, ok
}

// StateNames returns the state names in declaration order.
func (d *Definition) StateNames() []string {
	names := make([]string, len(d.order))
	copy(names, d.order)

	return names
}

// validateStates checks per-state invariants: terminal states carry no
// transitions, non-terminal states carry at least one, targets exist, weights
// are non-negative.
func (d *Definition) validateStates() error {
	for _, name := range d.order {
		state := d.states[name]

		if state.kind == KindTerminal {
			if len(state.transitions) > 0 {
				return newConfigError(d.name, name, ErrTerminalHasTransitions)
			}

			continue
		}

		if len(state.transitions) == 0 {
			return newConfigError(d.name, name, ErrStateWithoutTransitions)
		}

		for _, tr := range state.transitions {
			if tr.name == "" {
				return newConfigError(d.name, name, ErrTransitionNameRequired)
			}

			if tr.weight < 0 {
				return newConfigError(d.name, name,
					fmt.Errorf("%w: transition %s has weight %v", ErrNegativeWeight, tr.name, tr.weight))
			}

			if _, ok := d.states[tr.target]; !ok {
				return newConfigError(d.name, name,
					fmt.Errorf("%w: transition %s targets %s", ErrDanglingTarget, tr.name, tr.target))
			}
		}
	}

	return nil
}

// validateReachability rejects states that can never be visited. An
// unreachable state is dead configuration and almost always a typo in a
// transition target.
func (d *Definition) validateReachability() error {
	reachable := map[string]bool{d.initial: true}
	queue := []string{d.initial}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, tr := range d.states[current].transitions {
			if !reachable[tr.target] {
				reachable[tr.target] = true
				queue = append(queue, tr.target)
			}
		}
	}

	for _, name := range d.order {
		if !reachable[name] {
			return newConfigError(d.name, name, ErrUnreachableState)
		}
	}

	return nil
}
