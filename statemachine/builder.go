package statemachine

// Builder provides a fluent API for constructing machine definitions
// programmatically, for catalogs whose guards and actions are code rather
// than config.
type Builder struct {
	name    string
	initial string
	states  []*State
}

// NewBuilder creates a definition builder.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// WithInitialState sets the initial state.
func (b *Builder) WithInitialState(state string) *Builder {
	b.initial = state

	return b
}

// AddState adds a normal state with the given transitions.
func (b *Builder) AddState(name string, transitions ...*Transition) *Builder {
	b.states = append(b.states, NewState(name, transitions...))

	return b
}

// AddCompositeState adds an auto-dispatch state.
func (b *Builder) AddCompositeState(name string, transitions ...*Transition) *Builder {
	b.states = append(b.states, NewCompositeState(name, transitions...))

	return b
}

// AddTerminalState adds a state that ends the run.
func (b *Builder) AddTerminalState(name string) *Builder {
	b.states = append(b.states, NewTerminalState(name))

	return b
}

// Build validates and freezes the definition.
func (b *Builder) Build() (*Definition, error) {
	return NewDefinition(b.name, b.initial, b.states...)
}
