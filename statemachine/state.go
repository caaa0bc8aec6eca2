package statemachine

// Kind classifies how a state participates in a run.
type Kind int

const (
	// KindNormal is a regular workflow state with an externally visible pause
	// between entry and transition selection.
	KindNormal Kind = iota
	// KindComposite marks an immediate re-dispatch state. Selection works
	// exactly as for normal states; the kind is a pacing and log-visibility
	// hint, not a separate control-flow mechanism.
	KindComposite
	// KindTerminal ends the run successfully. Terminal states have no
	// outgoing transitions.
	KindTerminal
)

// String returns the kind's config-level name.
func (k Kind) String() string {
	switch k {
	case KindComposite:
		return "composite"
	case KindTerminal:
		return "terminal"
	case KindNormal:
		return "normal"
	default:
		return "normal"
	}
}

// State is a named node holding its outgoing transitions in declaration
// order. Declaration order is the tie-break for deterministic guard
// enumeration.
type State struct {
	name        string
	kind        Kind
	transitions []*Transition
}

// NewState creates a normal state with the given outgoing transitions.
func NewState(name string, transitions ...*Transition) *State {
	return &State{
		name:        name,
		kind:        KindNormal,
		transitions: transitions,
	}
}

// NewCompositeState creates an auto-dispatch state.
func NewCompositeState(name string, transitions ...*Transition) *State {
	return &State{
		name:        name,
		kind:        KindComposite,
		transitions: transitions,
	}
}

// NewTerminalState creates a state that ends the run.
func NewTerminalState(name string) *State {
	return &State{
		name: name,
		kind: KindTerminal,
	}
}

// Name returns the state's identity.
func (s *State) Name() string {
	return s.name
}

// Kind returns the state's classification.
func (s *State) Kind() Kind {
	return s.kind
}

// Transitions returns the outgoing transitions in declaration order.
func (s *State) Transitions() []*Transition {
	return s.transitions
}
