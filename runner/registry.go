package runner

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rangelabs/simrange/statemachine"
)

// Factory builds a machine definition for one actor profile (a mail user, an
// SSH attacker, a WordPress commenter, ...) from its raw YAML configuration.
type Factory interface {
	Name() string
	Build(raw []byte) (*statemachine.Definition, error)
}

// Registry errors.
var (
	// ErrDuplicateFactory indicates two factories registered under one name.
	ErrDuplicateFactory = errors.New("factory already registered")
	// ErrUnknownProfile indicates a lookup for an unregistered profile.
	ErrUnknownProfile = errors.New("unknown profile")
)

// Registry is the profile-name to factory table. It is built once at process
// start and passed by reference into whatever launches fleets; there is no
// ambient global lookup at run time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under its own name.
func (r *Registry) Register(factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := factory.Name()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateFactory, name)
	}

	r.factories[name] = factory

	return nil
}

// Lookup returns the factory for a profile name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownProfile, name, r.namesLocked())
	}

	return factory, nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
