package statemachine

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigLoader is an interface for loading machine configurations by name.
// Applications can implement this to provide embedded or custom config loading.
type ConfigLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

// defaultConfigLoader is the global config loader used by LoadConfig for bare
// names. Applications can set this to provide embedded configs.
var defaultConfigLoader ConfigLoader

// SetConfigLoader sets the default config loader for name-based loading.
func SetConfigLoader(loader ConfigLoader) {
	defaultConfigLoader = loader
}

// Config is the declarative description of a machine definition.
type Config struct {
	Name         string        `json:"name"         yaml:"name"`
	InitialState string        `json:"initialState" yaml:"initialState"`
	Seed         int64         `json:"seed"         yaml:"seed"`
	States       []StateConfig `json:"states"       yaml:"states"`
}

// StateConfig declares one state. Kind is "normal" (default), "composite", or
// "terminal".
type StateConfig struct {
	Name        string             `json:"name"        yaml:"name"`
	Kind        string             `json:"kind"        yaml:"kind"`
	Transitions []TransitionConfig `json:"transitions" yaml:"transitions"`
}

// TransitionConfig declares one outgoing edge. Weight defaults to 1.0. Guard
// and the Expression shorthand are mutually exclusive; Expression is sugar for
// a guard of type "expression".
type TransitionConfig struct {
	Name       string        `json:"name"       yaml:"name"`
	Target     string        `json:"target"     yaml:"target"`
	Weight     *float64      `json:"weight"     yaml:"weight"`
	Guard      *GuardConfig  `json:"guard"      yaml:"guard"`
	Expression string        `json:"expression" yaml:"expression"`
	Action     *ActionConfig `json:"action"     yaml:"action"`
}

// GuardConfig declares a guard by registered type name.
type GuardConfig struct {
	Type       string         `json:"type"       yaml:"type"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// ActionConfig declares an action by registered type name.
type ActionConfig struct {
	Type       string         `json:"type"       yaml:"type"`
	Name       string         `json:"name"       yaml:"name"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// LoadConfig loads a machine configuration by path or name.
// Supports two modes:
//   - Path mode: pass a file path (containing '/', '\', or ending in '.yaml'
//     or '.yml') to load from the filesystem.
//   - Name mode: pass a bare name to load via the registered ConfigLoader.
func LoadConfig(pathOrName string) (*Config, error) {
	isPath := strings.Contains(pathOrName, "/") ||
		strings.Contains(pathOrName, `\`) ||
		strings.HasSuffix(strings.ToLower(pathOrName), ".yaml") ||
		strings.HasSuffix(strings.ToLower(pathOrName), ".yml")

	if isPath {
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Intentional path-based loading
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", pathOrName, err)
		}

		return LoadConfigFromBytes(data)
	}

	if defaultConfigLoader == nil {
		return nil, ErrNoConfigLoader
	}

	data, err := defaultConfigLoader.LoadByName(pathOrName)
	if err != nil {
		available := defaultConfigLoader.ListAvailable()

		return nil, fmt.Errorf("failed to load config %q (available: %v): %w", pathOrName, available, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads a machine configuration from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from an embedded filesystem.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks the declarative structure. Graph-level invariants
// (reachability, dangling targets) are enforced again by NewDefinition; this
// catches everything expressible before guards and actions are built.
func (c *Config) Validate() error {
	if c.Name == "" {
		return newConfigError(c.Name, "", ErrDefinitionNameRequired)
	}

	if c.InitialState == "" {
		return newConfigError(c.Name, "", ErrInitialStateRequired)
	}

	if len(c.States) == 0 {
		return newConfigError(c.Name, "", ErrStateRequired)
	}

	stateNames := make(map[string]bool, len(c.States))

	for _, state := range c.States {
		if state.Name == "" {
			return newConfigError(c.Name, "", ErrStateNameRequired)
		}

		if stateNames[state.Name] {
			return newConfigError(c.Name, state.Name, ErrDuplicateStateName)
		}

		stateNames[state.Name] = true

		_, err := parseKind(state.Kind)
		if err != nil {
			return newConfigError(c.Name, state.Name, err)
		}

		for i, tr := range state.Transitions {
			if tr.Name == "" {
				return newConfigError(c.Name, state.Name,
					fmt.Errorf("transition %d: %w", i, ErrTransitionNameRequired))
			}

			if tr.Target == "" {
				return newConfigError(c.Name, state.Name,
					fmt.Errorf("transition %s: %w: empty target", tr.Name, ErrDanglingTarget))
			}

			if tr.Weight != nil && *tr.Weight < 0 {
				return newConfigError(c.Name, state.Name,
					fmt.Errorf("transition %s: %w", tr.Name, ErrNegativeWeight))
			}

			if tr.Guard != nil && tr.Expression != "" {
				return newConfigError(c.Name, state.Name,
					fmt.Errorf("transition %s: %w: guard and expression are mutually exclusive",
						tr.Name, ErrInvalidGuardConfig))
			}
		}
	}

	return nil
}

// parseKind maps a config kind string onto a Kind.
func parseKind(kind string) (Kind, error) {
	switch kind {
	case "", "normal":
		return KindNormal, nil
	case "composite":
		return KindComposite, nil
	case "terminal":
		return KindTerminal, nil
	default:
		return KindNormal, fmt.Errorf("unknown state kind %q", kind)
	}
}

// BuildDefinition materializes a validated config into an immutable
// Definition, resolving guard and action type names through the registry.
// Unknown types and malformed parameters fail here, before any run starts.
func BuildDefinition(config *Config, reg *Registry) (*Definition, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	states := make([]*State, 0, len(config.States))

	for _, stateCfg := range config.States {
		kind, _ := parseKind(stateCfg.Kind)

		transitions := make([]*Transition, 0, len(stateCfg.Transitions))

		for _, trCfg := range stateCfg.Transitions {
			tr, err := buildTransition(trCfg, reg)
			if err != nil {
				return nil, newConfigError(config.Name, stateCfg.Name, err)
			}

			transitions = append(transitions, tr)
		}

		switch kind {
		case KindComposite:
			states = append(states, NewCompositeState(stateCfg.Name, transitions...))
		case KindTerminal:
			if len(transitions) > 0 {
				return nil, newConfigError(config.Name, stateCfg.Name, ErrTerminalHasTransitions)
			}

			states = append(states, NewTerminalState(stateCfg.Name))
		case KindNormal:
			states = append(states, NewState(stateCfg.Name, transitions...))
		}
	}

	return NewDefinition(config.Name, config.InitialState, states...)
}

// buildTransition resolves one transition config through the registry.
func buildTransition(config TransitionConfig, reg *Registry) (*Transition, error) {
	opts := []TransitionOption{}

	if config.Weight != nil {
		opts = append(opts, WithWeight(*config.Weight))
	}

	if config.Expression != "" {
		guard, err := NewExpressionGuard(config.Expression)
		if err != nil {
			return nil, fmt.Errorf("transition %s: %w", config.Name, err)
		}

		opts = append(opts, WithGuard(guard))
	}

	if config.Guard != nil {
		guard, err := reg.CreateGuard(*config.Guard)
		if err != nil {
			return nil, fmt.Errorf("transition %s: %w", config.Name, err)
		}

		opts = append(opts, WithGuard(guard))
	}

	if config.Action != nil {
		action, err := reg.CreateAction(*config.Action)
		if err != nil {
			return nil, fmt.Errorf("transition %s: %w", config.Name, err)
		}

		opts = append(opts, WithAction(action))
	}

	return NewTransition(config.Name, config.Target, opts...), nil
}
