package statemachine

import (
	"fmt"
	"time"
)

// ActionBuilder creates an action from declarative parameters. The registry
// parameter allows builders to create nested actions (e.g. sequences).
type ActionBuilder func(reg *Registry, name string, params map[string]any) (Action, error)

// GuardBuilder creates a guard from declarative parameters.
type GuardBuilder func(reg *Registry, params map[string]any) (Guard, error)

// Registry maps guard and action type names to builders. It replaces ambient
// runtime lookup: the table is built once at process start and passed by
// reference into whatever loads machine definitions. Application catalogs
// (mail, calendar, shell, ...) register their drivers' actions here.
type Registry struct {
	clock   Clock
	rng     Rand
	actions map[string]ActionBuilder
	guards  map[string]GuardBuilder
}

// RegistryOption configures a registry at construction time.
type RegistryOption func(*Registry)

// WithRegistryClock injects the time source handed to time-windowed guards
// and idle actions built from config.
func WithRegistryClock(clock Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithRegistryRand injects the random source handed to idle actions built
// from config, for deterministic tests.
func WithRegistryRand(rng Rand) RegistryOption {
	return func(r *Registry) {
		r.rng = rng
	}
}

// NewRegistry creates a registry with the built-in guard and action types
// registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	reg := &Registry{
		clock:   RealClock{},
		actions: make(map[string]ActionBuilder),
		guards:  make(map[string]GuardBuilder),
	}

	for _, opt := range opts {
		opt(reg)
	}

	reg.RegisterAction("noop", noopActionBuilder)
	reg.RegisterAction("set", setActionBuilder)
	reg.RegisterAction("increment", incrementActionBuilder)
	reg.RegisterAction("idle", idleActionBuilder)
	reg.RegisterAction("sequence", sequenceActionBuilder)

	reg.RegisterGuard("always", alwaysGuardBuilder)
	reg.RegisterGuard("flag", flagGuardBuilder)
	reg.RegisterGuard("not_flag", notFlagGuardBuilder)
	reg.RegisterGuard("counter_at_least", counterAtLeastGuardBuilder)
	reg.RegisterGuard("counter_below", counterBelowGuardBuilder)
	reg.RegisterGuard("expression", expressionGuardBuilder)
	reg.RegisterGuard("before", beforeGuardBuilder)
	reg.RegisterGuard("after", afterGuardBuilder)

	return reg
}

// RegisterAction registers a custom action builder.
func (r *Registry) RegisterAction(actionType string, builder ActionBuilder) {
	r.actions[actionType] = builder
}

// RegisterGuard registers a custom guard builder.
func (r *Registry) RegisterGuard(guardType string, builder GuardBuilder) {
	r.guards[guardType] = builder
}

// Clock returns the registry's time source.
func (r *Registry) Clock() Clock {
	return r.clock
}

// CreateAction builds an action from configuration.
func (r *Registry) CreateAction(config ActionConfig) (Action, error) {
	builder, ok := r.actions[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, config.Type)
	}

	name := config.Name
	if name == "" {
		name = config.Type
	}

	return builder(r, name, config.Parameters)
}

// CreateGuard builds a guard from configuration.
func (r *Registry) CreateGuard(config GuardConfig) (Guard, error) {
	builder, ok := r.guards[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGuardType, config.Type)
	}

	return builder(r, config.Parameters)
}

// Parameter extraction helpers. YAML hands us map[string]any, so these narrow
// values with useful errors instead of panicking type assertions.

func stringParam(params map[string]any, key string) (string, error) {
	val, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing parameter %q", ErrInvalidActionConfig, key)
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q must be a string", ErrInvalidActionConfig, key)
	}

	return str, nil
}

func intParam(params map[string]any, key string, fallback int) (int, error) {
	val, ok := params[key]
	if !ok {
		return fallback, nil
	}

	i, ok := val.(int)
	if !ok {
		return 0, fmt.Errorf("%w: parameter %q must be an integer", ErrInvalidActionConfig, key)
	}

	return i, nil
}

func durationParam(params map[string]any, key string, fallback time.Duration) (time.Duration, error) {
	val, ok := params[key]
	if !ok {
		return fallback, nil
	}

	str, ok := val.(string)
	if !ok {
		return 0, fmt.Errorf("%w: parameter %q must be a duration string", ErrInvalidActionConfig, key)
	}

	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q: %w", ErrInvalidActionConfig, key, err)
	}

	return d, nil
}

func timeParam(params map[string]any, key string) (time.Time, error) {
	val, ok := params[key]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing parameter %q", ErrInvalidGuardConfig, key)
	}

	if t, ok := val.(time.Time); ok {
		return t, nil
	}

	str, ok := val.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: parameter %q must be an RFC3339 timestamp", ErrInvalidGuardConfig, key)
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parameter %q: %w", ErrInvalidGuardConfig, key, err)
	}

	return t, nil
}

// Built-in action builders.

func noopActionBuilder(_ *Registry, name string, _ map[string]any) (Action, error) {
	return NewNoopAction(name), nil
}

func setActionBuilder(_ *Registry, name string, params map[string]any) (Action, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}

	value, ok := params["value"]
	if !ok {
		return nil, fmt.Errorf("%w: missing parameter %q", ErrInvalidActionConfig, "value")
	}

	return NewSetAction(name, key, value), nil
}

func incrementActionBuilder(_ *Registry, name string, params map[string]any) (Action, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}

	delta, err := intParam(params, "delta", 1)
	if err != nil {
		return nil, err
	}

	return NewIncrementAction(name, key, delta), nil
}

func idleActionBuilder(reg *Registry, name string, params map[string]any) (Action, error) {
	minIdle, err := durationParam(params, "min", 0)
	if err != nil {
		return nil, err
	}

	maxIdle, err := durationParam(params, "max", minIdle)
	if err != nil {
		return nil, err
	}

	return NewIdleAction(name, minIdle, maxIdle, reg.rng), nil
}

func sequenceActionBuilder(reg *Registry, name string, params map[string]any) (Action, error) {
	items, ok := params["actions"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: sequence requires an %q list", ErrInvalidActionConfig, "actions")
	}

	actions := make([]Action, 0, len(items))

	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: sequence entry %d", ErrInvalidActionConfig, i)
		}

		actionType, _ := entry["type"].(string)
		actionName, _ := entry["name"].(string)
		actionParams, _ := entry["parameters"].(map[string]any)

		action, err := reg.CreateAction(ActionConfig{
			Type:       actionType,
			Name:       actionName,
			Parameters: actionParams,
		})
		if err != nil {
			return nil, fmt.Errorf("sequence entry %d: %w", i, err)
		}

		actions = append(actions, action)
	}

	return NewSequenceAction(name, actions...), nil
}

// Built-in guard builders.

func alwaysGuardBuilder(_ *Registry, _ map[string]any) (Guard, error) {
	return Always(), nil
}

func flagGuardBuilder(_ *Registry, params map[string]any) (Guard, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	return FlagSet(key), nil
}

func notFlagGuardBuilder(_ *Registry, params map[string]any) (Guard, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	return FlagUnset(key), nil
}

func counterAtLeastGuardBuilder(_ *Registry, params map[string]any) (Guard, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	threshold, err := intParam(params, "threshold", 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	return CounterAtLeast(key, threshold), nil
}

func counterBelowGuardBuilder(_ *Registry, params map[string]any) (Guard, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	threshold, err := intParam(params, "threshold", 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	return CounterBelow(key, threshold), nil
}

func expressionGuardBuilder(_ *Registry, params map[string]any) (Guard, error) {
	expr, err := stringParam(params, "expr")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardConfig, err)
	}

	return NewExpressionGuard(expr)
}

func beforeGuardBuilder(reg *Registry, params map[string]any) (Guard, error) {
	instant, err := timeParam(params, "time")
	if err != nil {
		return nil, err
	}

	return Before(reg.clock, instant), nil
}

func afterGuardBuilder(reg *Registry, params map[string]any) (Guard, error) {
	instant, err := timeParam(params, "time")
	if err != nil {
		return nil, err
	}

	return After(reg.clock, instant), nil
}
