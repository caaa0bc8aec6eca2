package runner

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rangelabs/simrange/statemachine"
)

const defaultFleetConcurrency = 32

// Fleet runs many independent actors over one shared read-only machine
// definition. Each actor gets its own context, scheduler, and random source
// seeded as baseSeed+index, so a fleet with a fixed base seed is fully
// reproducible actor by actor.
type Fleet struct {
	def         *statemachine.Definition
	count       int
	baseSeed    int64
	concurrency int
	clock       statemachine.Clock
	observer    statemachine.Observer
	logger      statemachine.Logger
	policy      *statemachine.FailurePolicy
	limiter     *rate.Limiter
	maxErrors   int
	setup       func(index int, actorCtx *statemachine.Context)
}

// FleetOption configures a fleet.
type FleetOption func(*Fleet)

// WithBaseSeed fixes the seed of actor 0; actor i runs with baseSeed+i.
func WithBaseSeed(seed int64) FleetOption {
	return func(f *Fleet) {
		f.baseSeed = seed
	}
}

// WithConcurrency caps how many actors run at once.
func WithConcurrency(n int) FleetOption {
	return func(f *Fleet) {
		f.concurrency = n
	}
}

// WithFleetClock injects a shared read-only time source into every scheduler.
func WithFleetClock(clock statemachine.Clock) FleetOption {
	return func(f *Fleet) {
		f.clock = clock
	}
}

// WithFleetObserver registers one observer receiving every actor's step
// events. The observer must be safe for concurrent use.
func WithFleetObserver(observer statemachine.Observer) FleetOption {
	return func(f *Fleet) {
		f.observer = observer
	}
}

// WithFleetLogger sets the execution logger for every scheduler.
func WithFleetLogger(logger statemachine.Logger) FleetOption {
	return func(f *Fleet) {
		f.logger = logger
	}
}

// WithFleetFailurePolicy sets the action failure policy for every scheduler.
func WithFleetFailurePolicy(policy statemachine.FailurePolicy) FleetOption {
	return func(f *Fleet) {
		f.policy = &policy
	}
}

// WithFleetLimiter paces steps across the whole fleet with one shared
// limiter.
func WithFleetLimiter(limiter *rate.Limiter) FleetOption {
	return func(f *Fleet) {
		f.limiter = limiter
	}
}

// WithFleetMaxErrors sets the per-actor tolerated failure budget.
func WithFleetMaxErrors(n int) FleetOption {
	return func(f *Fleet) {
		f.maxErrors = n
	}
}

// WithContextSetup seeds each actor's context before its run starts (initial
// flags, per-actor credentials, and the like).
func WithContextSetup(setup func(index int, actorCtx *statemachine.Context)) FleetOption {
	return func(f *Fleet) {
		f.setup = setup
	}
}

// NewFleet creates a fleet of count actors over the given definition.
func NewFleet(def *statemachine.Definition, count int, opts ...FleetOption) *Fleet {
	f := &Fleet{
		def:         def,
		count:       count,
		concurrency: defaultFleetConcurrency,
		clock:       statemachine.RealClock{},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// NewFleetFromConfig builds a definition from a loaded machine config and
// creates a fleet of count actors over it. The config's seed becomes the
// fleet's base seed, so two fleets built from the same config walk identical
// paths. A WithBaseSeed option still overrides the config.
func NewFleetFromConfig(
	cfg *statemachine.Config, reg *statemachine.Registry, count int, opts ...FleetOption,
) (*Fleet, error) {
	def, err := statemachine.BuildDefinition(cfg, reg)
	if err != nil {
		return nil, err
	}

	opts = append([]FleetOption{WithBaseSeed(cfg.Seed)}, opts...)

	return NewFleet(def, count, opts...), nil
}

// Run starts every actor on a bounded worker pool and blocks until all runs
// finish. Results are indexed by actor; result i belongs to seed baseSeed+i.
// Cancel the context to stop the whole fleet cooperatively.
func (f *Fleet) Run(ctx context.Context) []Result {
	results := make([]Result, f.count)
	pool := pond.NewPool(f.concurrency)

	for i := range f.count {
		pool.Submit(func() {
			results[i] = f.runActor(ctx, i)
		})
	}

	pool.StopAndWait()

	return results
}

// runActor builds and runs one actor.
func (f *Fleet) runActor(ctx context.Context, index int) Result {
	actorCtx := statemachine.NewContext(uuid.NewString(), f.def.Name())

	if f.setup != nil {
		f.setup(index, actorCtx)
	}

	schedOpts := []statemachine.SchedulerOption{
		statemachine.WithSeed(f.baseSeed + int64(index)),
		statemachine.WithClock(f.clock),
	}

	if f.observer != nil {
		schedOpts = append(schedOpts, statemachine.WithObserver(f.observer))
	}

	if f.logger != nil {
		schedOpts = append(schedOpts, statemachine.WithLogger(f.logger))
	}

	if f.policy != nil {
		schedOpts = append(schedOpts, statemachine.WithFailurePolicy(*f.policy))
	}

	scheduler, err := statemachine.NewScheduler(f.def, actorCtx, schedOpts...)
	if err != nil {
		// Only a setup hook planting a bogus resume state can get here.
		return Result{
			ActorID: actorCtx.ActorID,
			Profile: actorCtx.Profile,
			Status:  StatusFailed,
			Err:     err,
		}
	}

	runnerOpts := []Option{WithMaxErrors(f.maxErrors)}
	if f.limiter != nil {
		runnerOpts = append(runnerOpts, WithLimiter(f.limiter))
	}

	return New(scheduler, runnerOpts...).Run(ctx)
}
