package webbrowser

import (
	"context"
	"time"

	"github.com/rangelabs/simrange/statemachine"
)

// ProfileName is the name this factory registers under.
const ProfileName = "web_browser"

// Context keys maintained by this profile's actions and read by its guards.
const (
	// KeyWebsiteCount counts websites visited on the current day.
	KeyWebsiteCount = "website_count"
	// KeyWebsiteDepth counts link hops within the current website.
	KeyWebsiteDepth = "website_depth"
	// KeyAvailableLinks is the number of followable links on the current page,
	// maintained by the driver.
	KeyAvailableLinks = "available_links"
	// KeyVisitDay is the day the website counter belongs to; the counter
	// resets when the clock rolls past it.
	KeyVisitDay = "visit_day"
)

// State names.
const (
	StateSelectingActivity = "selecting_activity"
	StateOnWebsite         = "on_website"
	StateLeavingWebsite    = "leaving_website"
	StateDone              = "done"
)

// Driver performs the actual browser effects. Implementations own navigation
// and the DOM; after loading a page they record the number of followable
// links under KeyAvailableLinks.
type Driver interface {
	VisitWebsite(ctx context.Context, actorCtx *statemachine.Context) error
	OpenLink(ctx context.Context, actorCtx *statemachine.Context) error
	LeaveWebsite(ctx context.Context, actorCtx *statemachine.Context) error
	BackgroundWebsite(ctx context.Context, actorCtx *statemachine.Context) error
	CloseWebsite(ctx context.Context, actorCtx *statemachine.Context) error
}

// Factory builds web surfer machine definitions.
type Factory struct {
	driver Driver
	clock  statemachine.Clock
	rng    statemachine.Rand
}

// FactoryOption configures a factory.
type FactoryOption func(*Factory)

// WithFactoryClock injects the time source for end-of-day guards and pauses.
func WithFactoryClock(clock statemachine.Clock) FactoryOption {
	return func(f *Factory) {
		f.clock = clock
	}
}

// WithFactoryRand injects the random source used for pause sampling.
func WithFactoryRand(rng statemachine.Rand) FactoryOption {
	return func(f *Factory) {
		f.rng = rng
	}
}

// NewFactory creates a factory around a browser driver.
func NewFactory(driver Driver, opts ...FactoryOption) *Factory {
	f := &Factory{
		driver: driver,
		clock:  statemachine.RealClock{},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Name implements runner.Factory.
func (f *Factory) Name() string {
	return ProfileName
}

// Build implements runner.Factory: parse the YAML config and assemble the
// machine.
func (f *Factory) Build(raw []byte) (*statemachine.Definition, error) {
	config, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}

	return f.BuildFromConfig(config)
}

// BuildFromConfig assembles the machine for an already-parsed config.
func (f *Factory) BuildFromConfig(config Config) (*statemachine.Definition, error) {
	withinSchedule := f.withinSchedule(config.EndTime)
	afterSchedule := statemachine.Not(withinSchedule)

	canVisit := statemachine.All(
		withinSchedule,
		statemachine.CounterBelow(KeyWebsiteCount, config.User.MaxWebsitesDay),
	)

	canFollowLink := statemachine.All(
		statemachine.GuardFunc(func(_ context.Context, actorCtx *statemachine.Context) bool {
			links, _ := actorCtx.GetInt(KeyAvailableLinks)

			return links > 0
		}),
		statemachine.CounterBelow(KeyWebsiteDepth, config.User.MaxDepth),
	)

	selecting := statemachine.NewState(StateSelectingActivity,
		statemachine.NewTransition("leave_for_day", StateDone,
			statemachine.WithWeight(0),
			statemachine.WithGuard(afterSchedule),
			statemachine.WithAction(f.action("leave_for_day", f.driver.CloseWebsite)),
		),
		statemachine.NewTransition("visit_website", StateOnWebsite,
			statemachine.WithWeight(config.States.SelectingActivity.VisitWebsite),
			statemachine.WithGuard(canVisit),
			statemachine.WithAction(statemachine.NewSequenceAction("visit_website",
				f.rolloverAction(),
				f.action("open_website", f.visitAndCount),
				f.pause("settle_on_site", config.Idle.Medium),
			)),
		),
		statemachine.NewTransition("idle", StateSelectingActivity,
			statemachine.WithWeight(config.States.SelectingActivity.Idle),
			statemachine.WithGuard(withinSchedule),
			statemachine.WithAction(statemachine.NewSequenceAction("idle",
				f.rolloverAction(),
				f.pause("idle_pause", config.Idle.Big),
			)),
		),
	)

	onWebsite := statemachine.NewState(StateOnWebsite,
		statemachine.NewTransition("visit_link", StateOnWebsite,
			statemachine.WithWeight(config.States.OnWebsite.VisitLink),
			statemachine.WithGuard(canFollowLink),
			statemachine.WithAction(statemachine.NewSequenceAction("visit_link",
				f.action("open_link", f.openLinkAndDescend),
				f.pause("settle_on_page", config.Idle.Medium),
			)),
		),
		statemachine.NewTransition("leave_website", StateLeavingWebsite,
			statemachine.WithWeight(config.States.OnWebsite.LeaveWebsite),
			statemachine.WithAction(f.action("leave_website", f.driver.LeaveWebsite)),
		),
	)

	leaving := statemachine.NewCompositeState(StateLeavingWebsite,
		statemachine.NewTransition("background_website", StateSelectingActivity,
			statemachine.WithWeight(config.States.LeavingWebsite.Background),
			statemachine.WithAction(f.action("background_website", f.driver.BackgroundWebsite)),
		),
		statemachine.NewTransition("close_website", StateSelectingActivity,
			statemachine.WithWeight(config.States.LeavingWebsite.Close),
			statemachine.WithAction(f.action("close_website", f.closeAndReset)),
		),
	)

	return statemachine.NewDefinition(ProfileName, StateSelectingActivity,
		selecting, onWebsite, leaving, statemachine.NewTerminalState(StateDone))
}

// withinSchedule holds until the configured end time. A zero end time means
// the actor never leaves on its own.
func (f *Factory) withinSchedule(endTime time.Time) statemachine.Guard {
	if endTime.IsZero() {
		return statemachine.Always()
	}

	return statemachine.Before(f.clock, endTime)
}

// action wraps a driver call as a named engine action.
func (f *Factory) action(
	name string, fn func(ctx context.Context, actorCtx *statemachine.Context) error,
) statemachine.Action {
	return statemachine.NewFuncAction(name, fn)
}

// pause samples a bounded idle inside a step.
func (f *Factory) pause(name string, bounds DurationRange) statemachine.Action {
	return statemachine.NewIdleAction(name, bounds.Min.Std(), bounds.Max.Std(), f.rng)
}

// rolloverAction resets the daily website counter when the clock crosses a
// day boundary.
func (f *Factory) rolloverAction() statemachine.Action {
	return statemachine.NewFuncAction("daily_rollover",
		func(_ context.Context, actorCtx *statemachine.Context) error {
			day := f.clock.Now().Format(time.DateOnly)

			stored, _ := actorCtx.GetString(KeyVisitDay)
			if stored != day {
				actorCtx.Set(KeyVisitDay, day)
				actorCtx.Set(KeyWebsiteCount, 0)
			}

			return nil
		})
}

// visitAndCount opens a new website and starts a fresh visit: the daily
// counter goes up, the link depth resets.
func (f *Factory) visitAndCount(ctx context.Context, actorCtx *statemachine.Context) error {
	err := f.driver.VisitWebsite(ctx, actorCtx)
	if err != nil {
		return err
	}

	actorCtx.Increment(KeyWebsiteCount, 1)
	actorCtx.Set(KeyWebsiteDepth, 0)

	return nil
}

// openLinkAndDescend follows a link on the current page, one level deeper.
func (f *Factory) openLinkAndDescend(ctx context.Context, actorCtx *statemachine.Context) error {
	err := f.driver.OpenLink(ctx, actorCtx)
	if err != nil {
		return err
	}

	actorCtx.Increment(KeyWebsiteDepth, 1)

	return nil
}

// closeAndReset closes the website and clears per-site bookkeeping.
func (f *Factory) closeAndReset(ctx context.Context, actorCtx *statemachine.Context) error {
	err := f.driver.CloseWebsite(ctx, actorCtx)
	if err != nil {
		return err
	}

	actorCtx.Set(KeyWebsiteDepth, 0)
	actorCtx.Set(KeyAvailableLinks, 0)

	return nil
}
