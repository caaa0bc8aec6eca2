package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelabs/simrange/statemachine"
	"github.com/rangelabs/simrange/statemachine/smtest"
)

var errBoom = errors.New("boom")

// visitsMachine is the canonical two-step machine: A -> B increments
// "visits", B -> C is guarded on visits >= 1, C is terminal.
func visitsMachine(t *testing.T) *statemachine.Definition {
	t.Helper()

	def, err := statemachine.NewBuilder("visits").
		WithInitialState("A").
		AddState("A", statemachine.NewTransition("to_b", "B",
			statemachine.WithAction(statemachine.NewIncrementAction("count_visit", "visits", 1)),
		)).
		AddState("B", statemachine.NewTransition("to_c", "C",
			statemachine.WithGuard(statemachine.CounterAtLeast("visits", 1)),
		)).
		AddTerminalState("C").
		Build()
	require.NoError(t, err)

	return def
}

func newScheduler(
	t *testing.T,
	def *statemachine.Definition,
	actorCtx *statemachine.Context,
	opts ...statemachine.SchedulerOption,
) *statemachine.Scheduler {
	t.Helper()

	sched, err := statemachine.NewScheduler(def, actorCtx, opts...)
	require.NoError(t, err)

	return sched
}

func TestSchedulerRunsToTerminal(t *testing.T) {
	t.Parallel()

	def := visitsMachine(t)
	actorCtx := statemachine.NewContext("actor-1", "")
	sched := newScheduler(t, def, actorCtx, statemachine.WithSeed(1))

	ctx := context.Background()

	first, err := sched.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", first.From)
	assert.Equal(t, "B", first.To)
	assert.False(t, first.Terminal)

	visits, _ := sched.Context().GetInt("visits")
	assert.Equal(t, 1, visits)

	second, err := sched.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C", second.To)
	assert.True(t, second.Terminal)
	assert.True(t, sched.Done())
	assert.Equal(t, 2, sched.Steps())

	// No further steps execute after the terminal state.
	_, err = sched.Step(ctx)
	require.ErrorIs(t, err, statemachine.ErrTerminalState)
	assert.Equal(t, 2, sched.Steps())
}

func TestSchedulerResumesFromPersistedContext(t *testing.T) {
	t.Parallel()

	def := visitsMachine(t)

	// A context snapshot taken mid machine, with the data a prior run
	// would have committed before stopping.
	actorCtx := statemachine.NewContext("actor-1", "")
	actorCtx.CurrentState = "B"
	actorCtx.Set("visits", 1)

	sched := newScheduler(t, def, actorCtx, statemachine.WithSeed(1))
	require.Equal(t, "B", sched.CurrentState())

	res, err := sched.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "B", res.From)
	assert.Equal(t, "C", res.To)
	assert.True(t, sched.Done())
}

func TestSchedulerRejectsUnknownResumeState(t *testing.T) {
	t.Parallel()

	def := visitsMachine(t)

	actorCtx := statemachine.NewContext("actor-1", "")
	actorCtx.CurrentState = "archived"

	sched, err := statemachine.NewScheduler(def, actorCtx)
	require.Nil(t, sched)
	require.ErrorIs(t, err, statemachine.ErrResumeStateNotFound)

	var cfgErr *statemachine.ConfigurationError

	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "archived", cfgErr.State)
}

func TestSchedulerDeterministicUnderFixedSeed(t *testing.T) {
	t.Parallel()

	build := func() *statemachine.Definition {
		def, err := statemachine.NewBuilder("branchy").
			WithInitialState("loop").
			AddState("loop",
				statemachine.NewTransition("left", "loop",
					statemachine.WithWeight(1),
					statemachine.WithGuard(statemachine.CounterBelow("n", 50)),
					statemachine.WithAction(statemachine.NewIncrementAction("bump", "n", 1)),
				),
				statemachine.NewTransition("right", "loop",
					statemachine.WithWeight(3),
					statemachine.WithGuard(statemachine.CounterBelow("n", 50)),
					statemachine.WithAction(statemachine.NewIncrementAction("bump", "n", 1)),
				),
				statemachine.NewTransition("exit", "done",
					statemachine.WithGuard(statemachine.CounterAtLeast("n", 50)),
				),
			).
			AddTerminalState("done").
			Build()
		require.NoError(t, err)

		return def
	}

	run := func(seed int64) []string {
		obs := smtest.NewRecordingObserver()
		sched := newScheduler(t, build(), statemachine.NewContext("a", ""),
			statemachine.WithSeed(seed),
			statemachine.WithObserver(obs),
			statemachine.WithLogger(statemachine.NopLogger{}),
		)

		for !sched.Done() {
			_, err := sched.Step(context.Background())
			require.NoError(t, err)
		}

		labels := make([]string, 0, len(obs.Committed()))
		for _, ev := range obs.Committed() {
			labels = append(labels, ev.Transition)
		}

		return labels
	}

	assert.Equal(t, run(42), run(42), "same seed must replay the same step sequence")
	assert.NotEqual(t, run(42), run(43), "different seeds should diverge for a 51-step run")
}

func TestSoleEnabledTransitionTakenRegardlessOfWeight(t *testing.T) {
	t.Parallel()

	def, err := statemachine.NewBuilder("forced").
		WithInitialState("start").
		AddState("start",
			statemachine.NewTransition("blocked", "done",
				statemachine.WithWeight(100),
				statemachine.WithGuard(statemachine.FlagSet("never")),
			),
			statemachine.NewTransition("forced", "done",
				statemachine.WithWeight(0),
			),
		).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	sched := newScheduler(t, def, statemachine.NewContext("a", ""), statemachine.WithSeed(7))

	res, err := sched.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "forced", res.Transition)
}

func TestWeightedSelectionConvergesToDistribution(t *testing.T) {
	t.Parallel()

	const steps = 4000

	def, err := statemachine.NewBuilder("weights").
		WithInitialState("pick").
		AddState("pick",
			statemachine.NewTransition("a", "pick",
				statemachine.WithWeight(1),
				statemachine.WithGuard(statemachine.CounterBelow("n", steps)),
				statemachine.WithAction(statemachine.NewIncrementAction("bump", "n", 1)),
			),
			statemachine.NewTransition("b", "pick",
				statemachine.WithWeight(3),
				statemachine.WithGuard(statemachine.CounterBelow("n", steps)),
				statemachine.WithAction(statemachine.NewIncrementAction("bump", "n", 1)),
			),
			statemachine.NewTransition("exit", "done",
				statemachine.WithGuard(statemachine.CounterAtLeast("n", steps)),
			),
		).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	counts := map[string]int{}
	obs := statemachine.ObserverFunc(func(_ context.Context, ev statemachine.StepEvent) {
		if ev.Outcome == statemachine.OutcomeSuccess {
			counts[ev.Transition]++
		}
	})

	sched := newScheduler(t, def, statemachine.NewContext("a", ""),
		statemachine.WithSeed(99),
		statemachine.WithObserver(obs),
		statemachine.WithLogger(statemachine.NopLogger{}),
	)

	for !sched.Done() {
		_, err := sched.Step(context.Background())
		require.NoError(t, err)
	}

	frequencyA := float64(counts["a"]) / float64(steps)
	assert.InDelta(t, 0.25, frequencyA, 0.03, "weight 1 of 4 should win about a quarter of picks")
}

func TestCompositeGuardDispatchIsDeterministic(t *testing.T) {
	t.Parallel()

	// D -> E requires the flag, D -> F requires its absence. With the flag
	// unset only D -> F is enabled and must be picked every time.
	def, err := statemachine.NewBuilder("dispatch").
		WithInitialState("D").
		AddCompositeState("D",
			statemachine.NewTransition("to_e", "E", statemachine.WithGuard(statemachine.FlagSet("flag"))),
			statemachine.NewTransition("to_f", "F", statemachine.WithGuard(statemachine.FlagUnset("flag"))),
		).
		AddTerminalState("E").
		AddTerminalState("F").
		Build()
	require.NoError(t, err)

	for seed := int64(0); seed < 10; seed++ {
		sched := newScheduler(t, def, statemachine.NewContext("a", ""), statemachine.WithSeed(seed))

		res, err := sched.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "F", res.To)
	}
}

func TestActionFailureLeavesContextUntouched(t *testing.T) {
	t.Parallel()

	failing := smtest.NewScriptedAction("mutate_then_fail", errBoom).
		OnCall(func(actorCtx *statemachine.Context) {
			actorCtx.Set("poison", true)
		})

	def, err := statemachine.NewBuilder("failing").
		WithInitialState("start").
		AddState("start", statemachine.NewTransition("go", "done", statemachine.WithAction(failing))).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	actorCtx := statemachine.NewContext("a", "")
	actorCtx.Set("keep", "value")

	sched := newScheduler(t, def, actorCtx, statemachine.WithSeed(1))

	_, err = sched.Step(context.Background())
	require.ErrorIs(t, err, statemachine.ErrActionFailed)

	_, poisoned := sched.Context().Get("poison")
	assert.False(t, poisoned, "failed action must not commit context mutations")

	kept, _ := sched.Context().GetString("keep")
	assert.Equal(t, "value", kept)
	assert.Equal(t, "start", sched.CurrentState())
	assert.Equal(t, 0, sched.Steps())
}

func TestRetryableActionIsRetriedPerPolicy(t *testing.T) {
	t.Parallel()

	flaky := smtest.NewScriptedAction("flaky", errBoom, errBoom, nil).MarkRetryable()

	def, err := statemachine.NewBuilder("retrying").
		WithInitialState("start").
		AddState("start", statemachine.NewTransition("go", "done", statemachine.WithAction(flaky))).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	sched := newScheduler(t, def, statemachine.NewContext("a", ""),
		statemachine.WithFailurePolicy(statemachine.FailurePolicy{Attempts: 3, Backoff: 0, Factor: 1}),
	)

	res, err := sched.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", res.To)
	assert.Equal(t, 3, flaky.Calls())
}

func TestNonRetryableActionIsNotRetried(t *testing.T) {
	t.Parallel()

	failing := smtest.NewScriptedAction("single_shot", errBoom)

	def, err := statemachine.NewBuilder("single").
		WithInitialState("start").
		AddState("start", statemachine.NewTransition("go", "done", statemachine.WithAction(failing))).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	sched := newScheduler(t, def, statemachine.NewContext("a", ""),
		statemachine.WithFailurePolicy(statemachine.FailurePolicy{Attempts: 5, Backoff: 0, Factor: 1}),
	)

	_, err = sched.Step(context.Background())
	require.ErrorIs(t, err, statemachine.ErrActionFailed)
	assert.Equal(t, 1, failing.Calls())
}

func TestReselectionExcludesFailedTransition(t *testing.T) {
	t.Parallel()

	failing := smtest.NewScriptedAction("always_fails", errBoom)
	healthy := smtest.NewScriptedAction("healthy")

	def, err := statemachine.NewBuilder("reselect").
		WithInitialState("start").
		AddState("start",
			statemachine.NewTransition("broken", "done",
				statemachine.WithWeight(1), statemachine.WithAction(failing)),
			statemachine.NewTransition("working", "done",
				statemachine.WithWeight(1), statemachine.WithAction(healthy)),
		).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	// Run until the broken transition gets sampled first at least once; with
	// reselection enabled the step must still commit via the healthy edge.
	for seed := int64(0); seed < 20; seed++ {
		sched := newScheduler(t, def, statemachine.NewContext("a", ""),
			statemachine.WithSeed(seed),
			statemachine.WithFailurePolicy(statemachine.FailurePolicy{
				Attempts: 1,
				Reselect: true,
			}),
		)

		res, err := sched.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "working", res.Transition)
	}

	assert.Positive(t, failing.Calls(), "the broken edge should have been sampled at least once")
}

func TestNoEnabledTransitionIsFatal(t *testing.T) {
	t.Parallel()

	def, err := statemachine.NewBuilder("deadend").
		WithInitialState("start").
		AddState("start",
			statemachine.NewTransition("gated", "done",
				statemachine.WithGuard(statemachine.FlagSet("never")),
			),
		).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	sched := newScheduler(t, def, statemachine.NewContext("a", ""))

	_, err = sched.Step(context.Background())
	require.ErrorIs(t, err, statemachine.ErrNoEnabledTransition)

	var stateErr *statemachine.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "start", stateErr.State)
}

func TestAllZeroWeightsAmongCompetitorsIsFatal(t *testing.T) {
	t.Parallel()

	def, err := statemachine.NewBuilder("zeroed").
		WithInitialState("start").
		AddState("start",
			statemachine.NewTransition("a", "done", statemachine.WithWeight(0)),
			statemachine.NewTransition("b", "done", statemachine.WithWeight(0)),
		).
		AddTerminalState("done").
		Build()
	require.NoError(t, err)

	sched := newScheduler(t, def, statemachine.NewContext("a", ""))

	_, err = sched.Step(context.Background())
	require.ErrorIs(t, err, statemachine.ErrNoEnabledTransition)
}

func TestStepObservesContextCancellation(t *testing.T) {
	t.Parallel()

	def := visitsMachine(t)
	sched := newScheduler(t, def, statemachine.NewContext("a", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sched.Step(ctx)
	require.ErrorIs(t, err, statemachine.ErrRunCancelled)
	assert.Equal(t, 0, sched.Steps())
}

func TestSchedulerLogsThroughSlog(t *testing.T) {
	t.Parallel()

	def := visitsMachine(t)
	sched := newScheduler(t, def, statemachine.NewContext("actor-1", ""),
		statemachine.WithLogger(statemachine.NewSlogLogger(slogt.New(t))),
	)

	for !sched.Done() {
		_, err := sched.Step(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, "to_c", sched.LastTransition())
}

func TestObserverReceivesStepEvents(t *testing.T) {
	t.Parallel()

	obs := smtest.NewRecordingObserver()
	def := visitsMachine(t)
	sched := newScheduler(t, def, statemachine.NewContext("actor-9", ""),
		statemachine.WithObserver(obs),
	)

	for !sched.Done() {
		_, err := sched.Step(context.Background())
		require.NoError(t, err)
	}

	events := obs.Committed()
	require.Len(t, events, 2)
	assert.Equal(t, "actor-9", events[0].ActorID)
	assert.Equal(t, "A", events[0].From)
	assert.Equal(t, "to_b", events[0].Transition)
	assert.Equal(t, "B", events[0].To)
	assert.Equal(t, "to_c", events[1].Transition)
}
