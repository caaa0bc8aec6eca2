package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx := NewContext("a", "p")
	actorCtx.Set("on", true)
	actorCtx.Set("off", false)
	actorCtx.Set("text", "yes")

	assert.True(t, FlagSet("on").Evaluate(ctx, actorCtx))
	assert.False(t, FlagSet("off").Evaluate(ctx, actorCtx))
	assert.False(t, FlagSet("missing").Evaluate(ctx, actorCtx))
	assert.False(t, FlagSet("text").Evaluate(ctx, actorCtx), "non-boolean value is not a set flag")

	assert.False(t, FlagUnset("on").Evaluate(ctx, actorCtx))
	assert.True(t, FlagUnset("missing").Evaluate(ctx, actorCtx))
}

func TestCounterGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx := NewContext("a", "p")
	actorCtx.Set("n", 3)

	assert.True(t, CounterAtLeast("n", 3).Evaluate(ctx, actorCtx))
	assert.False(t, CounterAtLeast("n", 4).Evaluate(ctx, actorCtx))
	assert.True(t, CounterAtLeast("missing", 0).Evaluate(ctx, actorCtx), "absent counter reads as zero")

	assert.True(t, CounterBelow("n", 4).Evaluate(ctx, actorCtx))
	assert.False(t, CounterBelow("n", 3).Evaluate(ctx, actorCtx))
	assert.True(t, CounterBelow("missing", 1).Evaluate(ctx, actorCtx))
}

func TestTimeGuardsUseInjectedClock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx := NewContext("a", "p")

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(time.Hour)
	clock := NewFakeClock(start)

	before := Before(clock, deadline)
	after := After(clock, deadline)

	assert.True(t, before.Evaluate(ctx, actorCtx))
	assert.False(t, after.Evaluate(ctx, actorCtx))

	clock.Advance(time.Hour)

	assert.False(t, before.Evaluate(ctx, actorCtx), "the boundary instant is no longer before")
	assert.True(t, after.Evaluate(ctx, actorCtx))
}

func TestGuardCombinators(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx := NewContext("a", "p")
	actorCtx.Set("flag", true)

	assert.True(t, Always().Evaluate(ctx, actorCtx))
	assert.False(t, Not(Always()).Evaluate(ctx, actorCtx))

	assert.True(t, All(Always(), FlagSet("flag")).Evaluate(ctx, actorCtx))
	assert.False(t, All(Always(), FlagSet("missing")).Evaluate(ctx, actorCtx))
	assert.True(t, All().Evaluate(ctx, actorCtx), "empty conjunction holds")

	assert.True(t, Any(FlagSet("missing"), FlagSet("flag")).Evaluate(ctx, actorCtx))
	assert.False(t, Any(FlagSet("missing")).Evaluate(ctx, actorCtx))
	assert.False(t, Any().Evaluate(ctx, actorCtx), "empty disjunction fails")
}

func TestExpressionGuardValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr error
	}{
		{expr: "data.phase == 'attack'"},
		{expr: "data.phase != 'idle'"},
		{expr: "data.logged_in"},
		{expr: "!data.logged_in"},
		{expr: "phase == 'attack'", wantErr: ErrInvalidExpression},
		{expr: "data.a == data.b == data.c", wantErr: ErrInvalidExpression},
		{expr: "1 + 1", wantErr: ErrUnsupportedExpression},
		{expr: "logged_in", wantErr: ErrUnsupportedExpression},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()

			_, err := NewExpressionGuard(tc.expr)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestExpressionGuardEvaluation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx := NewContext("a", "p")
	actorCtx.Set("phase", "attack")
	actorCtx.Set("count", 3)
	actorCtx.Set("logged_in", true)

	tests := []struct {
		expr string
		want bool
	}{
		{"data.phase == 'attack'", true},
		{"data.phase == 'idle'", false},
		{"data.phase != 'idle'", true},
		{"data.count == '3'", true},
		{"data.logged_in", true},
		{"!data.logged_in", false},
		// Absent keys: equality is false, inequality is true, a bare boolean
		// is false and its negation is true.
		{"data.missing == 'x'", false},
		{"data.missing != 'x'", true},
		{"data.missing", false},
		{"!data.missing", true},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()

			guard, err := NewExpressionGuard(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, guard.Evaluate(ctx, actorCtx))
		})
	}
}
