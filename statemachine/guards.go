package statemachine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const expectedExpressionParts = 2

// Always returns a guard that always holds. It is the default guard on every
// transition.
func Always() Guard {
	return GuardFunc(func(_ context.Context, _ *Context) bool {
		return true
	})
}

// FlagSet holds when the context carries key as boolean true. An absent or
// non-boolean value counts as false.
func FlagSet(key string) Guard {
	return GuardFunc(func(_ context.Context, actorCtx *Context) bool {
		val, _ := actorCtx.GetBool(key)

		return val
	})
}

// FlagUnset is the negation of FlagSet.
func FlagUnset(key string) Guard {
	return GuardFunc(func(_ context.Context, actorCtx *Context) bool {
		val, _ := actorCtx.GetBool(key)

		return !val
	})
}

// CounterAtLeast holds when an integer counter in the context is >= threshold.
// An absent counter counts as zero.
func CounterAtLeast(key string, threshold int) Guard {
	return GuardFunc(func(_ context.Context, actorCtx *Context) bool {
		val, _ := actorCtx.GetInt(key)

		return val >= threshold
	})
}

// CounterBelow holds when an integer counter in the context is < threshold.
func CounterBelow(key string, threshold int) Guard {
	return GuardFunc(func(_ context.Context, actorCtx *Context) bool {
		val, _ := actorCtx.GetInt(key)

		return val < threshold
	})
}

// Before holds while the injected clock reads earlier than the given instant.
// Time-windowed conditions in machine definitions are closures over the shared
// time source, never the wall clock directly.
func Before(clock Clock, instant time.Time) Guard {
	return GuardFunc(func(_ context.Context, _ *Context) bool {
		return clock.Now().Before(instant)
	})
}

// After holds once the injected clock reads at or past the given instant.
func After(clock Clock, instant time.Time) Guard {
	return GuardFunc(func(_ context.Context, _ *Context) bool {
		return !clock.Now().Before(instant)
	})
}

// Not negates a guard.
func Not(guard Guard) Guard {
	return GuardFunc(func(ctx context.Context, actorCtx *Context) bool {
		return !guard.Evaluate(ctx, actorCtx)
	})
}

// All holds when every given guard holds.
func All(guards ...Guard) Guard {
	return GuardFunc(func(ctx context.Context, actorCtx *Context) bool {
		for _, g := range guards {
			if !g.Evaluate(ctx, actorCtx) {
				return false
			}
		}

		return true
	})
}

// Any holds when at least one given guard holds.
func Any(guards ...Guard) Guard {
	return GuardFunc(func(ctx context.Context, actorCtx *Context) bool {
		for _, g := range guards {
			if g.Evaluate(ctx, actorCtx) {
				return true
			}
		}

		return false
	})
}

// ExpressionGuard evaluates a small expression language against context data:
// equality ("data.key == 'value'"), inequality ("data.key != 'value'"), bare
// boolean ("data.key") and negated boolean ("!data.key") checks. Malformed
// expressions are rejected at construction, never at run time.
type ExpressionGuard struct {
	expression string
}

// NewExpressionGuard parses and validates an expression.
func NewExpressionGuard(expr string) (*ExpressionGuard, error) {
	expr = strings.TrimSpace(expr)

	err := validateExpression(expr)
	if err != nil {
		return nil, err
	}

	return &ExpressionGuard{expression: expr}, nil
}

func (g *ExpressionGuard) Evaluate(_ context.Context, actorCtx *Context) bool {
	return evaluateExpression(g.expression, actorCtx)
}

// validateExpression rejects expression forms the evaluator cannot decide.
func validateExpression(expr string) error {
	if strings.Contains(expr, "==") || strings.Contains(expr, "!=") {
		op := "=="
		if strings.Contains(expr, "!=") {
			op = "!="
		}

		parts := strings.Split(expr, op)
		if len(parts) != expectedExpressionParts {
			return fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
		}

		left := strings.TrimSpace(parts[0])
		if !strings.HasPrefix(left, "data.") {
			return fmt.Errorf("%w: left side must reference data.<key>: %s", ErrInvalidExpression, expr)
		}

		return nil
	}

	if strings.HasPrefix(expr, "data.") || strings.HasPrefix(expr, "!data.") {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedExpression, expr)
}

// evaluateExpression decides a validated expression against the context.
// Absent keys evaluate the way the forms read: equality is false, inequality
// is true, a bare boolean is false, a negated boolean is true.
func evaluateExpression(expr string, actorCtx *Context) bool {
	if strings.Contains(expr, "==") {
		parts := strings.Split(expr, "==")
		key := strings.TrimPrefix(strings.TrimSpace(parts[0]), "data.")
		want := strings.Trim(strings.TrimSpace(parts[1]), "'\"")

		value, exists := actorCtx.Get(key)
		if !exists {
			return false
		}

		return fmt.Sprintf("%v", value) == want
	}

	if strings.Contains(expr, "!=") {
		parts := strings.Split(expr, "!=")
		key := strings.TrimPrefix(strings.TrimSpace(parts[0]), "data.")
		want := strings.Trim(strings.TrimSpace(parts[1]), "'\"")

		value, exists := actorCtx.Get(key)
		if !exists {
			return true
		}

		return fmt.Sprintf("%v", value) != want
	}

	if after, ok := strings.CutPrefix(expr, "!data."); ok {
		value, _ := actorCtx.GetBool(after)

		return !value
	}

	key := strings.TrimPrefix(expr, "data.")
	value, _ := actorCtx.GetBool(key)

	return value
}
