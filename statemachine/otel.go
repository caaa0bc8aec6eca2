package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "simrange/statemachine"

// StartRunSpan creates the root span for one actor's run. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func StartRunSpan(ctx context.Context, actorCtx *Context) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "actor.run")
	addContextAttributes(span, actorCtx)

	return ctx, span
}

// startStepSpan creates a child span for one scheduler step. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startStepSpan(ctx context.Context, actorCtx *Context, state string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "step."+state)
	addContextAttributes(span, actorCtx)
	span.SetAttributes(attribute.String("state", state))

	return ctx, span
}

// startActionSpan creates a child span for one action attempt. The caller is
// responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startActionSpan(
	ctx context.Context, actorCtx *Context, action, state string,
) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "action."+action)
	addContextAttributes(span, actorCtx)
	span.SetAttributes(
		attribute.String("action", action),
		attribute.String("state", state),
	)

	return ctx, span
}

// addContextAttributes adds actor identity to a span.
func addContextAttributes(span trace.Span, actorCtx *Context) {
	span.SetAttributes(
		attribute.String("actor_id", actorCtx.ActorID),
		attribute.String("profile", actorCtx.Profile),
		attribute.String("current_state", actorCtx.CurrentState),
	)
}
