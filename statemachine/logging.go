package statemachine

import (
	"context"
	"log/slog"
	"time"
)

// Logger provides logging hooks for scheduler execution.
type Logger interface {
	StateEntered(ctx context.Context, state string, kind Kind)
	TransitionExecuted(ctx context.Context, from, transition, to string)
	ActionStarted(ctx context.Context, action string)
	ActionCompleted(ctx context.Context, action string, duration time.Duration, err error)
}

// DefaultLogger implements Logger using slog. Composite state entries log at
// debug level so immediate re-dispatch states don't flood the step log.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger backed by slog.Default.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{logger: slog.Default()}
}

// NewSlogLogger creates a logger backed by the given slog logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: logger}
}

func (l *DefaultLogger) StateEntered(ctx context.Context, state string, kind Kind) {
	level := slog.LevelInfo
	if kind == KindComposite {
		level = slog.LevelDebug
	}

	l.logger.Log(ctx, level, "State entered",
		"state", state,
		"kind", kind.String(),
	)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, from, transition, to string) {
	l.logger.InfoContext(ctx, "Transition executed",
		"from", from,
		"transition", transition,
		"to", to,
	)
}

func (l *DefaultLogger) ActionStarted(ctx context.Context, action string) {
	l.logger.DebugContext(ctx, "Action started",
		"action", action,
	)
}

func (l *DefaultLogger) ActionCompleted(ctx context.Context, action string, duration time.Duration, err error) {
	if err != nil {
		l.logger.ErrorContext(ctx, "Action completed with error",
			"action", action,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)

		return
	}

	l.logger.DebugContext(ctx, "Action completed",
		"action", action,
		"duration_ms", duration.Milliseconds(),
	)
}

// NopLogger discards all execution logs.
type NopLogger struct{}

func (NopLogger) StateEntered(context.Context, string, Kind)                    {}
func (NopLogger) TransitionExecuted(context.Context, string, string, string)    {}
func (NopLogger) ActionStarted(context.Context, string)                         {}
func (NopLogger) ActionCompleted(context.Context, string, time.Duration, error) {}
