// Package logger configures process-wide slog logging for simulation runs.
package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
)

// configMutex protects concurrent calls to ConfigureLoggingWithOptions, which
// modifies global state (slog.SetDefault and log.Default).
var configMutex sync.Mutex //nolint:gochecknoglobals

// Options is used to configure logging.
type Options struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	Output    io.Writer
}

// ConfigureLoggingWithOptions configures logging for the application and
// returns the default logger. Thread-safe, but concurrent calls serialize.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler

	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	} else {
		handler = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	}

	logger := slog.New(handler)
	if opts.Subsystem != "" {
		logger = logger.With("subsystem", opts.Subsystem)
	}

	slog.SetDefault(logger)

	// Redirect the legacy log package for third-party packages still using it.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, slog.LevelInfo)

	return logger
}

// envOptions is the environment surface for ConfigureLogging.
type envOptions struct {
	JSON  bool       `env:"LOG_JSON"  envDefault:"false"`
	Level slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// ConfigureLogging configures logging from the environment (LOG_JSON,
// LOG_LEVEL) and returns the default logger.
func ConfigureLogging(app string) (*slog.Logger, error) {
	var opts envOptions

	err := env.Parse(&opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse logging environment: %w", err)
	}

	return ConfigureLoggingWithOptions(Options{
		Subsystem: app,
		JSON:      opts.JSON,
		MinLevel:  opts.Level,
	}), nil
}
