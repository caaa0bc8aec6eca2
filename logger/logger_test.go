package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLoggingWithOptionsText(t *testing.T) {
	var buf bytes.Buffer

	logger := ConfigureLoggingWithOptions(Options{
		Subsystem: "fleet",
		MinLevel:  slog.LevelDebug,
		Output:    &buf,
	})

	logger.Debug("actor started", "actor_id", "a-1")

	out := buf.String()
	assert.Contains(t, out, "actor started")
	assert.Contains(t, out, "subsystem=fleet")
	assert.Contains(t, out, "actor_id=a-1")
}

func TestConfigureLoggingWithOptionsJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := ConfigureLoggingWithOptions(Options{
		Subsystem: "fleet",
		JSON:      true,
		Output:    &buf,
	})

	logger.Info("run finished", "steps", 12)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "run finished", entry["msg"])
	assert.Equal(t, "fleet", entry["subsystem"])
	assert.InEpsilon(t, 12.0, entry["steps"], 1e-9)
}

func TestConfigureLoggingRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := ConfigureLoggingWithOptions(Options{
		MinLevel: slog.LevelWarn,
		Output:   &buf,
	})

	logger.Info("quiet")
	assert.Empty(t, buf.String())

	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestConfigureLoggingRedirectsLegacyLog(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{Output: &buf})

	log.Print("old school entry")
	assert.Contains(t, buf.String(), "old school entry")
}

func TestConfigureLoggingFromEnvironment(t *testing.T) {
	t.Setenv("LOG_JSON", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	logger, err := ConfigureLogging("simrange")
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestConfigureLoggingRejectsBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "EXTREMELY")

	_, err := ConfigureLogging("simrange")
	require.Error(t, err)
}
