package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})
}

func TestSetupJSON(t *testing.T) {
	restore(t)
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "debug", Format: FormatJSON, Output: &buf}))

	log.Debug().Str("ip", "203.45.12.78").Msg("scored")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "203.45.12.78", entry["ip"])
	assert.Equal(t, "scored", entry["message"])
}

func TestSetupLevelFilters(t *testing.T) {
	restore(t)
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "WARN", Format: FormatJSON, Output: &buf}))

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupConsole(t *testing.T) {
	restore(t)
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Output: &buf}))

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetupErrors(t *testing.T) {
	restore(t)
	assert.Error(t, Setup(Options{Level: "loud"}))
	assert.Error(t, Setup(Options{Format: "xml"}))
}
