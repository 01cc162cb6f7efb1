package config_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskflow/internal/config"
)

// Not parallel: mutates the global logger.
func TestSetupLogging(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	t.Run("json_with_level", func(t *testing.T) {
		var buf bytes.Buffer
		config.SetupLogging(config.LogConfig{Level: "warn", Format: "json"}, &buf)

		log.Info().Msg("dropped")
		log.Warn().Str("k", "v").Msg("kept")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "kept", line["message"])
		assert.Equal(t, "v", line["k"])
		assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	})

	t.Run("unknown_level_falls_back_to_info", func(t *testing.T) {
		var buf bytes.Buffer
		config.SetupLogging(config.LogConfig{Level: "loud", Format: "json"}, &buf)
		assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})

	t.Run("console_is_not_json", func(t *testing.T) {
		var buf bytes.Buffer
		config.SetupLogging(config.LogConfig{Level: "info", Format: "console"}, &buf)

		log.Info().Msg("hello")

		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(buf.Bytes()))
	})
}
