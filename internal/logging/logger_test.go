package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json").Sub("relay")
	log.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "relay", line["subsystem"])
	assert.Equal(t, "hello", line["message"])
}

func TestWithAddsPersistentField(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json").With("interactionId", "int-1")
	log.Info().Msg("one")
	log.Info().Msg("two")

	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var line map[string]any
		require.NoError(t, json.Unmarshal(raw, &line))
		assert.Equal(t, "int-1", line["interactionId"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Debug().Msg("hidden")
	log.Info().Msg("hidden")
	log.Warn().Msg("visible")

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.Disabled, parseLevel("silent"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}
