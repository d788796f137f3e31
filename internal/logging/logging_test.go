package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"literary-rag/internal/config"
)

func TestSetup_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "literag.log")
	closer, err := Setup(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1, JSON: true})
	require.NoError(t, err)

	log.Info().Str("collection", "poems").Msg("indexed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"collection":"poems"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_BadLevelFallsBackToInfo(t *testing.T) {
	closer, err := Setup(config.LogConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
