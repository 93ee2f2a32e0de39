package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srouault/personal-ai-assistant/config"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestSetup_JSONFile(t *testing.T) {
	restoreDefault(t)
	path := filepath.Join(t.TempDir(), "logs", "chat.log")

	closer, err := Setup(config.LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	slog.Info("hello", "n", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}`, rec["time"])
}

func TestSetup_LevelFilters(t *testing.T) {
	restoreDefault(t)
	path := filepath.Join(t.TempDir(), "chat.log")

	closer, err := Setup(config.LogConfig{Level: "warn", File: path})
	require.NoError(t, err)
	slog.Info("dropped")
	slog.Warn("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestSetup_NoFileDiscards(t *testing.T) {
	restoreDefault(t)
	closer, err := Setup(config.LogConfig{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestSetup_Invalid(t *testing.T) {
	restoreDefault(t)
	_, err := Setup(config.LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = Setup(config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}
