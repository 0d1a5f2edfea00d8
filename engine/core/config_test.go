package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
	assert.Equal(t, [4]float32{0.01, 0.01, 0.01, 1.0}, cfg.Renderer.ClearColor)
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[window]
title = "test"
width = 1280

[renderer]
frames_in_flight = 3
enable_validation_layers = true

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Window.Title)
	assert.Equal(t, uint32(1280), cfg.Window.Width)
	assert.Equal(t, uint32(600), cfg.Window.Height)
	assert.Equal(t, 3, cfg.Renderer.FramesInFlight)
	assert.True(t, cfg.Renderer.EnableValidationLayers)
	assert.Equal(t, "shaders", cfg.Assets.ShaderDir)
	assert.Equal(t, LogLevelDebug, cfg.LogLevel())
}

func TestLoadConfigRejectsZeroFramesInFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nframes_in_flight = 0\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelWarn, ParseLogLevel(" WARNING "))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("whatever"))
}

func TestIdentifiersReuseReleasedSlots(t *testing.T) {
	ids := NewIdentifiers()
	a := ids.Acquire("a")
	b := ids.Acquire("b")
	assert.Equal(t, uint32(0), a)
	assert.Equal(t, uint32(1), b)

	require.NoError(t, ids.Release(a))
	_, ok := ids.Owner(a)
	assert.False(t, ok)

	assert.Equal(t, a, ids.Acquire("c"))
	assert.Error(t, ids.Release(42))
}

func TestContractViolation(t *testing.T) {
	err := ContractViolation(ErrFrameInProgress, "begin frame while frame %d is recording", 1)
	assert.ErrorIs(t, err, ErrFrameInProgress)
	assert.True(t, IsContractViolation(err))
	assert.False(t, IsContractViolation(ErrFrameInProgress))
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 61; i++ {
		m.Update(1.0 / 60.0)
	}
	assert.InDelta(t, 60, m.FPS(), 1)
	assert.InDelta(t, 16.67, m.FrameTime(), 0.1)
}
