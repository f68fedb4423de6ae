package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/pitch"
	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
)

var envVars = []string{
	"GUITARBUDDY_SAMPLE_RATE", "GUITARBUDDY_BUFFER_SIZE", "GUITARBUDDY_INPUT_FILE",
	"GUITARBUDDY_DETECTOR", "GUITARBUDDY_NOISE_FLOOR", "GUITARBUDDY_BPM",
	"GUITARBUDDY_BEATS_PER_MEASURE", "GUITARBUDDY_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guitarbuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	assert.Equal(t, 2048, cfg.Audio.BufferSize)
	assert.Equal(t, "autocorrelation", cfg.Tuner.Detector)
	assert.Equal(t, 16*time.Millisecond, cfg.Tuner.Refresh)
	assert.Equal(t, scheduler.Tempo{BPM: 120, BeatsPerMeasure: 4}, cfg.Tempo())
	assert.Equal(t, 0.1, cfg.Metronome.LookAhead)
	assert.Equal(t, 25*time.Millisecond, cfg.Metronome.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Nil(t, cfg.Input())

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
audio:
  buffer_size: 4096
  output_buffer: 80ms
  input_file: guitar.wav
tuner:
  detector: fft
  refresh: 20ms
metronome:
  bpm: 90
  beats_per_measure: 3
logging:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Audio.BufferSize)
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	assert.Equal(t, 80*time.Millisecond, cfg.EngineConfig().OutputBuffer)
	assert.Equal(t, "fft", cfg.Tuner.Detector)
	assert.Equal(t, 20*time.Millisecond, cfg.Tuner.Refresh)
	assert.Equal(t, scheduler.Tempo{BPM: 90, BeatsPerMeasure: 3}, cfg.Tempo())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.IsType(t, &engine.ReplayInput{}, cfg.Input())

	d, err := cfg.Detector()
	require.NoError(t, err)
	assert.IsType(t, &pitch.FFTAutocorrelation{}, d)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "metronome:\n  bpm: 90\n")
	t.Setenv("GUITARBUDDY_BPM", "150")
	t.Setenv("GUITARBUDDY_DETECTOR", "fft")
	t.Setenv("GUITARBUDDY_NOISE_FLOOR", "0.02")
	t.Setenv("GUITARBUDDY_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Metronome.BPM)
	assert.Equal(t, "fft", cfg.Tuner.Detector)
	assert.Equal(t, 0.02, cfg.Tuner.NoiseFloor)
	assert.Equal(t, "warn", cfg.Logging.Level)

	d, err := cfg.Detector()
	require.NoError(t, err)
	assert.Equal(t, 0.02, d.(*pitch.FFTAutocorrelation).NoiseFloor)
}

func TestEnvOverridesApplyWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUITARBUDDY_BEATS_PER_MEASURE", "6")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Metronome.BeatsPerMeasure)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUITARBUDDY_BPM", "fast")
	t.Setenv("GUITARBUDDY_SAMPLE_RATE", "high")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultBPM, cfg.Metronome.BPM)
	assert.Equal(t, engine.DefaultSampleRate, cfg.Audio.SampleRate)
}

func TestTempoIsClamped(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUITARBUDDY_BPM", "999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, scheduler.MaxBPM, cfg.Tempo().BPM)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "audio: [not, a, map"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = Load(writeConfig(t, "audio:\n  buffer_size: 1000\n"))
	assert.ErrorContains(t, err, "invalid audio config")

	_, err = Load(writeConfig(t, "tuner:\n  detector: yin\n"))
	assert.ErrorContains(t, err, "invalid tuner config")

	_, err = Load(writeConfig(t, "tuner:\n  min_frequency: 500\n  max_frequency: 100\n"))
	assert.ErrorContains(t, err, "frequency range")
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 48000
	ec := cfg.EngineConfig()
	assert.Equal(t, 48000.0, ec.SampleRate)
	assert.Equal(t, 48000.0, ec.Capture.SampleRate)
	assert.Equal(t, 1, ec.Capture.Channels)
	assert.Equal(t, engine.DefaultOutputBuffer, ec.OutputBuffer)
	assert.NoError(t, ec.Validate())
}
