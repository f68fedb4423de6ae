// Package config loads guitarbuddy settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/pitch"
	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
	"github.com/metalblueberry/guitarbuddy/pkg/tuner"
)

// Config holds all runtime configuration.
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Tuner     TunerConfig     `yaml:"tuner"`
	Metronome MetronomeConfig `yaml:"metronome"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AudioConfig struct {
	SampleRate      float64 `yaml:"sample_rate"`
	BufferSize      int     `yaml:"buffer_size"`       // capture window, power of two
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // device callback size
	// InputFile replays a WAV file instead of opening the microphone.
	InputFile    string        `yaml:"input_file"`
	LoopInput    bool          `yaml:"loop_input"`
	OutputBuffer time.Duration `yaml:"output_buffer"`
}

type TunerConfig struct {
	Detector      string        `yaml:"detector"` // autocorrelation or fft
	Refresh       time.Duration `yaml:"refresh"`
	NoiseFloor    float64       `yaml:"noise_floor"`
	MinFrequency  float64       `yaml:"min_frequency"`
	MaxFrequency  float64       `yaml:"max_frequency"`
	MinConfidence float64       `yaml:"min_confidence"`
}

type MetronomeConfig struct {
	BPM             int           `yaml:"bpm"`
	BeatsPerMeasure int           `yaml:"beats_per_measure"`
	LookAhead       float64       `yaml:"look_ahead"` // seconds
	Interval        time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:      engine.DefaultSampleRate,
			BufferSize:      engine.DefaultBufferSize,
			FramesPerBuffer: engine.DefaultFramesPerBuffer,
			OutputBuffer:    engine.DefaultOutputBuffer,
		},
		Tuner: TunerConfig{
			Detector:      "autocorrelation",
			Refresh:       tuner.DefaultRefresh,
			NoiseFloor:    pitch.DefaultNoiseFloor,
			MinFrequency:  pitch.DefaultMinFrequency,
			MaxFrequency:  pitch.DefaultMaxFrequency,
			MinConfidence: pitch.DefaultMinConfidence,
		},
		Metronome: MetronomeConfig{
			BPM:             scheduler.DefaultBPM,
			BeatsPerMeasure: scheduler.DefaultBeatsPerMeasure,
			LookAhead:       scheduler.DefaultLookAhead,
			Interval:        scheduler.DefaultInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies GUITARBUDDY_* variables. Unparseable values are
// ignored.
func (c *Config) applyEnvOverrides() {
	c.Audio.SampleRate = envFloat("GUITARBUDDY_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.BufferSize = envInt("GUITARBUDDY_BUFFER_SIZE", c.Audio.BufferSize)
	c.Audio.InputFile = envStr("GUITARBUDDY_INPUT_FILE", c.Audio.InputFile)

	c.Tuner.Detector = envStr("GUITARBUDDY_DETECTOR", c.Tuner.Detector)
	c.Tuner.NoiseFloor = envFloat("GUITARBUDDY_NOISE_FLOOR", c.Tuner.NoiseFloor)

	c.Metronome.BPM = envInt("GUITARBUDDY_BPM", c.Metronome.BPM)
	c.Metronome.BeatsPerMeasure = envInt("GUITARBUDDY_BEATS_PER_MEASURE", c.Metronome.BeatsPerMeasure)

	c.Logging.Level = envStr("GUITARBUDDY_LOG_LEVEL", c.Logging.Level)
}

// Validate checks values that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid audio config: %w", err)
	}
	if _, err := pitch.New(c.Tuner.Detector); err != nil {
		return fmt.Errorf("invalid tuner config: %w", err)
	}
	if c.Tuner.Refresh <= 0 {
		return fmt.Errorf("invalid tuner config: refresh %v", c.Tuner.Refresh)
	}
	if c.Tuner.MinFrequency <= 0 || c.Tuner.MaxFrequency <= c.Tuner.MinFrequency {
		return fmt.Errorf("invalid tuner config: frequency range %v-%v Hz", c.Tuner.MinFrequency, c.Tuner.MaxFrequency)
	}
	if c.Metronome.LookAhead <= 0 || c.Metronome.Interval <= 0 {
		return fmt.Errorf("invalid metronome config: look ahead %v, interval %v", c.Metronome.LookAhead, c.Metronome.Interval)
	}
	return nil
}

// EngineConfig returns the engine settings.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.SampleRate = c.Audio.SampleRate
	cfg.BufferSize = c.Audio.BufferSize
	cfg.OutputBuffer = c.Audio.OutputBuffer
	cfg.Capture.SampleRate = c.Audio.SampleRate
	cfg.Capture.FramesPerBuffer = c.Audio.FramesPerBuffer
	return cfg
}

// Input returns the configured capture input, or nil for the microphone.
func (c *Config) Input() engine.Input {
	if c.Audio.InputFile == "" {
		return nil
	}
	return engine.NewFileInput(c.Audio.InputFile, c.Audio.LoopInput)
}

// Detector builds the configured pitch detector.
func (c *Config) Detector() (pitch.Detector, error) {
	params := pitch.Params{
		NoiseFloor:    c.Tuner.NoiseFloor,
		MinFrequency:  c.Tuner.MinFrequency,
		MaxFrequency:  c.Tuner.MaxFrequency,
		MinConfidence: c.Tuner.MinConfidence,
	}
	d, err := pitch.New(c.Tuner.Detector)
	if err != nil {
		return nil, err
	}
	switch d := d.(type) {
	case *pitch.Autocorrelation:
		d.Params = params
	case *pitch.FFTAutocorrelation:
		d.Params = params
	}
	return d, nil
}

// Tempo returns the clamped metronome tempo.
func (c *Config) Tempo() scheduler.Tempo {
	return scheduler.Tempo{BPM: c.Metronome.BPM, BeatsPerMeasure: c.Metronome.BeatsPerMeasure}.Clamp()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
