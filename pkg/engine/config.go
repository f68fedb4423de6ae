package engine

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate      = 44100.0
	DefaultBufferSize      = 2048
	DefaultFramesPerBuffer = 512

	// DefaultOutputBuffer is the device buffer requested from the output.
	DefaultOutputBuffer = 40 * time.Millisecond
)

// Capabilities describes what the platform can do.
type Capabilities struct {
	Audio   bool
	Capture bool
}

// CaptureConfig is the request passed to an Input when capture starts.
// Echo cancellation, noise suppression and automatic gain control must stay
// off for pitch detection.
type CaptureConfig struct {
	Channels         int
	SampleRate       float64
	FramesPerBuffer  int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Config configures an Engine.
type Config struct {
	// SampleRate of the tone graph.
	SampleRate float64
	// BufferSize is the capture window length. Must be a power of two.
	BufferSize int
	// OutputBuffer is the latency requested from the output device. Zero
	// leaves it to the device.
	OutputBuffer time.Duration
	Capture      CaptureConfig
}

// DefaultConfig returns mono capture at 44100 Hz into a 2048 sample window.
func DefaultConfig() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		BufferSize:   DefaultBufferSize,
		OutputBuffer: DefaultOutputBuffer,
		Capture: CaptureConfig{
			Channels:        1,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
	}
}

// Validate reports settings the engine cannot run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %v", c.SampleRate)
	}
	if c.BufferSize <= 0 || c.BufferSize&(c.BufferSize-1) != 0 {
		return fmt.Errorf("buffer size %d is not a power of two", c.BufferSize)
	}
	if c.OutputBuffer < 0 {
		return fmt.Errorf("invalid output buffer %v", c.OutputBuffer)
	}
	return c.Capture.Validate()
}

func (c CaptureConfig) Validate() error {
	if c.Channels != 1 {
		return fmt.Errorf("%w: %d capture channels", ErrUnsupported, c.Channels)
	}
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		return fmt.Errorf("%w: capture processing must be disabled", ErrUnsupported)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid capture sample rate %v", c.SampleRate)
	}
	return nil
}
