// Package engine owns the audio device: a capture graph feeding a ring
// buffer for analysis and a tone graph rendering scheduled sine voices.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/circular"
)

// Option configures an Engine.
type Option func(*Engine)

// WithInput replaces the default microphone input.
func WithInput(in Input) Option {
	return func(e *Engine) { e.input = in }
}

// WithOutput sets the output device. Without it the system device is opened
// on the first Resume.
func WithOutput(out Output) Option {
	return func(e *Engine) { e.output = out }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCapabilities overrides the detected platform capabilities.
func WithCapabilities(c Capabilities) Option {
	return func(e *Engine) { e.caps = c }
}

// Engine is the audio core shared by the tuner and the metronome.
type Engine struct {
	cfg    Config
	caps   Capabilities
	input  Input
	output Output
	logger *zap.Logger
	mixer  *Mixer
	ring   *circular.Buffer[float32]

	mu          sync.Mutex
	capturing   bool
	captureRate float64
	player      Player
	resumed     bool
	reference   VoiceID
	closed      bool
}

// New builds an engine. No device is touched until capture starts or the
// output is resumed.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		caps:   Capabilities{Audio: true, Capture: true},
		logger: zap.NewNop(),
		mixer:  NewMixer(cfg.SampleRate),
		ring:   circular.CreateBuffer[float32](cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.input == nil {
		e.input = NewPortAudioInput()
	}
	return e, nil
}

// Capabilities reports what the platform supports.
func (e *Engine) Capabilities() Capabilities {
	return e.caps
}

// StartCapture acquires the input device. A running capture is torn down
// first.
func (e *Engine) StartCapture() error {
	if !e.caps.Capture {
		return fmt.Errorf("%w: audio capture", ErrUnsupported)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.capturing {
		e.stopCaptureLocked()
	}

	e.ring.Reset()
	rate, err := e.input.Start(e.cfg.Capture, func(in []float32) {
		e.ring.Enqueue(in...)
	})
	if err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) && !errors.Is(err, ErrUnsupported) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		e.logger.Error("Failed to start capture", zap.Error(err))
		return err
	}

	e.capturing = true
	e.captureRate = rate
	e.logger.Info("Capture started",
		zap.Float64("sample_rate", rate),
		zap.Int("buffer_size", e.ring.Length()))
	return nil
}

// StopCapture releases the input device. It is a no-op when idle.
func (e *Engine) StopCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCaptureLocked()
}

func (e *Engine) stopCaptureLocked() {
	if !e.capturing {
		return
	}
	e.capturing = false
	if err := e.input.Stop(); err != nil {
		e.logger.Warn("Failed to release input", zap.Error(err))
		return
	}
	e.logger.Info("Capture stopped")
}

func (e *Engine) Capturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capturing
}

// Snapshot copies the latest capture window.
func (e *Engine) Snapshot() (Buffer, error) {
	e.mu.Lock()
	capturing, rate := e.capturing, e.captureRate
	e.mu.Unlock()

	if !capturing {
		return Buffer{}, ErrNotCapturing
	}
	partial := e.ring.Written() < uint64(e.ring.Length())
	return Buffer{Samples: e.ring.Snapshot(), SampleRate: rate, Partial: partial}, nil
}

// Resume starts the output. Until then scheduled tones stay silent and the
// clock does not advance.
func (e *Engine) Resume() error {
	if !e.caps.Audio {
		return fmt.Errorf("%w: audio output", ErrUnsupported)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.resumed {
		return nil
	}

	if e.output == nil {
		out, err := NewOtoOutput(e.cfg.SampleRate, e.cfg.OutputBuffer)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAudioBlocked, err)
		}
		e.output = out
	}
	if err := e.output.Resume(); err != nil {
		e.logger.Warn("Audio output blocked", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAudioBlocked, err)
	}
	if e.player == nil {
		e.player = e.output.NewPlayer(e.mixer)
	}
	e.player.Play()
	e.resumed = true
	e.logger.Debug("Audio output resumed", zap.Float64("clock", e.mixer.Now()))
	return nil
}

// Suspend pauses the output and freezes the clock.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.resumed {
		return nil
	}
	e.player.Pause()
	e.resumed = false
	if err := e.output.Suspend(); err != nil {
		return err
	}
	return nil
}

func (e *Engine) Resumed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumed
}

// Now returns the engine clock in seconds.
func (e *Engine) Now() float64 {
	return e.mixer.Now()
}

// Schedule plays t at the given clock time.
func (e *Engine) Schedule(t Tone, at float64) (VoiceID, error) {
	if !e.caps.Audio {
		return 0, fmt.Errorf("%w: audio output", ErrUnsupported)
	}
	return e.mixer.Schedule(t, at), nil
}

// ScheduleClick schedules one metronome click.
func (e *Engine) ScheduleClick(at float64, accent bool) error {
	_, err := e.Schedule(Click(accent), at)
	return err
}

// PlayReference resumes the output if needed and plays a reference tone,
// replacing any reference tone still sounding. Capture is not affected.
func (e *Engine) PlayReference(freq float64) error {
	if freq <= 0 {
		return fmt.Errorf("invalid reference frequency %v", freq)
	}
	if err := e.Resume(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reference != 0 {
		e.mixer.Cancel(e.reference)
	}
	e.reference = e.mixer.Schedule(ReferenceTone(freq), e.mixer.Now())
	e.logger.Info("Playing reference tone", zap.Float64("frequency", freq))
	return nil
}

// StopReference silences the reference tone.
func (e *Engine) StopReference() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reference != 0 {
		e.mixer.Cancel(e.reference)
		e.reference = 0
	}
}

// PlayTestTone resumes the output if needed and plays a short beep.
func (e *Engine) PlayTestTone() error {
	if err := e.Resume(); err != nil {
		return err
	}
	_, err := e.Schedule(TestTone(), e.Now())
	return err
}

// Close stops capture and output. The engine cannot be reused.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.stopCaptureLocked()

	var err error
	if e.player != nil {
		err = e.player.Close()
		e.player = nil
	}
	if e.resumed {
		e.resumed = false
		if serr := e.output.Suspend(); err == nil {
			err = serr
		}
	}
	return err
}
