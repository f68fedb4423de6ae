// Package tuner runs the chromatic tuner: it repeatedly snapshots captured
// audio, detects its pitch and maps it onto the nearest note.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/note"
	"github.com/metalblueberry/guitarbuddy/pkg/pitch"
)

// DefaultRefresh is one display frame at 60 Hz.
const DefaultRefresh = 16 * time.Millisecond

// ErrDetectionFailure is reported when a detection cycle fails. The session
// stops itself after reporting it.
var ErrDetectionFailure = errors.New("tuner: detection failure")

// Engine is the part of the audio engine the tuner needs.
type Engine interface {
	StartCapture() error
	StopCapture()
	Snapshot() (engine.Buffer, error)
	PlayReference(freq float64) error
}

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Reading is the outcome of one detection cycle.
type Reading struct {
	Estimate pitch.Estimate

	// Note is set when HasNote is true.
	Note    note.Result
	HasNote bool

	// Target, Cents, Position and Accuracy are set when HasCents is true,
	// which requires both a note and a target frequency.
	Target   float64
	Cents    int
	HasCents bool
	Position int
	Accuracy note.Accuracy

	// Samples is the analysed window, for waveform display.
	Samples    []float32
	SampleRate float64
}

type Option func(*Session)

func WithDetector(d pitch.Detector) Option {
	return func(s *Session) { s.detector = d }
}

// WithRefresh sets the detection period.
func WithRefresh(d time.Duration) Option {
	return func(s *Session) { s.refresh = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// OnReading registers the listener called after every cycle. Listeners run
// on the session goroutine and must not call Stop.
func OnReading(fn func(Reading)) Option {
	return func(s *Session) { s.onReading = fn }
}

// OnError registers the listener told about the failure that stopped the
// session.
func OnError(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// Session is a tuner bound to an engine.
type Session struct {
	engine    Engine
	detector  pitch.Detector
	refresh   time.Duration
	logger    *zap.Logger
	onReading func(Reading)
	onError   func(error)

	// opMu serialises Start and Stop.
	opMu sync.Mutex

	mu        sync.Mutex
	state     State
	target    float64
	hasTarget bool
	latest    Reading
	hasLatest bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns an idle session using the time domain detector.
func New(eng Engine, opts ...Option) *Session {
	s := &Session{
		engine:   eng,
		detector: pitch.NewAutocorrelation(),
		refresh:  DefaultRefresh,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start acquires the microphone and begins detection. Starting a listening
// session does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == Listening {
		s.logger.Debug("Tuner already listening")
		return nil
	}

	if err := s.engine.StartCapture(); err != nil {
		s.logger.Error("Failed to start tuner", zap.Error(err))
		return fmt.Errorf("start tuner: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.state = Listening
	s.hasLatest = false
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, done)
	s.logger.Info("Tuner started", zap.Duration("refresh", s.refresh))
	return nil
}

// Stop ends detection and releases the microphone before returning. Stopping
// an idle session does nothing.
func (s *Session) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = Idle
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.engine.StopCapture()
	s.logger.Info("Tuner stopped")
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.abandon(done, nil)
			return
		case <-ticker.C:
		}

		if err := s.cycle(); err != nil {
			s.logger.Error("Detection failed, stopping tuner", zap.Error(err))
			s.abandon(done, err)
			return
		}
	}
}

// abandon tears the session down from inside the loop, unless Stop already
// took over this run.
func (s *Session) abandon(done chan struct{}, err error) {
	s.mu.Lock()
	owned := s.done == done
	if owned {
		s.state = Idle
		s.cancel()
		s.cancel = nil
		s.done = nil
		s.engine.StopCapture()
	}
	s.mu.Unlock()

	if owned && err != nil && s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) cycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDetectionFailure, r)
		}
	}()

	buf, err := s.engine.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDetectionFailure, err)
	}
	if buf.Partial {
		return nil
	}

	reading := s.Analyze(buf)

	s.mu.Lock()
	s.latest = reading
	s.hasLatest = true
	s.mu.Unlock()

	if s.onReading != nil {
		s.onReading(reading)
	}
	return nil
}

// Analyze detects and maps one window against the current target.
func (s *Session) Analyze(buf engine.Buffer) Reading {
	target, hasTarget := s.Target()
	return analyze(s.detector, buf, target, hasTarget)
}

func analyze(d pitch.Detector, buf engine.Buffer, target float64, hasTarget bool) Reading {
	r := Reading{
		Samples:    buf.Samples,
		SampleRate: buf.SampleRate,
		Estimate:   d.Detect(buf.Samples, buf.SampleRate),
	}
	if !r.Estimate.Detected() {
		return r
	}

	n, err := note.FromFrequency(r.Estimate.Frequency)
	if err != nil {
		return r
	}
	r.Note = n
	r.HasNote = true

	if !hasTarget {
		return r
	}
	cents, err := note.CentsDifference(r.Estimate.Frequency, target)
	if err != nil {
		return r
	}
	r.Target = target
	r.Cents = cents
	r.HasCents = true
	r.Position = note.Position(cents)
	r.Accuracy = note.Classify(cents)
	return r
}

// SetTarget sets the frequency cents are measured against.
func (s *Session) SetTarget(freq float64) error {
	if freq <= 0 {
		return fmt.Errorf("%w: target %v Hz", note.ErrOutOfRange, freq)
	}
	s.mu.Lock()
	s.target = freq
	s.hasTarget = true
	s.mu.Unlock()
	s.logger.Debug("Tuner target set", zap.Float64("target", freq))
	return nil
}

func (s *Session) ClearTarget() {
	s.mu.Lock()
	s.target = 0
	s.hasTarget = false
	s.mu.Unlock()
}

func (s *Session) Target() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.hasTarget
}

// PlayReference targets an open string (or any note such as "A4") and plays
// its tone. Capture keeps running.
func (s *Session) PlayReference(name string) error {
	freq, err := note.Lookup(name)
	if err != nil {
		return err
	}
	if err := s.SetTarget(freq); err != nil {
		return err
	}
	if err := s.engine.PlayReference(freq); err != nil {
		s.logger.Warn("Failed to play reference tone", zap.String("note", name), zap.Error(err))
		return fmt.Errorf("play reference %s: %w", name, err)
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recent reading of the current run.
func (s *Session) Latest() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}
